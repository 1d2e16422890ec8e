package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"mindradix-similarity/internal/app"
	"mindradix-similarity/internal/auth"
	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/logger"
)

func usage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  indexes               - Create the report collection indexes")
	fmt.Println("  purge                 - Delete reports older than REPORT_RETENTION_DAYS")
	fmt.Println("  issue-token <service> [hours] - Print a service token for a caller")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "indexes":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		if err := config.CreateIndexes(ctx, client.Database(cfg.DBName)); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "purge":
		a, err := app.New(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize services: %v", err)
		}
		defer a.Close()
		n, err := a.Retention.Purge(ctx)
		if err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		fmt.Printf("Purged %d reports\n", n)

	case "issue-token":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		hours := 24 * 365
		if len(os.Args) > 3 {
			if hours, err = strconv.Atoi(os.Args[3]); err != nil {
				log.Fatalf("Invalid hours: %v", err)
			}
		}
		tokens, err := auth.NewServiceTokens(cfg.ServiceTokenSecret, nil)
		if err != nil {
			log.Fatalf("Cannot issue tokens: %v", err)
		}
		token, err := tokens.Issue(os.Args[2], time.Duration(hours)*time.Hour)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(token)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}
