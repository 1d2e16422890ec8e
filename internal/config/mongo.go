package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportsCollection holds one document per similarity or plagiarism run.
const ReportsCollection = "similarity_reports"

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	err = CreateIndexes(ctx, client.Database(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// CreateIndexes is idempotent; the migrate command calls it directly.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	reports := db.Collection(ReportsCollection)
	reportIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "article_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	}
	_, err := reports.Indexes().CreateMany(ctx, reportIndexes)
	return err
}
