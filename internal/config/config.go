package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigins []string

	MongoURI    string
	DBName      string
	ReportStore string // mongo or memory

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Service token shared with the article-management layer
	ServiceTokenSecret string

	MaxUploadSize     int64
	MaxAttachmentSize int64
	RateLimitReqs     int
	RateLimitWindow   int
	FileStorageDir    string

	// Similarity engine
	SimilarityThreshold float64
	SimilarityTopN      int
	TFIDFMaxTerms       int
	MaxDocumentChars    int
	ExcerptChars        int

	// Web corroboration
	SearchProvider       string // "duckduckgo" (default), "google"
	GoogleSearchAPIKey   string
	GoogleSearchEngineID string
	SearchResultLimit    int
	SearchRatePerSecond  float64
	ScrapeTimeout        time.Duration
	ScrapeMaxChars       int
	WebMinChars          int
	WebPassTimeout       time.Duration
	RenderJS             bool
	RenderTimeout        time.Duration
	PageCacheTTL         time.Duration

	// Report retention
	ReportRetentionDays int
	RetentionCron       string

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string

	WorkerConcurrency int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/mindradix"),
		DBName:   getEnv("DB_NAME", "mindradix"),

		ReportStore: getEnv("REPORT_STORE", "mongo"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", ""),

		MaxUploadSize:     getEnvInt64("MAX_UPLOAD_SIZE", 52428800),     // 50MB per request
		MaxAttachmentSize: getEnvInt64("MAX_ATTACHMENT_SIZE", 26214400), // 25MB per downloaded file
		RateLimitReqs:     getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),
		FileStorageDir:    getEnv("FILE_STORAGE_DIR", "./storage"),

		SimilarityThreshold: getEnvFloat64("SIMILARITY_THRESHOLD", 0.6),
		SimilarityTopN:      getEnvInt("SIMILARITY_TOP_N", 20),
		TFIDFMaxTerms:       getEnvInt("TFIDF_MAX_TERMS", 800),
		MaxDocumentChars:    getEnvInt("MAX_DOCUMENT_CHARS", 200000),
		ExcerptChars:        getEnvInt("EXCERPT_CHARS", 200),

		SearchProvider:       getEnv("SEARCH_PROVIDER", "duckduckgo"),
		GoogleSearchAPIKey:   getEnv("GOOGLE_SEARCH_API_KEY", ""),
		GoogleSearchEngineID: getEnv("GOOGLE_SEARCH_ENGINE_ID", ""),
		SearchResultLimit:    getEnvInt("SEARCH_RESULT_LIMIT", 5),
		SearchRatePerSecond:  getEnvFloat64("SEARCH_RATE_PER_SECOND", 1),
		ScrapeTimeout:        getEnvDuration("SCRAPE_TIMEOUT", 5*time.Second),
		ScrapeMaxChars:       getEnvInt("SCRAPE_MAX_CHARS", 10000),
		WebMinChars:          getEnvInt("WEB_MIN_CHARS", 100),
		WebPassTimeout:       getEnvDuration("WEB_PASS_TIMEOUT", 20*time.Second),
		RenderJS:             getEnvBool("RENDER_JS", false),
		RenderTimeout:        getEnvDuration("RENDER_TIMEOUT", 20*time.Second),
		PageCacheTTL:         getEnvDuration("PAGE_CACHE_TTL", 24*time.Hour),

		ReportRetentionDays: getEnvInt("REPORT_RETENTION_DAYS", 90),
		RetentionCron:       getEnv("RETENTION_CRON", "0 3 * * *"),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
	}

	// Validate required fields
	if cfg.GinMode == "release" && cfg.ServiceTokenSecret == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET is required in release mode - set it in .env file")
	}

	if cfg.SearchProvider == "google" && (cfg.GoogleSearchAPIKey == "" || cfg.GoogleSearchEngineID == "") {
		return nil, fmt.Errorf("GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID are required when SEARCH_PROVIDER=google")
	}

	return cfg, nil
}

// UseGoogleSearch reports whether Programmable Search credentials are present.
func (c *Config) UseGoogleSearch() bool {
	return c.GoogleSearchAPIKey != "" && c.GoogleSearchEngineID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
