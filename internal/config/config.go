package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the decisioning backend
type Config struct {
	// Database
	DatabaseURL string

	// Redis (parameter + CB report caches)
	Redis RedisConfig

	// Kafka (EWS alert stream)
	Kafka KafkaConfig

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// ResidentHashKey keys the HMAC over resident registration numbers.
	// Plaintext numbers are never stored, so losing the key orphans
	// every applicant row.
	ResidentHashKey string

	// Rate limits (requests per minute per client)
	RateLimitPerMin         int
	EvaluateRateLimitPerMin int

	// Credit bureau connector
	CBBureauTimeout time.Duration

	// S3 Storage (appeal documents, model artifacts)
	S3 S3Config

	// DocumentDir backs the local document store when S3 is not
	// configured (development only).
	DocumentDir string
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the EWS consumer settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_EWS_TOPIC", "ews.alerts"),
			GroupID: getEnv("KAFKA_EWS_GROUP", "ews-processor"),
		},
		Auth0Domain:             getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:           getEnv("AUTH0_AUDIENCE", ""),
		Port:                    getEnv("PORT", "8080"),
		CORSOrigins:             strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:                     getEnv("ENV", "development"),
		ResidentHashKey:         getEnv("RESIDENT_HASH_KEY", ""),
		RateLimitPerMin:         getEnvInt("RATE_LIMIT_PER_MIN", 60),
		EvaluateRateLimitPerMin: getEnvInt("EVALUATE_RATE_LIMIT_PER_MIN", 30),
		CBBureauTimeout:         getEnvDuration("CB_BUREAU_TIMEOUT", 3*time.Second),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "ap-northeast-2"),
			Bucket:          getEnv("S3_BUCKET", "kcs-documents"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
		DocumentDir: getEnv("DOCUMENT_DIR", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ResidentHashKey == "" {
		return fmt.Errorf("RESIDENT_HASH_KEY is required")
	}
	if c.Env == "production" {
		if c.Auth0Domain == "" {
			return fmt.Errorf("AUTH0_DOMAIN is required in production")
		}
		if c.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_AUDIENCE is required in production")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
