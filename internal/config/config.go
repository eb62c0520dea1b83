package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PricingServiceConfig struct {
	Port               string
	CORSAllowedOrigins []string
	LogDir             string
	LogLevel           string
	JWTSecret          string
	DatabaseCfg        DatabaseConfig
	RabbitMQCfg        RabbitMQConfig
	RedisCfg           RedisConfig
	MinioCfg           MinioConfig
	ReportCfg          ReportConfig
}

type DatabaseConfig struct {
	Driver      string // "postgres" or "sqlite"
	PostgresCfg PostgresConfig
	SQLitePath  string
}

type MinioConfig struct {
	Enabled        bool
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
	ReportBucket   string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Enabled  bool
	Host     string
	Username string
	Password string
	Port     string
	Queue    string
}

type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	PoolSize       int
	IdempotencyTTL time.Duration
}

type ReportConfig struct {
	Title    string
	Compress bool
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// New reads the service configuration from the environment. A .env file in
// the working directory is loaded first when present.
func New() *PricingServiceConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &PricingServiceConfig{
		Port:               getEnvOrDefault("PORT", "8000"),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		LogDir:             getEnvOrDefault("LOG_DIR", "logs"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", ""),
		DatabaseCfg: DatabaseConfig{
			Driver: getEnvOrDefault("DB_DRIVER", DriverSQLite),
			PostgresCfg: PostgresConfig{
				DBname:   getEnvOrDefault("POSTGRES_DB", "pricing"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
			},
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "pricing.db"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Enabled:  getBoolOrDefault("RABBITMQ_ENABLED", false),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			Queue:    getEnvOrDefault("RABBITMQ_QUEUE", "submission_events"),
		},
		RedisCfg: RedisConfig{
			Enabled:        getBoolOrDefault("REDIS_ENABLED", false),
			Host:           getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:           getEnvOrDefault("REDIS_PORT", "6379"),
			Password:       getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:             getIntOrDefault("REDIS_DB", 0),
			PoolSize:       getIntOrDefault("REDIS_POOL_SIZE", 10),
			IdempotencyTTL: getDurationOrDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		MinioCfg: MinioConfig{
			Enabled:        getBoolOrDefault("MINIO_ENABLED", false),
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9000"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
			ReportBucket:   getEnvOrDefault("MINIO_REPORT_BUCKET", "pricing-reports"),
		},
		ReportCfg: ReportConfig{
			Title:    getEnvOrDefault("REPORT_TITLE", "Data Visualization Pricing Analysis"),
			Compress: getBoolOrDefault("REPORT_COMPRESS", true),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		slog.Warn("invalid boolean env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		slog.Warn("invalid integer env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnvOrDefault(key, defaultValue.String()))
	if err != nil {
		slog.Warn("invalid duration env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
