package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string

	DBDriver         string
	SQLitePath       string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string
	PostgresSSLMode  string

	ArtifactRoot    string
	ArtifactBaseURL string

	RenderTimeout   time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	MinAccessCount  int64

	RateLimit       int
	RateLimitWindow time.Duration

	S3MirrorEnabled bool
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
}

func Load() *Config {
	cfg := &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		SQLitePath:       getEnv("SQLITE_PATH", "chartcache.db"),
		PostgresUser:     getEnv("POSTGRES_USER", "chartcache"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDatabase: getEnv("POSTGRES_DATABASE", "chartcache"),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		ArtifactRoot:     getEnv("ARTIFACT_ROOT", "charts"),
		ArtifactBaseURL:  getEnv("ARTIFACT_BASE_URL", "/static/charts"),
		RenderTimeout:    getEnvDuration("RENDER_TIMEOUT", 30*time.Second),
		CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", 0),
		Retention:        getEnvDuration("CLEANUP_RETENTION", 30*24*time.Hour),
		MinAccessCount:   int64(getEnvInt("CLEANUP_MIN_ACCESS_COUNT", 5)),
		RateLimit:        getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		S3MirrorEnabled:  getEnvBool("S3_MIRROR_ENABLED", false),
		S3Bucket:         getEnv("S3_BUCKET", "chart-artifacts"),
		S3Region:         getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKey:      getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	if cfg.S3MirrorEnabled && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		panic("S3 mirror enabled but AWS credentials are not provided")
	}

	return cfg
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
