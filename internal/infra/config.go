package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	PublicBaseURL string

	// WebhookToken, when set, must match the token query parameter on
	// inbound provider callbacks.
	WebhookToken string
	AdminToken   string

	FalAPIKey  string
	FalBaseURL string

	PollBatchSize    int
	PollInterval     time.Duration
	ArchiveBatchSize int
	ArchiveInterval  time.Duration

	AdminCacheTTL time.Duration

	StorageBackend string // "file" or "s3"
	StoragePath    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty means no cross-origin access.
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		WebhookToken:       os.Getenv("WEBHOOK_TOKEN"),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
		FalAPIKey:          os.Getenv("FAL_API_KEY"),
		FalBaseURL:         getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		PollBatchSize:      getEnvInt("POLL_BATCH_SIZE", 10),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
		ArchiveBatchSize:   getEnvInt("ARCHIVE_BATCH_SIZE", 5),
		ArchiveInterval:    time.Second * time.Duration(getEnvInt("ARCHIVE_INTERVAL_SECONDS", 60)),
		AdminCacheTTL:      time.Second * time.Duration(getEnvInt("ADMIN_CACHE_TTL_SECONDS", 30)),
		StorageBackend:     getEnv("STORAGE_BACKEND", "file"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3Bucket:           getEnv("S3_BUCKET", "render-archive"),
		S3UseSSL:           getEnvBool("S3_USE_SSL", true),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageBackend {
	case "file", "s3":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be file or s3, got %q", cfg.StorageBackend)
	}

	if cfg.StorageBackend == "s3" && cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND=s3")
	}

	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = 10
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
