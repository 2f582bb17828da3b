package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig without DATABASE_URL should fail")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("POLL_BATCH_SIZE", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PollBatchSize != 10 {
		t.Fatalf("PollBatchSize = %d, want 10", cfg.PollBatchSize)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.StorageBackend != "file" {
		t.Fatalf("StorageBackend = %q, want file", cfg.StorageBackend)
	}
	if cfg.AdminCacheTTL != 30*time.Second {
		t.Fatalf("AdminCacheTTL = %v, want 30s", cfg.AdminCacheTTL)
	}
}

func TestLoadConfigRejectsUnknownStorageBackend(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "tape")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should reject STORAGE_BACKEND=tape")
	}
}

func TestLoadConfigRequiresS3Endpoint(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should require S3_ENDPOINT for s3 backend")
	}
}
