// Package config loads server settings from PLANTLOG_* environment variables
// and the optional YAML seed file of event types.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // PLANTLOG_DATABASE_URL (required unless serving from memory)
	Memory      bool   // set by `serve --memory`; no database is opened
	GRPCAddr    string // PLANTLOG_GRPC_ADDR (default ":9090")
	HTTPAddr    string // PLANTLOG_HTTP_ADDR (default ":8080")
	NATSURL     string // PLANTLOG_NATS_URL (optional, empty = no bus)
	AuthToken   string // PLANTLOG_AUTH_TOKEN (optional, empty = auth disabled)

	// Notification fan-out
	NotifyQueue         int           // PLANTLOG_NOTIFY_QUEUE (default 250)
	NotifyReplay        int           // PLANTLOG_NOTIFY_REPLAY (default 1000)
	SlowObserverTimeout time.Duration // PLANTLOG_SLOW_OBSERVER_TIMEOUT (default 5s)

	// Photo blobs
	PhotoDir        string // PLANTLOG_PHOTO_DIR (default "./assets/photos")
	PhotoS3Bucket   string // PLANTLOG_PHOTO_S3_BUCKET (S3 replaces the directory when set)
	PhotoS3Endpoint string // PLANTLOG_PHOTO_S3_ENDPOINT (custom endpoint for MinIO)
	PhotoS3Region   string // PLANTLOG_PHOTO_S3_REGION (default "us-east-1")
	PhotoS3Prefix   string // PLANTLOG_PHOTO_S3_PREFIX (default "photos/")

	SeedFile  string // PLANTLOG_SEED_FILE (optional YAML of event types, hot-reloaded)
	LogFormat string // PLANTLOG_LOG_FORMAT (text|json, default "text")
	LogLevel  string // PLANTLOG_LOG_LEVEL (debug|info|warn|error, default "info")
}

// Load reads the environment. memory skips the database requirement.
func Load(memory bool) (*Config, error) {
	c := &Config{
		DatabaseURL:     os.Getenv("PLANTLOG_DATABASE_URL"),
		Memory:          memory,
		GRPCAddr:        envOrDefault("PLANTLOG_GRPC_ADDR", ":9090"),
		HTTPAddr:        envOrDefault("PLANTLOG_HTTP_ADDR", ":8080"),
		NATSURL:         os.Getenv("PLANTLOG_NATS_URL"),
		AuthToken:       os.Getenv("PLANTLOG_AUTH_TOKEN"),
		PhotoDir:        envOrDefault("PLANTLOG_PHOTO_DIR", "./assets/photos"),
		PhotoS3Bucket:   os.Getenv("PLANTLOG_PHOTO_S3_BUCKET"),
		PhotoS3Endpoint: os.Getenv("PLANTLOG_PHOTO_S3_ENDPOINT"),
		PhotoS3Region:   envOrDefault("PLANTLOG_PHOTO_S3_REGION", "us-east-1"),
		PhotoS3Prefix:   envOrDefault("PLANTLOG_PHOTO_S3_PREFIX", "photos/"),
		SeedFile:        os.Getenv("PLANTLOG_SEED_FILE"),
		LogFormat:       envOrDefault("PLANTLOG_LOG_FORMAT", "text"),
		LogLevel:        envOrDefault("PLANTLOG_LOG_LEVEL", "info"),
	}
	if c.DatabaseURL == "" && !memory {
		return nil, fmt.Errorf("PLANTLOG_DATABASE_URL is required")
	}

	var err error
	if c.NotifyQueue, err = envInt("PLANTLOG_NOTIFY_QUEUE", 250); err != nil {
		return nil, err
	}
	if c.NotifyReplay, err = envInt("PLANTLOG_NOTIFY_REPLAY", 1000); err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(envOrDefault("PLANTLOG_SLOW_OBSERVER_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("PLANTLOG_SLOW_OBSERVER_TIMEOUT: %w", err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("PLANTLOG_SLOW_OBSERVER_TIMEOUT must be positive, got %s", d)
	}
	c.SlowObserverTimeout = d

	switch c.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("PLANTLOG_LOG_FORMAT: unknown format %q", c.LogFormat)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
