package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath string
	MediaPath    string
	HTTPAddress  string
	LogLevel     string
	TypingTTL    time.Duration
}

func Load() *Config {
	// Optional .env in the working directory; flags and real env win.
	_ = godotenv.Load()

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".message-service")

	cfg := &Config{}

	flag.StringVar(&cfg.DatabasePath, "db", getEnv("MSG_DATABASE_PATH", filepath.Join(dataDir, "messages.db")), "Database file path")
	flag.StringVar(&cfg.MediaPath, "media", getEnv("MSG_MEDIA_PATH", filepath.Join(dataDir, "media")), "Attachment storage path")
	flag.StringVar(&cfg.HTTPAddress, "http", getEnv("MSG_HTTP_ADDRESS", "127.0.0.1:8080"), "HTTP server address")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("MSG_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.DurationVar(&cfg.TypingTTL, "typing-ttl", getEnvDuration("MSG_TYPING_TTL", 30*time.Second), "Staleness window for typing indicators")

	flag.Parse()

	// Ensure directories exist
	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)
	os.MkdirAll(cfg.MediaPath, 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
