package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	StaticDir      string

	SnapshotPath string

	SweepInterval time.Duration
	MaxRoomAge    time.Duration
	DeleteGrace   time.Duration
	NotifyCancel  bool
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		StaticDir:      getEnv("STATIC_DIR", "./public"),
		SnapshotPath:   getEnv("SNAPSHOT_PATH", "rooms.json"),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Minute),
		MaxRoomAge:     getEnvDuration("MAX_ROOM_AGE", time.Hour),
		DeleteGrace:    getEnvDuration("DELETE_GRACE", 60*time.Second),
		NotifyCancel:   getEnvBool("NOTIFY_CANCEL", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
