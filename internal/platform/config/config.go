package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvMillis reads key as a whole number of milliseconds. Unset, empty,
// negative or malformed values yield fallback.
func GetEnvMillis(key string, fallback time.Duration) time.Duration {
	if n := GetEnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}

// Settings is the server configuration assembled from the environment.
type Settings struct {
	Port           string
	LogLevel       string
	LogFormat      string
	DriftThreshold time.Duration
	TickInterval   time.Duration
	LoadDelay      time.Duration
	StoreDriver    string
	SQLitePath     string
}

// FromEnv reads Settings from the environment, applying defaults.
func FromEnv() Settings {
	return Settings{
		Port:           GetEnv("PORT", "8080"),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
		DriftThreshold: GetEnvMillis("DRIFT_THRESHOLD_MS", 120*time.Millisecond),
		TickInterval:   GetEnvMillis("TICK_INTERVAL_MS", 250*time.Millisecond),
		LoadDelay:      GetEnvMillis("LOAD_DELAY_MS", 0),
		StoreDriver:    GetEnv("STORE_DRIVER", "memory"),
		SQLitePath:     GetEnv("SQLITE_PATH", "stemsync.db"),
	}
}
