package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	ScriptURL       string
	ScriptTimeout   time.Duration
	RedisAddr       string
	SessionBackend  string
	RateLimitPerMin int

	// Google Drive upload path, only needed when image uploads are enabled.
	GoogleClientEmail string
	GooglePrivateKey  string
	GoogleDriveFolder string
	DriveTimeout      time.Duration

	// Bookings fetcher tuning.
	FetchMaxRetries int
	FetchBaseDelay  time.Duration
	FetchTimeout    time.Duration
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		ScriptURL:       getEnv("SCRIPT_URL", os.Getenv("NEXT_PUBLIC_SCRIPT_URL")),
		ScriptTimeout:   durationEnv("SCRIPT_TIMEOUT", 30*time.Second),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		SessionBackend:  getEnv("SESSION_BACKEND", "redis"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),

		GoogleClientEmail: getEnv("GOOGLE_CLIENT_EMAIL", ""),
		GooglePrivateKey:  getEnv("GOOGLE_PRIVATE_KEY", ""),
		GoogleDriveFolder: getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		DriveTimeout:      durationEnv("DRIVE_TIMEOUT", 30*time.Second),

		FetchMaxRetries: intEnv("FETCH_MAX_RETRIES", 3),
		FetchBaseDelay:  durationEnv("FETCH_BASE_DELAY", 2*time.Second),
		FetchTimeout:    durationEnv("FETCH_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
