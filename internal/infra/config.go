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
	AppEnv         string
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	GeoIPDBPath    string
	DefaultLocale  string

	KlingAPIKey   string
	KlingBaseURL  string
	VeoAPIKey     string
	VeoBaseURL    string
	RunwayAPIKey  string
	RunwayBaseURL string

	PollInitialDelay time.Duration
	PollBaseInterval time.Duration
	PollMaxInterval  time.Duration
	PollDeadline     time.Duration
	PollMaxFailures  int
	PollMaxInFlight  int
	RecentJobsLimit  int
	SweepEvery       time.Duration
	SweepRetention   time.Duration
	DispatchTimeout  time.Duration

	StorageBackend string
	StoragePath    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3UseSSL       bool
	S3PublicURL    string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),

		KlingAPIKey:   os.Getenv("KLING_API_KEY"),
		KlingBaseURL:  getEnv("KLING_BASE_URL", "https://api.klingai.com/v1"),
		VeoAPIKey:     os.Getenv("VEO_API_KEY"),
		VeoBaseURL:    getEnv("VEO_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RunwayAPIKey:  os.Getenv("RUNWAY_API_KEY"),
		RunwayBaseURL: getEnv("RUNWAY_BASE_URL", "https://api.dev.runwayml.com/v1"),

		PollInitialDelay: time.Second * time.Duration(getEnvInt("POLL_INITIAL_DELAY_SECONDS", 2)),
		PollBaseInterval: time.Second * time.Duration(getEnvInt("POLL_BASE_INTERVAL_SECONDS", 3)),
		PollMaxInterval:  time.Second * time.Duration(getEnvInt("POLL_MAX_INTERVAL_SECONDS", 30)),
		PollDeadline:     time.Minute * time.Duration(getEnvInt("POLL_DEADLINE_MINUTES", 6)),
		PollMaxFailures:  getEnvInt("POLL_MAX_CONSECUTIVE_FAILURES", 5),
		PollMaxInFlight:  getEnvInt("POLL_MAX_IN_FLIGHT", 4),
		RecentJobsLimit:  getEnvInt("RECENT_JOBS_LIMIT", 50),
		SweepEvery:       time.Minute * time.Duration(getEnvInt("SWEEP_EVERY_MINUTES", 2)),
		SweepRetention:   time.Minute * time.Duration(getEnvInt("SWEEP_RETENTION_MINUTES", 60)),
		DispatchTimeout:  time.Second * time.Duration(getEnvInt("DISPATCH_TIMEOUT_SECONDS", 120)),

		StorageBackend: getEnv("STORAGE_BACKEND", "file"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       os.Getenv("S3_REGION"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", true),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
