// Package config loads and validates environment variables at startup.
// Fail-fast: a malformed value is an error, never a silent default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"jobsync/internal/model"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendMongo    = "mongodb"
	BackendDynamo   = "dynamodb"
)

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Backend        string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	DynamoTable    string
	AWSRegion      string
	DynamoEndpoint string
}

// Config holds all runtime configuration for the aggregator.
type Config struct {
	Port      string
	GRPCPort  string // empty disables the gRPC listener
	APIPrefix string
	RedisURL  string // optional: events and the redis cache backend

	Store StoreConfig

	CycleSchedule  string        // cron spec for the scheduler
	CycleInterval  time.Duration // used to compute next_fetch
	BatchSize      int
	BatchPause     time.Duration
	AdapterTimeout time.Duration
	SourceRPS      float64 // per-adapter request rate, 0 disables throttling

	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string

	Keywords     []string
	ExcludeTerms []string

	// Enabled sources in registry order; Priority orders the client variant.
	Enabled  []model.Source
	Priority []model.Source

	CacheBackend string // "file" or "redis"
	CacheDir     string
	CacheTTL     time.Duration
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) { return load(true) }

// LoadLocal is Load for the serverless client, which never opens the
// record store and so does not require its connection settings.
func LoadLocal() (*Config, error) { return load(false) }

func load(needStore bool) (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "3001"),
		GRPCPort:      getEnv("GRPC_PORT", "9091"),
		APIPrefix:     "/" + strings.Trim(getEnv("API_PREFIX", "/api"), "/"),
		RedisURL:      os.Getenv("REDIS_URL"),
		CycleSchedule: getEnv("CYCLE_SCHEDULE", "0 * * * *"),
		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: getEnv("ADZUNA_COUNTRY", "in"),
		Keywords:      splitList(getEnv("SEARCH_KEYWORDS", "analyst,data analyst,business analyst")),
		ExcludeTerms:  splitList(os.Getenv("EXCLUDE_TERMS")),
		Enabled:       append([]model.Source(nil), model.AllSources...),
		Priority:      append([]model.Source(nil), model.AllSources...),
		CacheBackend:  getEnv("CACHE_BACKEND", "file"),
		CacheDir:      getEnv("CACHE_DIR", ".jobsync"),
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", BackendPostgres),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase:  getEnv("MONGODB_DATABASE", "jobsync"),
			DynamoTable:    getEnv("DYNAMODB_TABLE", "jobs"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		},
	}
	if cfg.APIPrefix == "/" {
		cfg.APIPrefix = ""
	}

	var err error
	if cfg.CycleInterval, err = getDuration("CYCLE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.BatchPause, err = getDuration("BATCH_PAUSE", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = getDuration("ADAPTER_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getInt("BATCH_SIZE", 2); err != nil {
		return nil, err
	}
	if cfg.SourceRPS, err = getFloat("SOURCE_RPS", 0.5); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case BackendPostgres:
		if needStore && cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendMemory, BackendMongo, BackendDynamo:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be one of postgres, memory, mongodb, dynamodb, got %q", cfg.Store.Backend)
	}

	switch cfg.CacheBackend {
	case "file":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("CACHE_BACKEND must be file or redis, got %q", cfg.CacheBackend)
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		if err := cfg.applySourcesFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", key, s)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a duration such as 1h or 3s, got %q", key, s)
	}
	return v, nil
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
