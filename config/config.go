package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for the ledger server and the embedded registry client.
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisDB       int
	ElasticURL    string
	CatalogFile   string
	SearchTTL     time.Duration

	LedgerURL       string
	LedgerTimeout   time.Duration
	DefaultLocation string

	// Local collections for the planner client.
	StorePath   string
	StorePrefix string
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		AllowedOrigins:  splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getenv("MONGODB_DATABASE", "travel_planner"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		ElasticURL:      os.Getenv("ELASTIC_URL"),
		CatalogFile:     getenv("CATALOG_FILE", "./data/places.json"),
		LedgerURL:       getenv("LEDGER_URL", "http://localhost:8080"),
		DefaultLocation: getenv("DEFAULT_LOCATION", "Buenos Aires"),
		StorePath:       getenv("PLANNER_STORE", "./data/planner.db"),
		StorePrefix:     os.Getenv("PLANNER_REDIS_PREFIX"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getenv("REDIS_DB", "0")); err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}
	if cfg.SearchTTL, err = time.ParseDuration(getenv("SEARCH_CACHE_TTL", "10m")); err != nil {
		return Config{}, fmt.Errorf("invalid SEARCH_CACHE_TTL value: %w", err)
	}
	if cfg.LedgerTimeout, err = time.ParseDuration(getenv("LEDGER_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("invalid LEDGER_TIMEOUT value: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
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
