// Package config provides configuration for the relay server.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no Gemini API key is available.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY is not set in the environment variables")

// Config holds the relay configuration.
type Config struct {
	HTTPPort int

	// Gemini settings
	GoogleAPIKey string
	DefaultModel string // empty keeps the catalog default
	ModelTimeout time.Duration

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Transcript archive, disabled when MongoURI is empty
	MongoURI        string
	MongoDB         string
	MongoCollection string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		DefaultModel:    getEnv("DEFAULT_MODEL", ""),
		ModelTimeout:    getEnvDuration("MODEL_TIMEOUT", 120*time.Second),
		PingInterval:    getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		WriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		ReadTimeout:     getEnvDuration("WS_READ_TIMEOUT", 60*time.Second),
		MaxMessageSize:  int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 1<<20)),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDB:         getEnv("MONGODB_DB", "gemini_relay"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "transcripts"),
	}

	if cfg.GoogleAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return cfg, nil
}

// ArchiveEnabled reports whether closed transcripts should be written to MongoDB.
func (c *Config) ArchiveEnabled() bool {
	return c.MongoURI != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Printf("config: invalid integer for %s=%q, using %d", key, val, defaultVal)
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("90s") or bare milliseconds ("90000").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	log.Printf("config: invalid duration for %s=%q, using %s", key, val, defaultVal)
	return defaultVal
}
