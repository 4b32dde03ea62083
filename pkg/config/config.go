// File: pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type JWTConfig struct {
	SecretKey string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type PostgresConfig struct {
	DSN     string
	Enabled bool
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Enabled  bool
}

type RelayConfig struct {
	PublishKeyHash string
	ReplayLimit    int
	AccessCacheTTL time.Duration
	BackendBaseURL string
	MemoryLogSize  int
}

type LogConfig struct {
	Level string
	File  string
}

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Relay    RelayConfig
	Log      LogConfig
}

func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded.")
	}

	dsn := getEnv("DATABASE_URL", "")
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Postgres: PostgresConfig{
			DSN:     dsn,
			Enabled: dsn != "",
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Relay: RelayConfig{
			PublishKeyHash: getEnv("RELAY_PUBLISH_KEY_HASH", ""),
			ReplayLimit:    getEnvInt("RELAY_REPLAY_LIMIT", 200),
			AccessCacheTTL: getEnvDuration("RELAY_ACCESS_CACHE_TTL", 5*time.Minute),
			BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:3001"),
			MemoryLogSize:  getEnvInt("RELAY_MEMORY_LOG_SIZE", 1000),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
