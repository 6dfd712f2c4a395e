package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port      string
	JWTSecret string

	MongoURI  string
	MongoDB   string
	RedisAddr string

	// AdmitTimeout bounds credential validation during the websocket
	// handshake; a slow user-store lookup rejects the connection.
	AdmitTimeout   time.Duration
	PersistTimeout time.Duration

	// PointsMin and PointsMax bound a single transfer amount, inclusive.
	PointsMin int
	PointsMax int

	BoardFlushSchedule string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", "dev"),
		MongoURI:           getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnvOrDefault("MONGO_DB", "workhub"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		AdmitTimeout:       getEnvDurationMS("ADMIT_TIMEOUT_MS", 5000),
		PersistTimeout:     getEnvDurationMS("PERSIST_TIMEOUT_MS", 10000),
		PointsMin:          getEnvInt("POINTS_MIN", 1),
		PointsMax:          getEnvInt("POINTS_MAX", 100),
		BoardFlushSchedule: getEnvOrDefault("BOARD_FLUSH_SCHEDULE", "@every 30s"),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if cfg.PointsMin < 1 {
		return errors.New("POINTS_MIN must be at least 1")
	}
	if cfg.PointsMax < cfg.PointsMin {
		return errors.New("POINTS_MAX must not be below POINTS_MIN")
	}
	if cfg.AdmitTimeout <= 0 {
		return errors.New("ADMIT_TIMEOUT_MS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationMS(key string, defaultMS int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMS)) * time.Millisecond
}
