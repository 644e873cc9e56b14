package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port              string
	Env               string
	PostgresUrl       string
	MongoURI          string
	JWTSecret         string
	HeartbeatInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		PostgresUrl:       getEnv("POSTGRES_URL", ""),
		MongoURI:          getEnv("MONGO_URI", ""),
		JWTSecret:         getEnv("JWT_SECRET", "supersecretjwtkey"),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL_SECONDS", 30*time.Second),
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
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
