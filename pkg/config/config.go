package config

import (
	"os"
	"strconv"
)

// Config holds all runtime settings, loaded from environment variables
type Config struct {
	Port                    string
	Env                     string
	PostgresConnStr         string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	JWTSecret               string
	FirebaseCredentialsPath string
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
