package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// StorageConfig holds the record store configuration
type StorageConfig struct {
	DataDir string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret  string
	HashSalt   string
	LoginDelay time.Duration
}

// LoadConfig loads the configuration from a .env file (when present) and
// environment variables
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "data"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "your-secret-key-here"),
			HashSalt:   getEnv("HASH_SALT", "clinic-server-salt"),
			LoginDelay: time.Duration(getEnvAsInt("LOGIN_DELAY_MS", 0)) * time.Millisecond,
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
