package testutil

import (
	"os"
	"strconv"

	"github.com/pthm/sqlstride/pkg/dialect"
)

// DatabaseConfig holds configuration for connecting to an external test
// database.
type DatabaseConfig struct {
	URL string
}

// GetDatabaseConfig reads database configuration from environment variables.
// If DATABASE_URL is set, it is used as is. Otherwise DATABASE_HOST and
// friends are assembled into a URL. An empty config means a container should
// be started.
func GetDatabaseConfig() DatabaseConfig {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return DatabaseConfig{URL: url}
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}

	url, err := dialect.Postgres{}.BuildDSN(dialect.ConnParams{
		Host:     host,
		Port:     getEnvInt("DATABASE_PORT", 5432),
		Name:     getEnv("DATABASE_NAME", "postgres"),
		User:     getEnv("DATABASE_USER", "postgres"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		SSLMode:  getEnv("DATABASE_SSLMODE", "prefer"),
	})
	if err != nil {
		return DatabaseConfig{}
	}
	return DatabaseConfig{URL: url}
}

// getEnv gets an environment variable with a fallback default value.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt gets an integer environment variable with a fallback default value.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
