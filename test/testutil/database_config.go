package testutil

import (
	"fmt"
	"net/url"
	"os"
)

// DatabaseConfig selects the server integration tests run against.
type DatabaseConfig struct {
	// URL is an admin connection to an existing server. Empty means start
	// a container.
	URL string
}

// GetDatabaseConfig reads the test server from the environment:
// NESTQL_TEST_DATABASE_URL, then DATABASE_URL, then the discrete
// DATABASE_HOST/PORT/USER/PASSWORD/NAME/SSLMODE variables. The test user
// needs CREATEDB.
func GetDatabaseConfig() DatabaseConfig {
	for _, key := range []string{"NESTQL_TEST_DATABASE_URL", "DATABASE_URL"} {
		if v := os.Getenv(key); v != "" {
			return DatabaseConfig{URL: v}
		}
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", host, getEnv("DATABASE_PORT", "5432")),
		Path:     "/" + getEnv("DATABASE_NAME", "postgres"),
		User:     url.User(getEnv("DATABASE_USER", "postgres")),
		RawQuery: url.Values{"sslmode": {getEnv("DATABASE_SSLMODE", "prefer")}}.Encode(),
	}
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		u.User = url.UserPassword(u.User.Username(), pw)
	}
	return DatabaseConfig{URL: u.String()}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
