package testdb

import "os"

// URL environment variables, in order of precedence.
var urlEnvVars = []string{"BOT_TEST_DB_URL", "DATABASE_URL"}

// PostgresURL returns the first configured Postgres test URL, or "".
func PostgresURL() string {
	for _, name := range urlEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no Postgres test database is configured.
func ShouldSkipDatabaseTest() bool {
	return PostgresURL() == ""
}
