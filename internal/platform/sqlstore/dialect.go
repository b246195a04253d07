package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	// Name is the configuration name: "postgres" or "sqlite".
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the goose dialect name.
	Goose string
	// LockClause is appended to the claim select.
	LockClause string
	// numbered placeholders ($1, $2) instead of "?"
	numbered bool
}

// Supported dialects.
var (
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "pgx",
		Goose:      "postgres",
		LockClause: " FOR UPDATE SKIP LOCKED",
		numbered:   true,
	}
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		Goose:  "sqlite3",
	}
)

// DialectFor returns the dialect with the given configuration name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
