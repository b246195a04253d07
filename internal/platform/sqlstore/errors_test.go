package sqlstore_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/dimaystinov/bot-hnushka/internal/platform/sqlstore"
	"github.com/dimaystinov/bot-hnushka/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), store.ErrNotFound},
		{"pg unique", &pgconn.PgError{Code: "23505"}, store.ErrDuplicate},
		{"pg check", &pgconn.PgError{Code: "23514", ConstraintName: "work_items_status_check"}, store.ErrInvalidEntity},
		{"pg not null", &pgconn.PgError{Code: "23502", ColumnName: "owner_ref"}, store.ErrInvalidEntity},
		{
			"sqlite primary key",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			store.ErrDuplicate,
		},
		{
			"sqlite check",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck},
			store.ErrInvalidEntity,
		},
		{"unmapped", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := sqlstore.MapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error stays in the chain")
		})
	}

	assert.NoError(t, sqlstore.MapError(nil))
	assert.True(t, sqlstore.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, sqlstore.IsUniqueViolation(plain))
}
