package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDatabaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "postgres with password",
			in:   "postgres://bot:s3cret@db:5432/bot?sslmode=disable",
			want: "postgres://bot:%2A%2A%2A%2A@db:5432/bot?sslmode=disable",
		},
		{
			name: "postgres without password",
			in:   "postgres://bot@db:5432/bot",
			want: "postgres://bot@db:5432/bot",
		},
		{
			name: "sqlite path",
			in:   "./bot.db",
			want: "./bot.db",
		},
		{
			name: "unparseable",
			in:   "postgres://bot:pw@db:port/bot",
			want: "invalid-url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, maskDatabaseURL(tt.in))
		})
	}
}
