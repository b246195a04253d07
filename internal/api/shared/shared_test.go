package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	id := GetTraceID(traced)
	assert.Len(t, id, 32)
	_, err := hex.DecodeString(id)
	assert.NoError(t, err)

	assert.NotEqual(t, id, GetTraceID(SetTraceID(ctx)))
	assert.Empty(t, GetTraceID(context.WithValue(ctx, TraceIDKey, 123)))
}

func TestOwnerRef(t *testing.T) {
	t.Parallel()

	_, ok := OwnerRef(context.Background())
	assert.False(t, ok)

	_, ok = OwnerRef(WithOwnerRef(context.Background(), ""))
	assert.False(t, ok)

	owner, ok := OwnerRef(WithOwnerRef(context.Background(), "alice"))
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"name":"voice"}`, false},
		{"unknown field", `{"name":"voice","admin":true}`, true},
		{"trailing object", `{"name":"a"}{"name":"b"}`, true},
		{"malformed", `{"name":`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var v body
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			err := DecodeJSON(httptest.NewRecorder(), req, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "voice", v.Name)
		})
	}

	assert.Error(t, ValidateRequest(&body{}))
	assert.NoError(t, ValidateRequest(&body{Name: "x"}))
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req = req.WithContext(SetTraceID(req.Context()))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, http.StatusNotFound, "Item not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Item not found", resp.Error)
	assert.Equal(t, GetTraceID(req.Context()), resp.TraceID)
}
