package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimaystinov/bot-hnushka/internal/config"
	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/task"
)

const reminderReply = `{"type":"reminder","confidence":0.9,"reason":"asks to be reminded",` +
	`"text":"call mom","reminder_date":null,"relative_time":"tomorrow","needs_clarification":false}`

// newBackend serves both the Whisper transcription endpoint and the chat
// completions endpoint. Every chat request gets reply as its content.
func newBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"task":     "transcribe",
				"language": "russian",
				"text":     "remind me to call mom tomorrow",
				"segments": []map[string]any{
					{"id": 0, "start": 0.0, "end": 1.0, "text": " remind me"},
					{"id": 1, "start": 1.0, "end": 2.5, "text": " to call mom tomorrow"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "1",
				"object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": reply},
					"finish_reason": "stop",
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()

	llmCfg := llmConfig("freewen")
	llmCfg.FreeWen.BaseURL = backendURL + "/v1"

	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "error",
			Env:             "local",
			ShutdownTimeout: time.Second,
			SpoolDir:        filepath.Join(t.TempDir(), "spool"),
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		LLM:      llmCfg,
		Transcription: config.TranscriptionConfig{
			Backend:       "openai",
			OpenAIAPIKey:  "sk-test",
			OpenAIBaseURL: backendURL + "/v1",
		},
		Task: config.TaskConfig{
			MaxConcurrent: 2,
			MaxPerOwner:   5,
			PollInterval:  20 * time.Millisecond,
		},
		Source: config.SourceConfig{
			MaxBytes:    1 << 20,
			HTTPTimeout: time.Second,
		},
	}
}

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS-fake-audio"), 0o600))
	return path
}

func TestNewApplication_MemoryStore(t *testing.T) {
	t.Parallel()

	backend := newBackend(t, reminderReply)
	app, err := newApplication(context.Background(), testConfig(t, backend.URL), discardLogger(), appOptions{})
	require.NoError(t, err)
	defer app.cleanup()

	assert.Nil(t, app.db)
	assert.NotNil(t, app.runner)
	assert.Equal(t, []string{"freewen"}, app.llmClient.ProviderNames())
}

func TestNewApplication_InvalidProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://localhost:1")
	cfg.LLM.Providers = []string{"nope"}

	app, err := newApplication(context.Background(), cfg, discardLogger(), appOptions{})
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestNewApplication_TranscriberNeedsKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://localhost:1")
	cfg.Transcription.OpenAIAPIKey = ""

	_, err := newApplication(context.Background(), cfg, discardLogger(), appOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcriber")
}

func TestProcessFile_EndToEnd(t *testing.T) {
	t.Parallel()

	backend := newBackend(t, reminderReply)

	var mu sync.Mutex
	var progress []int
	app, err := newApplication(context.Background(), testConfig(t, backend.URL), discardLogger(), appOptions{
		OnProgress: func(_ uuid.UUID, percent int) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, percent)
		},
	})
	require.NoError(t, err)
	defer app.cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	item, err := app.processFile(ctx, task.SubmitRequest{
		OwnerRef:      "cli",
		SourceLocator: writeRecording(t),
		MediaKind:     domain.MediaKindVoice,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, item.Status)
	require.NotNil(t, item.Transcript)
	assert.Equal(t, "remind me to call mom tomorrow", *item.Transcript)
	require.NotNil(t, item.Category)
	assert.Equal(t, domain.CategoryReminder, *item.Category)
	assert.InDelta(t, 0.9, item.Confidence, 1e-9)

	var record map[string]any
	require.NoError(t, json.Unmarshal(item.ExtractedRecord, &record))
	assert.Equal(t, "call mom", record["text"])

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestProcessFile_MissingRecordingFails(t *testing.T) {
	t.Parallel()

	backend := newBackend(t, reminderReply)
	app, err := newApplication(context.Background(), testConfig(t, backend.URL), discardLogger(), appOptions{})
	require.NoError(t, err)
	defer app.cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	item, err := app.processFile(ctx, task.SubmitRequest{
		OwnerRef:      "cli",
		SourceLocator: filepath.Join(t.TempDir(), "absent.ogg"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, item.Status)
	require.NotNil(t, item.FailureReason)
	assert.Nil(t, item.Transcript)
}

func TestWriteItemJSON(t *testing.T) {
	t.Parallel()

	item, err := domain.NewWorkItem("cli", "/tmp/note.ogg", domain.MediaKindVoice, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeItemJSON(&buf, item))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, item.ID.String(), decoded["id"])
	assert.Equal(t, "queued", decoded["status"])
}

func TestBuildFetcher_Schemes(t *testing.T) {
	t.Parallel()

	router, err := buildFetcher(config.SourceConfig{MaxBytes: 1 << 20, HTTPTimeout: time.Second}, discardLogger())
	require.NoError(t, err)

	path := writeRecording(t)
	data, err := router.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "OggS-fake-audio", string(data))

	_, err = router.Fetch(context.Background(), "s3://bucket/key.ogg")
	assert.ErrorIs(t, err, source.ErrUnsupportedLocator)
}

func TestBuildFetcher_S3WhenConfigured(t *testing.T) {
	t.Parallel()

	router, err := buildFetcher(config.SourceConfig{
		MaxBytes:    1 << 20,
		HTTPTimeout: time.Second,
		S3: config.S3Config{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio-secret",
		},
	}, discardLogger())
	require.NoError(t, err)

	_, err = router.Fetch(context.Background(), "gopher://bucket/key.ogg")
	assert.ErrorIs(t, err, source.ErrUnsupportedLocator)
}

func TestNewRouter_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	backend := newBackend(t, reminderReply)
	app, err := newApplication(context.Background(), testConfig(t, backend.URL), discardLogger(), appOptions{})
	require.NoError(t, err)
	defer app.cleanup()

	router, err := app.newRouter()
	require.NoError(t, err)
	assert.DirExists(t, app.config.Server.SpoolDir)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, fmt.Sprintf("body: %s", rec.Body.String()))
}
