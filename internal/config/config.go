package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"`
	LLM           LLMConfig           `mapstructure:"llm" validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription" validate:"required"`
	Task          TaskConfig          `mapstructure:"task" validate:"required"`
	Source        SourceConfig        `mapstructure:"source"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Env             string        `mapstructure:"env" validate:"required,oneof=local development production"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// SpoolDir receives multipart uploads before they are queued.
	SpoolDir string `mapstructure:"spool_dir" validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the item store: memory, postgres or sqlite.
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres sqlite"`
	// URL is a postgres connection URL or a sqlite file path.
	URL string `mapstructure:"url" validate:"required_unless=Driver memory"`
}

// AuthConfig contains all authentication and authorization settings.
// An empty secret disables bearer authentication on the HTTP API.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// LLMConfig contains the language-model provider settings.
type LLMConfig struct {
	// Providers is the fallback order. Known names: openrouter, freewen, local, gemini.
	Providers   []string      `mapstructure:"providers" validate:"required,min=1,dive,oneof=openrouter freewen local gemini"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Temperature float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gt=0"`

	OpenRouter OpenAICompatibleConfig `mapstructure:"openrouter"`
	FreeWen    OpenAICompatibleConfig `mapstructure:"freewen"`
	Local      LocalLLMConfig         `mapstructure:"local"`
	Gemini     GeminiConfig           `mapstructure:"gemini"`
}

// OpenAICompatibleConfig configures a hosted chat-completions endpoint.
type OpenAICompatibleConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Model   string `mapstructure:"model"`
}

// LocalLLMConfig configures the self-hosted model server.
type LocalLLMConfig struct {
	APIType string `mapstructure:"api_type" validate:"oneof=ollama lmstudio textgen"`
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	Model   string `mapstructure:"model"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// TranscriptionConfig selects and configures the speech-to-text backend.
type TranscriptionConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=openai whispercpp"`
	// OpenAI Whisper API settings.
	OpenAIAPIKey  string `mapstructure:"openai_api_key" validate:"required_if=Backend openai"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" validate:"omitempty,url"`
	// Local whisper.cpp settings.
	WhisperBinary string `mapstructure:"whisper_binary"`
	WhisperModel  string `mapstructure:"whisper_model" validate:"required_if=Backend whispercpp"`
	Threads       int    `mapstructure:"threads" validate:"gte=0"`
	FFmpegBinary  string `mapstructure:"ffmpeg_binary"`
}

// TaskConfig contains the queue runner settings.
type TaskConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent" validate:"required,gt=0"`
	MaxPerOwner    int           `mapstructure:"max_per_owner" validate:"gte=0"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	RecoverOnStart bool          `mapstructure:"recover_on_start"`
}

// SourceConfig configures where recordings are fetched from.
type SourceConfig struct {
	MaxBytes    int64         `mapstructure:"max_bytes" validate:"gt=0"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	S3          S3Config      `mapstructure:"s3"`
}

// S3Config configures the object storage fetcher for s3:// locators.
// An empty endpoint disables it.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key" validate:"required_with=Endpoint"`
	SecretKey string `mapstructure:"secret_key" validate:"required_with=Endpoint"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// WebhookConfig configures delivery of terminal item events.
// An empty URL disables the webhook.
type WebhookConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}
