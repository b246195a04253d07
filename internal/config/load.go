package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. BOT_SERVER_PORT.
const EnvPrefix = "BOT"

// defaults holds every known key with its default value. Registering every
// key as a default also lets viper resolve it from the environment on Unmarshal.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.env":              "production",
	"server.shutdown_timeout": 15 * time.Second,
	"server.spool_dir":        "./spool",

	"database.driver": "sqlite",
	"database.url":    "./bot.db",

	"auth.jwt_secret": "",

	"llm.providers":           []string{"openrouter", "local"},
	"llm.timeout":             60 * time.Second,
	"llm.temperature":         0.7,
	"llm.max_tokens":          2000,
	"llm.openrouter.api_key":  "",
	"llm.openrouter.base_url": "https://openrouter.ai/api/v1",
	"llm.openrouter.model":    "google/gemini-2.0-flash-exp:free",
	"llm.freewen.api_key":     "",
	"llm.freewen.base_url":    "http://localhost:3264/api",
	"llm.freewen.model":       "qwen-max-latest",
	"llm.local.api_type":      "ollama",
	"llm.local.url":           "http://localhost:11434",
	"llm.local.model":         "qwen:4b",
	"llm.gemini.api_key":      "",
	"llm.gemini.model":        "gemini-2.0-flash",

	"transcription.backend":         "whispercpp",
	"transcription.openai_api_key":  "",
	"transcription.openai_base_url": "",
	"transcription.whisper_binary":  "whisper-cli",
	"transcription.whisper_model":   "models/ggml-medium.bin",
	"transcription.threads":         0,
	"transcription.ffmpeg_binary":   "ffmpeg",

	"task.max_concurrent":   3,
	"task.max_per_owner":    5,
	"task.poll_interval":    2 * time.Second,
	"task.recover_on_start": true,

	"source.max_bytes":     20 * 1024 * 1024,
	"source.http_timeout":  60 * time.Second,
	"source.s3.endpoint":   "",
	"source.s3.access_key": "",
	"source.s3.secret_key": "",
	"source.s3.use_ssl":    true,
	"source.s3.region":     "",

	"webhook.url":     "",
	"webhook.secret":  "",
	"webhook.timeout": 10 * time.Second,
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory and environment variables, in increasing precedence.
// A .env file, when present, is loaded into the environment first.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFile(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.LLM.Providers = splitList(cfg.LLM.Providers)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// loadDotEnv loads path into the process environment if it exists.
// Variables already set in the environment are not overridden.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s file: %w", path, err)
	}
	return nil
}

// splitList normalises a provider list that may arrive from the environment
// as a single comma separated value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ToLower(part))
			}
		}
	}
	return out
}
