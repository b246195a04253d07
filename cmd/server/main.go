// Package main implements the bot-hnushka command line: an HTTP server that
// turns voice notes into structured records, a one-shot processor for local
// recordings, and database migration tooling.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dimaystinov/bot-hnushka/internal/config"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bot-hnushka",
	Short: "Voice note transcription and extraction service",
	Long: `bot-hnushka transcribes voice notes, classifies the transcript into
one of eleven life categories and extracts a structured record with a
language model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging to out.
func initializeApp(out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.SetupWithWriter(cfg.Server, out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"transcription_backend", cfg.Transcription.Backend,
		"llm_providers", cfg.LLM.Providers)

	return cfg, log, nil
}
