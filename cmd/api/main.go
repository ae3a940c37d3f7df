// Package main is the entry point for the chat API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/gemini-chat/internal/config"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "gemini-chat",
	Short: "Document-aware chat API backed by Google Gemini.",
	Long: `gemini-chat serves a JSON chat API that keeps conversations in memory,
extracts text from uploaded documents, and forwards the history to the Gemini
generateContent endpoint with retries.`,
	RunE:          runServe, // Default to serving.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (defaults to ./.env when present)")
	rootCmd.AddCommand(serveCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and builds the process logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	var cfg *config.Config
	if envFile != "" {
		cfg = config.Load(envFile)
	} else {
		cfg = config.Load()
	}

	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)

	return cfg, log, nil
}
