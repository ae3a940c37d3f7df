package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/gemini-chat/internal/llm"
)

var validateCmd = &cobra.Command{
	Use:   "validate-api",
	Short: "Check that the configured Gemini API key is accepted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		client := llm.NewGeminiClient(llmConfig(cfg), log)
		if !client.ValidateAPIKey(cmd.Context()) {
			log.Warn("API key validation failed")
			return errors.New("API key is invalid or service unavailable")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "API key is valid")
		return nil
	},
}
