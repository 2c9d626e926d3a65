package cmd

import (
	"fmt"
	"os"

	"github.com/kayz/formforge/internal/config"
	"github.com/kayz/formforge/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel    string
	port        int
	providerArg string
	modelArg    string
	baseURLArg  string
)

var rootCmd = &cobra.Command{
	Use:   "formforge",
	Short: "AI form builder",
	Long: `formforge builds and revises form schemas from natural language.

Modes:
  formforge          Run the web server (default)
  formforge chat     Interactive terminal session
  formforge mcp      Serve the form tools over MCP stdio`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Run: runServe,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringVar(&providerArg, "provider", "",
		"AI provider: openai, deepseek, gemini, ollama, claude, rules (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modelArg, "model", "",
		"Model name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&baseURLArg, "base-url", "",
		"API base URL (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0,
		"HTTP listen port (overrides config)")
}

// loadConfig loads the YAML config and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if providerArg != "" {
		cfg.AI.Provider = providerArg
	}
	if modelArg != "" {
		cfg.AI.Model = modelArg
	}
	if baseURLArg != "" {
		cfg.AI.BaseURL = baseURLArg
	}
	if port != 0 {
		cfg.Port = port
	}
	if cfg.Logging.File != "" {
		if err := logger.SetFile(cfg.Logging.File); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
