package cmd

import (
	"fmt"
	"os"

	"github.com/kayz/formforge/internal/logger"
	"github.com/kayz/formforge/internal/mcpserver"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the form tools over MCP stdio",
	Run:   runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sessions, store, backend, err := buildStack(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	logger.Info("Serving MCP over stdio (provider: %s)", backend.Name())
	if err := mcpserver.ServeStdio(mcpserver.New(sessions)); err != nil {
		logger.Fatal("MCP server failed: %v", err)
	}
}
