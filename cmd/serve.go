package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kayz/formforge/internal/config"
	"github.com/kayz/formforge/internal/engine"
	"github.com/kayz/formforge/internal/history"
	"github.com/kayz/formforge/internal/logger"
	"github.com/kayz/formforge/internal/provider"
	"github.com/kayz/formforge/internal/webui"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// buildStack wires backend, audit log, engine and session store from config.
// The returned store is nil when the audit log is disabled.
func buildStack(cfg *config.Config) (*engine.SessionStore, *history.Store, provider.Backend, error) {
	backend, err := provider.New(cfg.AI)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create AI backend: %w", err)
	}

	var store *history.Store
	if !cfg.History.Disabled {
		store, err = history.NewStore(cfg.History.Path)
		if err != nil {
			// The audit log is observability, not a dependency.
			logger.Warn("Revision history disabled: %v", err)
			store = nil
		}
	}

	eng := engine.New(backend, store)
	return engine.NewSessionStore(eng), store, backend, nil
}

func runServe(cmd *cobra.Command, args []string) {
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

	// Background sweep: idle sessions go away, old audit rows are pruned.
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@hourly", func() {
		ttl := time.Duration(cfg.Sessions.IdleTTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = 2 * time.Hour
		}
		sessions.PruneIdle(ttl)
		if store != nil && cfg.History.RetentionDays > 0 {
			retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
			if n, err := store.Prune(retention); err != nil {
				logger.Warn("History prune failed: %v", err)
			} else if n > 0 {
				logger.Info("Pruned %d old revision record(s)", n)
			}
		}
	})
	if err != nil {
		logger.Warn("Failed to schedule sweeper: %v", err)
	} else {
		sweeper.Start()
		defer sweeper.Stop()
	}

	server := webui.NewServer(sessions, store, backend.Name())
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("formforge listening on %s (provider: %s)", addr, backend.Name())
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		logger.Fatal("HTTP server failed: %v", err)
	}
}
