package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/saiakki/jiradash/internal/auth"
	"github.com/saiakki/jiradash/internal/jira"
	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/server"
	"github.com/saiakki/jiradash/internal/store"
)

const drainTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	if dashboardOnly {
		quickStart = true
	}

	if !dashboardOnly {
		if err := cfg.ValidateRemote(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// One instance per data directory
	lock := flock.New(cfg.LockFile())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another jiradash instance is already running (lock: %s)", cfg.LockFile())
	}
	defer lock.Unlock()

	if err := writePIDFile(cfg.PIDFile()); err != nil {
		logger.Warn("Failed to write pid file", logger.F("error", err))
	}
	defer os.Remove(cfg.PIDFile())

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.Close()

	users, err := auth.OpenUserStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	authMgr := auth.NewManager(users)
	defer authMgr.Close()

	if !cfg.AuthDisabled {
		if _, err := authMgr.SeedDefault(cfg.DefaultAdminUser, cfg.DefaultAdminPassword); err != nil {
			return fmt.Errorf("failed to seed default account: %w", err)
		}
	} else {
		logger.Warn("Authentication disabled, dashboard is open to anyone")
	}

	srv := server.New(cfg, authMgr, st)

	// Serve whatever was persisted last, even before the first fetch.
	if _, err := srv.LoadFromStore(); err != nil {
		logger.Warn("Failed to load existing data", logger.F("error", err))
	}

	var refresher *server.Refresher
	if !dashboardOnly {
		client := jira.New(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken, cfg.MaxResults)
		refresher = server.NewRefresher(cfg, client, st, srv)

		if !quickStart {
			fmt.Println("Fetching live Jira data...")
			if err := refresher.RefreshNow(context.Background()); err != nil {
				logger.Error("Eager fetch failed, serving existing data",
					logger.F("error", err))
				fmt.Printf("Warning: initial fetch failed: %v\n", err)
			}
		}
	}

	if quickStart && srv.Cache() == nil {
		return fmt.Errorf("no existing data in %s; run without --quick-start to fetch", cfg.DataDir)
	}

	if refresher != nil {
		refresher.Start()
		defer refresher.Stop()
	}

	watcher, err := server.NewWatcher(cfg.DataDir, srv)
	if err != nil {
		logger.Warn("File watcher unavailable", logger.F("error", err))
	} else {
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr())
	}()

	fmt.Printf("Dashboard available at: http://%s\n", cfg.ListenAddr())
	if !dashboardOnly {
		fmt.Printf("Auto-refresh: every %s\n", cfg.RefreshInterval())
	}

	select {
	case err := <-errCh:
		// Bind failures (port in use) land here and are fatal.
		return err
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down dashboard server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", logger.F("error", err))
	}
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}
