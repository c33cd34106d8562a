package server

import (
	"context"
	"time"

	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
	"github.com/saiakki/jiradash/internal/store"
)

// Fetcher is the remote client surface the refresh loop needs. Satisfied by
// *jira.Client; tests substitute a fake.
type Fetcher interface {
	FetchProject(ctx context.Context, projectID string) (*model.Project, error)
	FetchIssues(ctx context.Context, projectKey string) ([]model.Issue, error)
}

// Refresher drives the background fetch-persist-swap cycle on a fixed
// cadence. A failed tick logs and leaves the previous cache in place; the
// loop never crashes the process.
type Refresher struct {
	fetcher    Fetcher
	store      store.Store
	srv        *Server
	interval   time.Duration
	projectID  string
	projectKey string

	stopCh chan struct{}
	done   chan struct{}
}

// NewRefresher creates a refresher. Start must be called to begin ticking.
func NewRefresher(cfg *config.Config, fetcher Fetcher, st store.Store, srv *Server) *Refresher {
	return &Refresher{
		fetcher:    fetcher,
		store:      st,
		srv:        srv,
		interval:   cfg.RefreshInterval(),
		projectID:  cfg.ProjectID,
		projectKey: cfg.ProjectKey,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the tick loop in a goroutine.
func (r *Refresher) Start() {
	go r.loop()
	logger.Info("Auto-refresh started", logger.F("interval", r.interval.String()))
}

func (r *Refresher) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.RefreshNow(context.Background()); err != nil {
				logger.Error("Refresh tick failed, keeping previous data",
					logger.F("error", err))
			}
		case <-r.stopCh:
			return
		}
	}
}

// Stop signals the loop and waits for the in-flight tick to finish.
func (r *Refresher) Stop() {
	close(r.stopCh)
	<-r.done
	logger.Info("Auto-refresh stopped")
}

// RefreshNow performs one fetch-persist-swap cycle. On a remote failure the
// error is returned and the in-memory cache is untouched. A persistence
// failure is logged but the fresh data is still served from memory.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	project, err := r.fetcher.FetchProject(ctx, r.projectID)
	if err != nil {
		logger.Warn("Project fetch failed, using fallback record",
			logger.F("project_id", r.projectID),
			logger.F("error", err))
		project = model.FallbackProject(r.projectID, r.projectKey)
	}

	issues, err := r.fetcher.FetchIssues(ctx, r.projectKey)
	if err != nil {
		return err
	}

	if err := r.store.SaveSnapshot(project, issues); err != nil {
		logger.Error("Failed to persist snapshot, serving from memory only",
			logger.F("error", err))
	}

	now := time.Now().UTC()
	p := *project
	p.LastUpdated = now
	p.IssuesCount = len(issues)

	snap := &model.Snapshot{
		ProjectID:   project.ID,
		ProjectKey:  project.Key,
		LastUpdated: now,
		TotalIssues: len(issues),
		Issues:      issues,
	}

	r.srv.SwapCache(&Cached{
		Project:   &p,
		Snapshot:  snap,
		Digest:    snapshotDigest(&p, snap),
		FetchedAt: now,
	})

	logger.Info("Refresh completed",
		logger.F("issues", len(issues)),
		logger.F("project", project.Key))
	return nil
}
