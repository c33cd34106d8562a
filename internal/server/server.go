package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/saiakki/jiradash/internal/auth"
	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
	"github.com/saiakki/jiradash/internal/store"
)

// Cached is one immutable fetch result held in memory. The refresh loop
// builds a complete replacement and swaps the pointer; readers never see a
// partially updated snapshot.
type Cached struct {
	Project   *model.Project
	Snapshot  *model.Snapshot
	Digest    uint64
	FetchedAt time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg   *config.Config
	auth  *auth.Manager
	store store.Store
	echo  *echo.Echo

	cache     atomic.Pointer[Cached]
	startedAt time.Time
}

// New creates the dashboard server.
func New(cfg *config.Config, authMgr *auth.Manager, st store.Store) *Server {
	s := &Server{
		cfg:       cfg,
		auth:      authMgr,
		store:     st,
		startedAt: time.Now(),
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request/response logging
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			res := c.Response()
			logger.Info("HTTP request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("status", res.Status),
				logger.F("duration", time.Since(start).String()))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Public routes
	e.GET("/health", s.handleHealth)
	e.GET("/login", s.handleLoginPage)
	e.POST("/login", s.handleLogin)

	// Session-gated routes
	gated := e.Group("")
	gated.Use(s.sessionMiddleware)
	gated.GET("/", s.handleIndex)
	gated.GET("/logout", s.handleLogout)
	gated.GET("/dashboard", s.handleDashboard)
	gated.GET("/api/issues", s.handleIssues)
	gated.GET("/api/project", s.handleProject)
	gated.GET("/api/status", s.handleStatus)

	s.echo = e
}

// Start binds the listening address and serves until Shutdown. A bind
// failure (port already in use) is returned to the caller, which treats it
// as fatal.
func (s *Server) Start(addr string) error {
	logger.Info("Dashboard server starting", logger.F("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Dashboard server draining")
	return s.echo.Shutdown(ctx)
}

// Router returns the HTTP handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.echo
}

// Cache returns the current in-memory fetch result, or nil before any data
// has been loaded.
func (s *Server) Cache() *Cached {
	return s.cache.Load()
}

// SwapCache atomically replaces the in-memory fetch result.
func (s *Server) SwapCache(c *Cached) {
	s.cache.Store(c)
}

// LoadFromStore reads the persisted snapshot into the cache. Returns true
// if the cache changed. ErrNotFound means no data yet and leaves the cache
// alone.
func (s *Server) LoadFromStore() (bool, error) {
	snap, err := s.store.LoadIssues()
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	project, err := s.store.LoadProject()
	if err != nil {
		project = model.FallbackProject(snap.ProjectID, snap.ProjectKey)
	}

	digest := snapshotDigest(project, snap)
	if cur := s.cache.Load(); cur != nil && cur.Digest == digest {
		return false, nil
	}

	s.cache.Store(&Cached{
		Project:  project,
		Snapshot: snap,
		Digest:   digest,
	})
	logger.Info("Cache loaded from storage",
		logger.F("issues", snap.TotalIssues),
		logger.F("last_updated", snap.LastUpdated.Format(time.RFC3339)))
	return true, nil
}

// snapshotDigest hashes the serialized snapshot so identical reloads can be
// skipped and JSON responses get a stable ETag.
func snapshotDigest(project *model.Project, snap *model.Snapshot) uint64 {
	h := xxhash.New()
	if b, err := json.Marshal(project); err == nil {
		h.Write(b)
	}
	if b, err := json.Marshal(snap); err == nil {
		h.Write(b)
	}
	return h.Sum64()
}
