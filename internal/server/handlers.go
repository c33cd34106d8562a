package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
)

const sessionCookie = "jiradash_session"

//go:embed assets/*.html
var assets embed.FS

var loginTemplate = template.Must(template.ParseFS(assets, "assets/login.html"))

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// sessionMiddleware gates every non-login route. JSON routes get a 401;
// HTML routes are redirected to the login page.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.AuthDisabled {
			return next(c)
		}

		token := requestToken(c)
		if token == "" {
			return rejectUnauthenticated(c)
		}

		user, err := s.auth.Validate(token)
		if err != nil {
			return rejectUnauthenticated(c)
		}

		c.Set("user", user)
		return next(c)
	}
}

func requestToken(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := c.Request().Header.Get("Authorization"); h != "" {
		if token := strings.TrimPrefix(h, "Bearer "); token != h {
			return token
		}
	}
	return ""
}

func rejectUnauthenticated(c echo.Context) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}
	return c.Redirect(http.StatusFound, "/login")
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) handleLoginPage(c echo.Context) error {
	data := map[string]string{}
	if c.QueryParam("logged_out") != "" {
		data["Message"] = "You have been logged out successfully."
	}
	return renderLogin(c, http.StatusOK, data)
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	wantsJSON := strings.Contains(c.Request().Header.Get("Content-Type"), "application/json")

	session, err := s.auth.Authenticate(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		logger.Warn("Failed login attempt", logger.F("username", req.Username))
		if wantsJSON {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return renderLogin(c, http.StatusUnauthorized, map[string]string{"Error": "Invalid username or password"})
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if wantsJSON {
		return c.JSON(http.StatusOK, map[string]string{
			"token":      session.Token,
			"expires_at": session.ExpiresAt.Format(time.RFC3339),
		})
	}
	return c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) handleLogout(c echo.Context) error {
	if token := requestToken(c); token != "" {
		s.auth.Revoke(token)
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.Redirect(http.StatusFound, "/login?logged_out=1")
}

func (s *Server) handleDashboard(c echo.Context) error {
	page, err := assets.ReadFile("assets/dashboard.html")
	if err != nil {
		return c.String(http.StatusInternalServerError, "dashboard page missing")
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (s *Server) handleIssues(c echo.Context) error {
	cached := s.Cache()
	if cached == nil || cached.Snapshot == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "issues data not found"})
	}
	if notModified(c, cached.Digest) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, cached.Snapshot)
}

func (s *Server) handleProject(c echo.Context) error {
	cached := s.Cache()
	if cached == nil || cached.Project == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "project data not found"})
	}
	if notModified(c, cached.Digest) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, cached.Project)
}

type statusResponse struct {
	Status       string                 `json:"status"`
	ServerTime   time.Time              `json:"server_time"`
	ProjectKey   string                 `json:"project_key,omitempty"`
	TotalIssues  int                    `json:"total_issues"`
	LastUpdated  *time.Time             `json:"last_updated,omitempty"`
	Breakdown    *model.StatusBreakdown `json:"breakdown,omitempty"`
	RefreshSecs  int                    `json:"refresh_interval_secs"`
	Stale        bool                   `json:"stale"`
	User         map[string]string      `json:"user,omitempty"`
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := statusResponse{
		Status:      "ok",
		ServerTime:  time.Now().UTC(),
		RefreshSecs: s.cfg.RefreshIntervalSecs,
		Stale:       true,
	}

	if cached := s.Cache(); cached != nil && cached.Snapshot != nil {
		breakdown := cached.Snapshot.Breakdown()
		resp.ProjectKey = cached.Snapshot.ProjectKey
		resp.TotalIssues = cached.Snapshot.TotalIssues
		resp.LastUpdated = &cached.Snapshot.LastUpdated
		resp.Breakdown = &breakdown
		// Stale once the data is older than two refresh intervals.
		resp.Stale = time.Since(cached.Snapshot.LastUpdated) > 2*s.cfg.RefreshInterval()
	}

	if user, ok := c.Get("user").(*model.User); ok {
		resp.User = map[string]string{
			"username": user.Username,
			"role":     user.Role,
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func notModified(c echo.Context, digest uint64) bool {
	etag := fmt.Sprintf("\"%016x\"", digest)
	c.Response().Header().Set("ETag", etag)
	return c.Request().Header.Get("If-None-Match") == etag
}

func renderLogin(c echo.Context, code int, data map[string]string) error {
	var b strings.Builder
	if err := loginTemplate.Execute(&b, data); err != nil {
		return err
	}
	return c.HTML(code, b.String())
}
