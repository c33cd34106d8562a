package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saiakki/jiradash/internal/auth"
	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/model"
	"github.com/saiakki/jiradash/internal/store"
)

type fakeFetcher struct {
	mu         sync.Mutex
	project    *model.Project
	issues     []model.Issue
	issuesErr  error
	projectErr error
}

func (f *fakeFetcher) FetchProject(ctx context.Context, projectID string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	p := *f.project
	return &p, nil
}

func (f *fakeFetcher) FetchIssues(ctx context.Context, projectKey string) ([]model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	return append([]model.Issue(nil), f.issues...), nil
}

func (f *fakeFetcher) set(issues []model.Issue, issuesErr error) {
	f.mu.Lock()
	f.issues = issues
	f.issuesErr = issuesErr
	f.mu.Unlock()
}

// dpIssues is the Donation Platform scenario: 8 issues split
// 3 To Do / 2 In Progress / 1 In Review / 2 Done.
func dpIssues() []model.Issue {
	statuses := []string{
		"To Do", "To Do", "To Do",
		"In Progress", "In Progress",
		"In Review",
		"Done", "Done",
	}
	issues := make([]model.Issue, len(statuses))
	for i, status := range statuses {
		issues[i] = model.Issue{
			ID:       fmt.Sprintf("%d", i+1),
			Key:      fmt.Sprintf("DP-%d", i+1),
			Summary:  fmt.Sprintf("Issue %d", i+1),
			Status:   status,
			Assignee: model.UnassignedSentinel,
			Created:  time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC),
		}
	}
	return issues
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ProjectID:            "10000",
		ProjectKey:           "DP",
		MaxResults:           100,
		RefreshIntervalSecs:  300,
		DataDir:              dir,
		BackupRetentionDays:  30,
		Host:                 "127.0.0.1",
		Port:                 8080,
		UsersFile:            dir + "/users.json",
		UserStore:            "file",
		DefaultAdminUser:     "admin-default",
		DefaultAdminPassword: "test-secret",
	}
}

func newTestServer(t *testing.T) (*Server, *Refresher, *fakeFetcher, *config.Config) {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.OpenFileStore(cfg.DataDir, cfg.BackupRetentionDays)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	authMgr := auth.NewManager(auth.NewFileUserStore(cfg.UsersFile))
	if _, err := authMgr.SeedDefault(cfg.DefaultAdminUser, cfg.DefaultAdminPassword); err != nil {
		t.Fatalf("failed to seed default account: %v", err)
	}

	fetcher := &fakeFetcher{
		project: &model.Project{ID: "10000", Key: "DP", Name: "Donation Platform"},
		issues:  dpIssues(),
	}

	srv := New(cfg, authMgr, st)
	refresher := NewRefresher(cfg, fetcher, st, srv)
	return srv, refresher, fetcher, cfg
}

func login(t *testing.T, srv *Server, username, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("login returned %d, want 302", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func get(srv *Server, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := get(srv, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d, want 200", rec.Code)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	for _, path := range []string{"/api/issues", "/api/project", "/api/status"} {
		rec := get(srv, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without session = %d, want 401", path, rec.Code)
		}
	}
}

func TestDashboardRedirectsToLogin(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := get(srv, "/dashboard", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("/dashboard without session = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("redirect location = %q, want /login", loc)
	}
}

func TestBadLoginRejected(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	form := url.Values{"username": {"admin-default"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Error("login page should show the rejection message")
	}
}

func TestStatusBreakdownAfterRefresh(t *testing.T) {
	srv, refresher, _, _ := newTestServer(t)

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow failed: %v", err)
	}

	cookie := login(t, srv, "admin-default", "test-secret")
	rec := get(srv, "/api/status", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/status = %d, want 200", rec.Code)
	}

	var status struct {
		TotalIssues int    `json:"total_issues"`
		ProjectKey  string `json:"project_key"`
		Breakdown   struct {
			ToDo       int `json:"todo"`
			InProgress int `json:"in_progress"`
			InReview   int `json:"in_review"`
			Done       int `json:"done"`
		} `json:"breakdown"`
		User map[string]string `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad status JSON: %v", err)
	}

	if status.TotalIssues != 8 || status.ProjectKey != "DP" {
		t.Errorf("status header = %+v", status)
	}
	b := status.Breakdown
	if b.ToDo != 3 || b.InProgress != 2 || b.InReview != 1 || b.Done != 2 {
		t.Errorf("breakdown = %+v, want 3/2/1/2", b)
	}
	if status.User["username"] != "admin-default" || status.User["role"] != "admin" {
		t.Errorf("user block = %+v", status.User)
	}
}

func TestRefreshFailureKeepsStaleCache(t *testing.T) {
	srv, refresher, fetcher, _ := newTestServer(t)

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	before := srv.Cache()
	if before == nil || before.Snapshot.TotalIssues != 8 {
		t.Fatalf("cache not populated: %+v", before)
	}

	fetcher.set(nil, errors.New("jira is down"))
	if err := refresher.RefreshNow(context.Background()); err == nil {
		t.Fatal("refresh with failing fetcher should return the error")
	}

	after := srv.Cache()
	if after != before {
		t.Error("failed refresh replaced the cache")
	}
	if !after.Snapshot.LastUpdated.Equal(before.Snapshot.LastUpdated) {
		t.Error("last_updated changed on failed refresh")
	}

	// Readers still get the stale-but-available data
	cookie := login(t, srv, "admin-default", "test-secret")
	rec := get(srv, "/api/issues", cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("/api/issues after failed refresh = %d, want 200", rec.Code)
	}
}

func TestIssuesBeforeAnyFetch(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	cookie := login(t, srv, "admin-default", "test-secret")
	rec := get(srv, "/api/issues", cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("/api/issues with no data = %d, want 404", rec.Code)
	}
}

func TestIssuesETag(t *testing.T) {
	srv, refresher, _, _ := newTestServer(t)
	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	cookie := login(t, srv, "admin-default", "test-secret")
	rec := get(srv, "/api/issues", cookie)
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on /api/issues")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	req.AddCookie(cookie)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("matching If-None-Match = %d, want 304", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	cookie := login(t, srv, "admin-default", "test-secret")

	rec := get(srv, "/logout", cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("/logout = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Errorf("logout redirect = %q", loc)
	}

	rec = get(srv, "/api/status", cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked session on /api/status = %d, want 401", rec.Code)
	}
}

func TestNoAuthMode(t *testing.T) {
	srv, refresher, _, cfg := newTestServer(t)
	cfg.AuthDisabled = true

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := get(srv, "/api/issues", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/api/issues in no-auth mode = %d, want 200", rec.Code)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	srv, refresher, _, cfg := newTestServer(t)
	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{
		"username": cfg.DefaultAdminUser,
		"password": cfg.DefaultAdminPassword,
	})
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("JSON login = %d, want 200", rec.Code)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("no token in JSON login response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer token on /api/issues = %d, want 200", rec.Code)
	}
}

func TestLoadFromStoreSkipsUnchanged(t *testing.T) {
	srv, refresher, _, _ := newTestServer(t)
	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	// First disk load after a refresh carries the same digest
	changed, err := srv.LoadFromStore()
	if err != nil {
		t.Fatalf("LoadFromStore failed: %v", err)
	}
	if changed {
		t.Error("reload of identical data should be a no-op")
	}
}

func TestConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	srv, refresher, fetcher, cfg := newTestServer(t)
	cfg.AuthDisabled = true

	small := dpIssues()
	big := append(dpIssues(), model.Issue{
		ID: "9", Key: "DP-9", Summary: "Issue 9", Status: "To Do",
		Assignee: model.UnassignedSentinel,
	})

	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Writer flips between the two snapshots
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				fetcher.set(big, nil)
			} else {
				fetcher.set(small, nil)
			}
			refresher.RefreshNow(context.Background())
		}
	}()

	// Readers must only ever observe a complete snapshot
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec := get(srv, "/api/issues", nil)
				if rec.Code != http.StatusOK {
					continue
				}
				var snap model.Snapshot
				if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
					t.Errorf("torn response: %v", err)
					return
				}
				if len(snap.Issues) != snap.TotalIssues {
					t.Errorf("partial snapshot: %d issues, total says %d",
						len(snap.Issues), snap.TotalIssues)
					return
				}
				if snap.TotalIssues != 8 && snap.TotalIssues != 9 {
					t.Errorf("unexpected issue count %d", snap.TotalIssues)
					return
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(stop)
	wg.Wait()
}
