package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ProjectKey != "DP" || cfg.ProjectID != "10000" {
		t.Errorf("default project = %s/%s", cfg.ProjectKey, cfg.ProjectID)
	}
	if cfg.RefreshIntervalSecs != 300 {
		t.Errorf("refresh interval = %d, want 300", cfg.RefreshIntervalSecs)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.BackupRetentionDays != 30 {
		t.Errorf("backup retention = %d, want 30", cfg.BackupRetentionDays)
	}
	if cfg.UserStore != "file" {
		t.Errorf("user store = %q, want file", cfg.UserStore)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JIRA_PROJECT_KEY", "OPS")
	t.Setenv("JIRADASH_REFRESH_SECS", "60")
	t.Setenv("JIRADASH_PORT", "9000")

	cfg := DefaultConfig()
	if cfg.ProjectKey != "OPS" {
		t.Errorf("project key = %q, want OPS", cfg.ProjectKey)
	}
	if cfg.RefreshInterval() != time.Minute {
		t.Errorf("refresh interval = %v, want 1m", cfg.RefreshInterval())
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load on missing file failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.JiraBaseURL = "https://example.atlassian.net"
	cfg.ProjectKey = "OPS"
	cfg.Port = 9999
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.JiraBaseURL != cfg.JiraBaseURL || loaded.ProjectKey != "OPS" || loaded.Port != 9999 {
		t.Errorf("round trip lost settings: %+v", loaded)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml should fail to load")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := *cfg
	bad.Port = 0
	if err := bad.Validate(); err == nil {
		t.Error("port 0 should be rejected")
	}

	bad = *cfg
	bad.RefreshIntervalSecs = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative refresh interval should be rejected")
	}

	bad = *cfg
	bad.UserStore = "ldap"
	if err := bad.Validate(); err == nil {
		t.Error("unknown user store should be rejected")
	}
}

func TestValidateRemote(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JiraBaseURL = ""
	if err := cfg.ValidateRemote(); err == nil {
		t.Error("missing base URL should be rejected")
	}

	cfg.JiraBaseURL = "https://example.atlassian.net"
	cfg.JiraEmail = "dev@example.com"
	cfg.JiraAPIToken = "token123"
	if err := cfg.ValidateRemote(); err != nil {
		t.Errorf("complete credentials rejected: %v", err)
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBUser = "app"
	cfg.DBPassword = "pw"
	cfg.DBHost = "db.internal"
	cfg.DBPort = 5433
	cfg.DBName = "dash"

	want := "postgres://app:pw@db.internal:5433/dash?sslmode=disable"
	if got := cfg.DatabaseURL(); got != want {
		t.Errorf("DatabaseURL = %q, want %q", got, want)
	}
}
