package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/saiakki/jiradash/internal/model"
)

func testProject() *model.Project {
	return &model.Project{ID: "10000", Key: "DP", Name: "Donation Platform", ProjectType: "software"}
}

func testIssues() []model.Issue {
	created := time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC)
	return []model.Issue{
		{ID: "1", Key: "DP-1", Summary: "Add donation form", Status: "To Do", Assignee: "Dana Dev", Created: created},
		{ID: "2", Key: "DP-2", Summary: "Fix payment flow", Status: "Done", Assignee: model.UnassignedSentinel, Created: created},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st, err := OpenFileStore(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	issues := testIssues()
	if err := st.SaveSnapshot(testProject(), issues); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	snap, err := st.LoadIssues()
	if err != nil {
		t.Fatalf("LoadIssues failed: %v", err)
	}

	if snap.ProjectKey != "DP" || snap.TotalIssues != 2 {
		t.Errorf("snapshot header wrong: %+v", snap)
	}
	if !reflect.DeepEqual(snap.Issues, issues) {
		t.Errorf("issues did not round-trip:\ngot  %+v\nwant %+v", snap.Issues, issues)
	}

	project, err := st.LoadProject()
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if project.Key != "DP" || project.IssuesCount != 2 {
		t.Errorf("project record wrong: %+v", project)
	}
	if project.LastUpdated.IsZero() {
		t.Error("project last_updated not set")
	}
}

func TestLoadNotFound(t *testing.T) {
	st, err := OpenFileStore(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	if _, err := st.LoadIssues(); err != ErrNotFound {
		t.Errorf("LoadIssues on empty dir = %v, want ErrNotFound", err)
	}
	if _, err := st.LoadProject(); err != ErrNotFound {
		t.Errorf("LoadProject on empty dir = %v, want ErrNotFound", err)
	}
}

func TestLoadMalformedReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	st, err := OpenFileStore(dir, 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "issues.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err = st.LoadIssues()
	if err == nil || !strings.Contains(err.Error(), ErrNotFound.Error()) {
		t.Errorf("malformed file should report as not found, got %v", err)
	}
}

func TestBackupsPerSave(t *testing.T) {
	dir := t.TempDir()
	st, err := OpenFileStore(dir, 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	const saves = 4
	for i := 0; i < saves; i++ {
		if err := st.SaveSnapshot(testProject(), testIssues()); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	// First save has nothing to back up: N saves leave N-1 backups per file.
	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatal(err)
	}

	var issueBackups, projectBackups int
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), "issues_"):
			issueBackups++
		case strings.HasPrefix(e.Name(), "project_"):
			projectBackups++
		}
	}
	if issueBackups != saves-1 {
		t.Errorf("issue backups = %d, want %d", issueBackups, saves-1)
	}
	if projectBackups != saves-1 {
		t.Errorf("project backups = %d, want %d", projectBackups, saves-1)
	}

	// Current file reflects the latest save
	snap, err := st.LoadIssues()
	if err != nil {
		t.Fatalf("LoadIssues failed: %v", err)
	}
	if snap.TotalIssues != 2 {
		t.Errorf("current snapshot stale: %+v", snap)
	}
}

func TestBackupPruning(t *testing.T) {
	dir := t.TempDir()
	st, err := OpenFileStore(dir, 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	// Two saves produce one backup pair
	for i := 0; i < 2; i++ {
		if err := st.SaveSnapshot(testProject(), testIssues()); err != nil {
			t.Fatal(err)
		}
	}

	// Age the existing backups past the retention window
	backupDir := filepath.Join(dir, "backups")
	old := time.Now().Add(-31 * 24 * time.Hour)
	entries, _ := os.ReadDir(backupDir)
	for _, e := range entries {
		os.Chtimes(filepath.Join(backupDir, e.Name()), old, old)
	}

	if err := st.SaveSnapshot(testProject(), testIssues()); err != nil {
		t.Fatal(err)
	}

	entries, _ = os.ReadDir(backupDir)
	for _, e := range entries {
		info, _ := e.Info()
		if info.ModTime().Before(time.Now().Add(-30 * 24 * time.Hour)) {
			t.Errorf("backup %s survived pruning", e.Name())
		}
	}
	// Only the backups from the last save should remain
	if len(entries) != 2 {
		t.Errorf("got %d backups after pruning, want 2", len(entries))
	}
}

func TestBackupContentIsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	st, err := OpenFileStore(dir, 30)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	first := testIssues()[:1]
	if err := st.SaveSnapshot(testProject(), first); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveSnapshot(testProject(), testIssues()); err != nil {
		t.Fatal(err)
	}

	backupDir := filepath.Join(dir, "backups")
	entries, _ := os.ReadDir(backupDir)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "issues_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(backupDir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("backup is not valid JSON: %v", err)
		}
		if snap.TotalIssues != 1 {
			t.Errorf("backup holds %d issues, want the previous save's 1", snap.TotalIssues)
		}
	}
}
