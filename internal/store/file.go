package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
)

const (
	issuesFileName  = "issues.json"
	projectFileName = "project.json"
	backupDirName   = "backups"

	// backupStamp includes nanoseconds so rapid consecutive saves never
	// collide on the backup name.
	backupStamp = "2006-01-02T15-04-05.000000000"
)

// FileStore persists snapshots as JSON files under a data directory, keeping
// a timestamped backup of the previous file before each overwrite.
type FileStore struct {
	dataDir   string
	retention time.Duration
	now       func() time.Time
}

// OpenFileStore creates the data and backup directories and returns the
// store. retentionDays bounds how long backups are kept; zero or negative
// disables pruning.
func OpenFileStore(dataDir string, retentionDays int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, backupDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	return &FileStore{
		dataDir:   dataDir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

func (s *FileStore) issuesPath() string  { return filepath.Join(s.dataDir, issuesFileName) }
func (s *FileStore) projectPath() string { return filepath.Join(s.dataDir, projectFileName) }
func (s *FileStore) backupDir() string   { return filepath.Join(s.dataDir, backupDirName) }

// SaveSnapshot writes the project record and the issue snapshot, backing up
// the previous files first. Both documents carry the same write timestamp.
func (s *FileStore) SaveSnapshot(project *model.Project, issues []model.Issue) error {
	now := s.now().UTC()

	s.backupExisting("project", s.projectPath(), now)
	s.backupExisting("issues", s.issuesPath(), now)

	p := *project
	p.LastUpdated = now
	p.IssuesCount = len(issues)
	if err := writeJSON(s.projectPath(), &p); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	snap := model.Snapshot{
		ProjectID:   project.ID,
		ProjectKey:  project.Key,
		LastUpdated: now,
		TotalIssues: len(issues),
		Issues:      issues,
	}
	if err := writeJSON(s.issuesPath(), &snap); err != nil {
		return fmt.Errorf("failed to save issues: %w", err)
	}

	s.pruneBackups(now)

	logger.Info("Snapshot saved",
		logger.F("issues", len(issues)),
		logger.F("project", project.Key))
	return nil
}

// backupExisting copies the current file into the backup directory. The copy
// happens before the overwrite; a crash in between leaves the old file both
// backed up and current, which is harmless.
func (s *FileStore) backupExisting(name, path string, now time.Time) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	backupPath := filepath.Join(s.backupDir(),
		fmt.Sprintf("%s_%s.json", name, now.Format(backupStamp)))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		logger.Warn("Failed to write backup", logger.F("path", backupPath), logger.F("error", err))
		return
	}
	logger.Debug("Backed up previous file", logger.F("backup", backupPath))
}

// pruneBackups removes backup files older than the retention window.
func (s *FileStore) pruneBackups(now time.Time) {
	if s.retention <= 0 {
		return
	}

	entries, err := os.ReadDir(s.backupDir())
	if err != nil {
		return
	}

	cutoff := now.Add(-s.retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.backupDir(), entry.Name())
			if err := os.Remove(path); err == nil {
				logger.Debug("Pruned old backup", logger.F("backup", entry.Name()))
			}
		}
	}
}

// LoadIssues reads the current issue snapshot. A missing or unreadable file
// reports ErrNotFound.
func (s *FileStore) LoadIssues() (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := readJSON(s.issuesPath(), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadProject reads the current project record.
func (s *FileStore) LoadProject() (*model.Project, error) {
	var p model.Project
	if err := readJSON(s.projectPath(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Malformed data is treated as absent rather than fatal.
		logger.Warn("Malformed data file", logger.F("path", path), logger.F("error", err))
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}
