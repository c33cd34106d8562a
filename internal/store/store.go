package store

import (
	"errors"

	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
)

// ErrNotFound is returned when no snapshot has been persisted yet. Callers
// must treat it as "no data yet", not as a failure.
var ErrNotFound = errors.New("store: no data")

// Store persists fetch snapshots. The file implementation is the default;
// the database implementation is selected with the storage backend flag.
type Store interface {
	SaveSnapshot(project *model.Project, issues []model.Issue) error
	LoadIssues() (*model.Snapshot, error)
	LoadProject() (*model.Project, error)
	Close() error
}

// Open creates the store selected by the configuration.
func Open(cfg *config.Config) (Store, error) {
	if cfg.UseDatabase {
		logger.Info("Using database storage",
			logger.F("host", cfg.DBHost),
			logger.F("database", cfg.DBName))
		return OpenDatabase(cfg.DatabaseURL())
	}
	logger.Info("Using file system storage", logger.F("data_dir", cfg.DataDir))
	return OpenFileStore(cfg.DataDir, cfg.BackupRetentionDays)
}
