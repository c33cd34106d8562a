package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/saiakki/jiradash/internal/model"
)

// DBStore persists snapshots in Postgres. It is the optional relational
// backend selected with USE_DATABASE; the default path never touches it.
type DBStore struct {
	db *sql.DB
}

// OpenDatabase connects to Postgres and runs migrations.
func OpenDatabase(dbURL string) (*DBStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &DBStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *DBStore) migrate() error {
	migrations := []string{migrationProjects, migrationIssues}
	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

const migrationProjects = `
CREATE TABLE IF NOT EXISTS jira_projects (
    id VARCHAR(50) PRIMARY KEY,
    key_name VARCHAR(50) NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    project_type VARCHAR(100),
    issues_count INTEGER DEFAULT 0,
    last_updated TIMESTAMPTZ NOT NULL
);
`

const migrationIssues = `
CREATE TABLE IF NOT EXISTS jira_issues (
    id VARCHAR(50) PRIMARY KEY,
    project_id VARCHAR(50) NOT NULL REFERENCES jira_projects(id),
    issue_key VARCHAR(50) NOT NULL,
    summary TEXT,
    description TEXT,
    status VARCHAR(100),
    priority VARCHAR(50),
    issue_type VARCHAR(100),
    assignee VARCHAR(255),
    reporter VARCHAR(255),
    created_date TIMESTAMPTZ,
    updated_date TIMESTAMPTZ,
    closed_date TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_jira_issues_project ON jira_issues(project_id);
`

// SaveSnapshot replaces the stored project and its issue set in one
// transaction. The snapshot is a full result set, so stale rows are deleted
// rather than merged.
func (s *DBStore) SaveSnapshot(project *model.Project, issues []model.Issue) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	_, err = tx.Exec(`
		INSERT INTO jira_projects (id, key_name, name, description, project_type, issues_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			key_name = EXCLUDED.key_name,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			project_type = EXCLUDED.project_type,
			issues_count = EXCLUDED.issues_count,
			last_updated = EXCLUDED.last_updated`,
		project.ID, project.Key, project.Name, project.Description,
		project.ProjectType, len(issues), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM jira_issues WHERE project_id = $1`, project.ID); err != nil {
		return fmt.Errorf("failed to clear issues: %w", err)
	}

	for i := range issues {
		iss := &issues[i]
		_, err := tx.Exec(`
			INSERT INTO jira_issues (
				id, project_id, issue_key, summary, description, status,
				priority, issue_type, assignee, reporter,
				created_date, updated_date, closed_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			iss.ID, project.ID, iss.Key, iss.Summary, iss.Description, iss.Status,
			iss.Priority, iss.IssueType, iss.Assignee, iss.Reporter,
			nullTime(iss.Created), nullTime(iss.Updated), iss.ClosedDate,
		)
		if err != nil {
			return fmt.Errorf("failed to save issue %s: %w", iss.Key, err)
		}
	}

	return tx.Commit()
}

// LoadIssues rebuilds the snapshot from the issue table.
func (s *DBStore) LoadIssues() (*model.Snapshot, error) {
	project, err := s.LoadProject()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, issue_key, summary, description, status, priority,
		       issue_type, assignee, reporter, created_date, updated_date, closed_date
		FROM jira_issues WHERE project_id = $1 ORDER BY issue_key`,
		project.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &model.Snapshot{
		ProjectID:   project.ID,
		ProjectKey:  project.Key,
		LastUpdated: project.LastUpdated,
	}

	for rows.Next() {
		var iss model.Issue
		var created, updated, closed sql.NullTime
		if err := rows.Scan(&iss.ID, &iss.Key, &iss.Summary, &iss.Description,
			&iss.Status, &iss.Priority, &iss.IssueType, &iss.Assignee, &iss.Reporter,
			&created, &updated, &closed); err != nil {
			return nil, err
		}
		if created.Valid {
			iss.Created = created.Time
		}
		if updated.Valid {
			iss.Updated = updated.Time
		}
		if closed.Valid {
			t := closed.Time
			iss.ClosedDate = &t
		}
		snap.Issues = append(snap.Issues, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.TotalIssues = len(snap.Issues)
	return snap, nil
}

// LoadProject reads the stored project record.
func (s *DBStore) LoadProject() (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRow(`
		SELECT id, key_name, name, COALESCE(description, ''), COALESCE(project_type, ''),
		       issues_count, last_updated
		FROM jira_projects LIMIT 1`).
		Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.ProjectType, &p.IssuesCount, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Close closes the database connection.
func (s *DBStore) Close() error { return s.db.Close() }

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
