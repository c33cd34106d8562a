package auth

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/saiakki/jiradash/internal/model"
)

// SQLiteUserStore keeps accounts in a SQLite database. Same contract as the
// file store, selected with the user_store setting.
type SQLiteUserStore struct {
	db *sql.DB
}

const migrationAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    username TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'viewer',
    created_at TEXT NOT NULL
);
`

// OpenSQLiteUserStore opens or creates the account database.
func OpenSQLiteUserStore(path string) (*SQLiteUserStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to user database: %w", err)
	}
	if _, err := db.Exec(migrationAccounts); err != nil {
		return nil, fmt.Errorf("failed to run user migrations: %w", err)
	}
	return &SQLiteUserStore{db: db}, nil
}

// Get returns the account with the given username.
func (s *SQLiteUserStore) Get(username string) (*model.User, error) {
	var u model.User
	var createdAt string
	err := s.db.QueryRow(`
		SELECT username, id, password_hash, role, created_at
		FROM accounts WHERE username = ?`, username).
		Scan(&u.Username, &u.ID, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseStoredTime(createdAt)
	return &u, nil
}

// Put inserts or replaces an account.
func (s *SQLiteUserStore) Put(user *model.User) error {
	_, err := s.db.Exec(`
		INSERT INTO accounts (username, id, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = excluded.password_hash,
			role = excluded.role`,
		user.Username, user.ID, user.PasswordHash, user.Role,
		user.CreatedAt.UTC().Format(storedTimeLayout))
	return err
}

// Delete hard-removes an account.
func (s *SQLiteUserStore) Delete(username string) error {
	res, err := s.db.Exec(`DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all accounts sorted by username.
func (s *SQLiteUserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`
		SELECT username, id, password_hash, role, created_at
		FROM accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var createdAt string
		if err := rows.Scan(&u.Username, &u.ID, &u.PasswordHash, &u.Role, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseStoredTime(createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of registered accounts.
func (s *SQLiteUserStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteUserStore) Close() error { return s.db.Close() }
