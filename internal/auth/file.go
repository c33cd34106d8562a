package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/saiakki/jiradash/internal/model"
)

// fileRecord is the stored shape of one account in users.json.
type fileRecord struct {
	ID           string    `json:"id,omitempty"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileUserStore keeps accounts in a flat JSON file keyed by username. The
// file is re-read on every lookup so edits made by the user management
// command are picked up by a running server.
type FileUserStore struct {
	path string
	mu   sync.Mutex
}

// NewFileUserStore creates a store backed by the given path. The file is
// created lazily on the first write.
func NewFileUserStore(path string) *FileUserStore {
	return &FileUserStore{path: path}
}

func (s *FileUserStore) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]fileRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	users := map[string]fileRecord{}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return users, nil
}

func (s *FileUserStore) save(users map[string]fileRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}

// Get returns the account with the given username.
func (s *FileUserStore) Get(username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}

	rec, ok := users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &model.User{
		ID:           rec.ID,
		Username:     username,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// Put inserts or replaces an account.
func (s *FileUserStore) Put(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	users[user.Username] = fileRecord{
		ID:           user.ID,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
	}
	return s.save(users)
}

// Delete hard-removes an account.
func (s *FileUserStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; !ok {
		return ErrUserNotFound
	}
	delete(users, username)
	return s.save(users)
}

// List returns all accounts sorted by username.
func (s *FileUserStore) List() ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]model.User, 0, len(users))
	for username, rec := range users {
		out = append(out, model.User{
			ID:           rec.ID,
			Username:     username,
			PasswordHash: rec.PasswordHash,
			Role:         rec.Role,
			CreatedAt:    rec.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Count returns the number of registered accounts.
func (s *FileUserStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// Close is a no-op for the file store.
func (s *FileUserStore) Close() error { return nil }
