package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
)

// SessionTTL is the fixed session lifetime. There is no sliding extension.
const SessionTTL = 2 * time.Hour

const storedTimeLayout = time.RFC3339

var (
	// ErrRejected is returned for bad credentials. Unknown username and
	// wrong password are deliberately indistinguishable.
	ErrRejected = errors.New("auth: invalid credentials")

	// ErrSessionInvalid is returned for unknown or expired tokens.
	ErrSessionInvalid = errors.New("auth: session invalid")
)

// dummyHash is compared against when the username is unknown so that both
// rejection paths do comparable work.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Manager owns the account store and the in-memory session set. Sessions
// are lazily invalidated: expired tokens are rejected and dropped on
// lookup, never swept.
type Manager struct {
	users UserStore

	mu       sync.Mutex
	sessions map[string]*model.Session
	now      func() time.Time
}

// NewManager creates a session manager over the given account store.
func NewManager(users UserStore) *Manager {
	return &Manager{
		users:    users,
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// SeedDefault creates the bootstrap admin account when the store is empty.
// Returns true if the account was created.
func (m *Manager) SeedDefault(username, password string) (bool, error) {
	count, err := m.users.Count()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, err := m.Register(username, password, model.RoleAdmin); err != nil {
		return false, err
	}
	logger.Info("Seeded default admin account", logger.F("username", username))
	return true, nil
}

// Register creates a new account. Fails if the username is taken.
func (m *Manager) Register(username, password, role string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("auth: username and password required")
	}
	if role != model.RoleAdmin && role != model.RoleViewer {
		return nil, fmt.Errorf("auth: role must be %q or %q", model.RoleAdmin, model.RoleViewer)
	}
	if _, err := m.users.Get(username); err == nil {
		return nil, fmt.Errorf("auth: user %q already exists", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.users.Put(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and issues a session. Both failure
// modes return ErrRejected.
func (m *Manager) Authenticate(username, password string) (*model.Session, error) {
	user, err := m.users.Get(username)
	if err != nil {
		// Burn a comparison anyway so unknown users cost the same.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrRejected
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrRejected
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	session := &model.Session{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}

	m.mu.Lock()
	m.sessions[token] = session
	m.mu.Unlock()

	logger.Info("User logged in", logger.F("username", username))
	return session, nil
}

// Validate resolves a token to its account. Unknown and expired tokens both
// report ErrSessionInvalid.
func (m *Manager) Validate(token string) (*model.User, error) {
	m.mu.Lock()
	session, ok := m.sessions[token]
	if ok && !m.now().Before(session.ExpiresAt) {
		delete(m.sessions, token)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionInvalid
	}

	user, err := m.users.Get(session.Username)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	return user, nil
}

// Revoke destroys a session. Revoking an unknown token is a no-op.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	if s, ok := m.sessions[token]; ok {
		delete(m.sessions, token)
		logger.Info("User logged out", logger.F("username", s.Username))
	}
	m.mu.Unlock()
}

// ChangePassword rehashes and stores a new password for an existing account.
func (m *Manager) ChangePassword(username, password string) error {
	user, err := m.users.Get(username)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return m.users.Put(user)
}

// Remove hard-deletes an account. Existing sessions for it die on the next
// Validate since the user lookup fails.
func (m *Manager) Remove(username string) error {
	return m.users.Delete(username)
}

// List returns all accounts.
func (m *Manager) List() ([]model.User, error) {
	return m.users.List()
}

// Close closes the underlying account store.
func (m *Manager) Close() error {
	return m.users.Close()
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func parseStoredTime(s string) time.Time {
	t, _ := time.Parse(storedTimeLayout, s)
	return t
}
