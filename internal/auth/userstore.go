package auth

import (
	"errors"

	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/model"
)

// ErrUserNotFound is returned by UserStore lookups for unknown usernames.
// It never leaks past the Manager; callers of Authenticate only ever see
// ErrRejected.
var ErrUserNotFound = errors.New("auth: user not found")

// UserStore is the injectable account backend. The JSON file store is the
// default; a SQLite store is available for deployments that want a real
// credential database without touching calling code.
type UserStore interface {
	Get(username string) (*model.User, error)
	Put(user *model.User) error
	Delete(username string) error
	List() ([]model.User, error)
	Count() (int, error)
	Close() error
}

// OpenUserStore creates the account backend selected by the configuration.
func OpenUserStore(cfg *config.Config) (UserStore, error) {
	if cfg.UserStore == "sqlite" {
		return OpenSQLiteUserStore(cfg.UsersFile + ".db")
	}
	return NewFileUserStore(cfg.UsersFile), nil
}
