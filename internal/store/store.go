// Package store persists the auth token and user record between runs. The
// file is the only local state the agent keeps; presence of both values
// signals an active session.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/raorajnish/Fillora-Kaizen/internal/backend"
)

// Credentials mirrors the extension's local storage keys.
type Credentials struct {
	AuthToken string       `json:"authToken"`
	User      backend.User `json:"user"`
}

// Active reports whether both values are present.
func (c Credentials) Active() bool {
	return c.AuthToken != "" && c.User.Email != ""
}

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored credentials. A missing file is not an error; it
// returns empty credentials, which route the caller to the login flow.
func (s *Store) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	return creds, nil
}

// Save writes the credentials, creating the parent directory if needed.
// The file is user-readable only; it holds a bearer token.
func (s *Store) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the stored credentials. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: clear %s: %w", s.path, err)
	}
	return nil
}
