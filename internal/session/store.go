package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/naveenspark/diagrama/pkg/domain"
)

// record is the on-disk shape of the session file.
type record struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Store is the durable session storage: a single JSON file written with
// owner-only permissions.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored session. A missing file is an empty session.
func (s *Store) Load() (domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Session{}, nil
		}
		return domain.Session{}, fmt.Errorf("session.Load: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("session.Load: parse %s: %w", s.path, err)
	}
	sess := domain.Session{Token: strings.TrimSpace(rec.Token)}
	if rec.UserID != "" || rec.Username != "" {
		sess.User = &domain.User{ID: domain.UserID(rec.UserID), Username: rec.Username}
	}
	return sess, nil
}

// Save writes sess to disk, creating the parent directory if needed.
func (s *Store) Save(sess domain.Session) error {
	rec := record{Token: sess.Token}
	if sess.User != nil {
		rec.UserID = string(sess.User.ID)
		rec.Username = sess.User.Username
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session.Save: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("session.Save: create dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session.Clear: %w", err)
	}
	return nil
}

// Token reads the stored token straight from disk, or "" when none is stored
// or the file is unreadable.
func (s *Store) Token() string {
	sess, err := s.Load()
	if err != nil {
		return ""
	}
	return sess.Token
}
