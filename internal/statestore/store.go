package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrNotExists is returned when a document has never been saved.
var ErrNotExists = errors.New("statestore: document does not exist")

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Store persists named JSON documents under one directory. Writes go
// through a temp file and rename so a crash never leaves a half-written
// document behind.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("statestore: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) validateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("statestore: invalid document name: %q", name)
	}
	return nil
}

// Save marshals v and atomically replaces the named document.
func (s *Store) Save(name string, v any) error {
	if err := s.validateName(name); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("statestore: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("statestore: rename %s: %w", name, err)
	}
	return nil
}

// Load reads the named document into v. A missing file yields ErrNotExists
// so callers can fall back to defaults.
func (s *Store) Load(name string, v any) error {
	if err := s.validateName(name); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return fmt.Errorf("statestore: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("statestore: unmarshal %s: %w", name, err)
	}
	return nil
}

// Delete removes the named document. Deleting a missing document is not
// an error.
func (s *Store) Delete(name string) error {
	if err := s.validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("statestore: delete %s: %w", name, err)
	}
	return nil
}
