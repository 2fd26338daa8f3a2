package audiostore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store manages on-disk persistence of generated audio artifacts under
// a single root directory. Filenames are derived from unique task ids,
// so whole-file writes never race.
type Store struct {
	root string
}

// New creates the storage root if it does not exist yet.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute location of an artifact.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.root, filename)
}

// Save writes an artifact as a whole file.
func (s *Store) Save(filename string, data []byte) error {
	if err := os.WriteFile(s.Path(filename), data, 0644); err != nil {
		return fmt.Errorf("failed to save audio file: %w", err)
	}
	return nil
}

// Read returns an artifact's bytes.
func (s *Store) Read(filename string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	return data, nil
}

// Exists reports whether an artifact is present on disk.
func (s *Store) Exists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Delete removes an artifact. Idempotent: returns false when the file
// was already absent, true when it was removed.
func (s *Store) Delete(filename string) bool {
	path := s.Path(filename)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return os.Remove(path) == nil
}
