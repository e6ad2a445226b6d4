package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store backed by a single JSON file, created with user-only
// permissions.  It's the store of choice for CLI applications that want
// their session to survive a process restart.
type File struct {
	mu   sync.Mutex
	path string
}

// ensure that File implements the Store interface
var _ Store = (*File)(nil)

// NewFile creates a file-backed store at the given path.  The file itself is
// created lazily on the first Put; missing parent directories are created
// up front.
func NewFile(path string) (*File, error) {
	const op = "store.NewFile"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty", op)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%s: unable to create %s: %w", op, dir, err)
		}
	}
	return &File{path: path}, nil
}

// Put stores the value under the key, overwriting any prior value.
func (s *File) Put(key string, value string) error {
	const op = "File.Put"
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	record[key] = value
	if err := s.save(record); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get returns the value stored under the key, or ErrNotFound.
func (s *File) Get(key string) (string, error) {
	const op = "File.Get"
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.load()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	v, ok := record[key]
	if !ok {
		return "", fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	return v, nil
}

// DeleteAll deletes the backing file wholesale.  Deleting a store that was
// never written is not an error.
func (s *File) DeleteAll() error {
	const op = "File.DeleteAll"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: unable to remove %s: %w", op, s.path, err)
	}
	return nil
}

func (s *File) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", s.path, err)
	}
	record := map[string]string{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", s.path, err)
	}
	return record, nil
}

func (s *File) save(record map[string]string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("unable to encode record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("unable to write %s: %w", s.path, err)
	}
	return nil
}
