package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DirStore keeps one flat file per key under a directory, so golden
// values can be reviewed and versioned alongside the test file.
type DirStore struct {
	dir string

	mu sync.Mutex // serializes writes; reads go straight to the filesystem
}

// NewDirStore returns a store rooted at dir. The directory is created
// lazily on first write.
func NewDirStore(dir string) *DirStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &DirStore{dir: dir}
}

func (s *DirStore) path(key Key) string {
	return filepath.Join(s.dir, key.Name())
}

// Get returns the stored golden value, or ok=false if none exists.
func (s *DirStore) Get(key Key) (string, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Put stores a golden value only if none exists. Racing first-writes
// resolve to the first writer; later identical writes are no-ops.
func (s *DirStore) Put(key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(key)); err == nil {
		return nil
	}
	return s.write(key, value)
}

// Update overwrites the golden value unconditionally.
func (s *DirStore) Update(key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value)
}

func (s *DirStore) write(key Key, value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir %q: %w", s.dir, err)
	}
	if err := os.WriteFile(s.path(key), []byte(value), 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	return nil
}
