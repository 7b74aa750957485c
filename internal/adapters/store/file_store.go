package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore is a filesystem implementation of the ModelStore interface.
// Each artifact is one JSON file in the store directory; keys are
// sanitized into file names. A corrupt or unreadable artifact is treated
// as absent so callers fall back to fresh defaults.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a file store rooted at the given directory
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Load retrieves an artifact by key
func (s *FileStore) Load(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read artifact", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Save stores an artifact under the given key. The file is written to a
// temporary name first so readers never observe a partial artifact.
func (s *FileStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace artifact: %w", err)
	}
	return nil
}

// List returns all stored keys with the given prefix
func (s *FileStore) List(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := unsanitize(strings.TrimSuffix(entry.Name(), ".json"))
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+".json")
}

// sanitize maps a key to a safe file name. Colons separate key
// namespaces and are the only special character keys may contain.
func sanitize(key string) string {
	return strings.ReplaceAll(key, ":", "__")
}

func unsanitize(name string) string {
	return strings.ReplaceAll(name, "__", ":")
}
