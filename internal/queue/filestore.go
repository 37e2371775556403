package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nmckee/stint/internal/domain"
)

// FileStore persists the queue as a JSON file separate from the main
// database, so pending writes survive both process restarts and the very
// storage outage that put them in the queue. Saves go through a temp file
// and rename for atomic whole-file replace.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type queueFile struct {
	Items []*domain.QueuedWrite `json:"items"`
}

func (s *FileStore) Load() ([]*domain.QueuedWrite, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading queue file: %w", err)
	}
	var f queueFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding queue file: %w", err)
	}
	return f.Items, nil
}

func (s *FileStore) Save(items []*domain.QueuedWrite) error {
	raw, err := json.MarshalIndent(queueFile{Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating queue directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("creating temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp queue file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}
