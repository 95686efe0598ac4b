package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
)

// FileStore keeps the snapshot in a single JSON (or YAML, by extension) file.
// Saves write a temporary file next to the target and rename it into place.
type FileStore struct {
	mu     sync.Mutex
	path   string
	format Format
	closed bool
}

var _ Adapter = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file state store: empty path")
	}
	return &FileStore{path: path, format: FormatForPath(path)}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (*conversation.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "could not read %s", s.path)
	}
	return Decode(b, s.format)
}

func (s *FileStore) Save(_ context.Context, state *conversation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	b, err := Encode(state, s.format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) ensureOpen() error {
	if s.closed {
		return fmt.Errorf("file state store closed")
	}
	return nil
}
