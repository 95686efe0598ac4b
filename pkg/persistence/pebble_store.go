package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
)

// PebbleStore keeps the snapshot as a single value under SnapshotKey in a
// pebble database directory.
type PebbleStore struct {
	mu     sync.Mutex
	path   string
	key    []byte
	db     *pebble.DB
	closed bool
}

var _ Adapter = (*PebbleStore)(nil)

func NewPebbleStore(path string) (*PebbleStore, error) {
	if path == "" {
		return nil, fmt.Errorf("pebble state store: empty path")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open pebble database %s", path)
	}
	return &PebbleStore{path: path, key: []byte(SnapshotKey), db: db}, nil
}

func (s *PebbleStore) Load(_ context.Context) (*conversation.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get(s.key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not read snapshot")
	}
	// v is only valid until closer is closed
	payload := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return Decode(payload, FormatJSON)
}

func (s *PebbleStore) Save(_ context.Context, state *conversation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	payload, err := Encode(state, FormatJSON)
	if err != nil {
		return err
	}
	if err := s.db.Set(s.key, payload, pebble.Sync); err != nil {
		return errors.Wrap(err, "could not write snapshot")
	}
	return nil
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *PebbleStore) ensureOpen() error {
	if s.closed {
		return fmt.Errorf("pebble state store closed")
	}
	return nil
}
