package persistence

import (
	"context"
	"sync"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// MemoryStore keeps the encoded snapshot in memory. It goes through the same
// codec as the durable stores.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

var _ Adapter = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWithData seeds the store with a raw snapshot document.
func NewMemoryStoreWithData(data []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), data...)}
}

func (s *MemoryStore) Load(_ context.Context) (*conversation.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return Decode(s.data, FormatJSON)
}

func (s *MemoryStore) Save(_ context.Context, state *conversation.State) error {
	b, err := Encode(state, FormatJSON)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = b
	s.saves++
	return nil
}

func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

func (s *MemoryStore) Close() error { return nil }
