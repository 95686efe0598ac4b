package persistence

import (
	"context"
	"fmt"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// SnapshotKey is the fixed key the whole application state is stored under.
const SnapshotKey = "parley-app-state-v9"

// Adapter loads and saves the single application snapshot. Load returns a nil
// state and no error when nothing has been saved yet. Save overwrites the
// previous snapshot (last writer wins).
type Adapter interface {
	Load(ctx context.Context) (*conversation.State, error)
	Save(ctx context.Context, state *conversation.State) error
	Close() error
}

type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendPebble Backend = "pebble"
	BackendMemory Backend = "memory"
)

// Open creates the adapter for the given backend. path is the snapshot file
// for the file backend, the database file for the sqlite backend and the
// database directory for the pebble backend.
func Open(backend Backend, path string) (Adapter, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		dsn, err := SQLiteDSNForFile(path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	case BackendPebble:
		return NewPebbleStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// LoadOrInit loads the snapshot, falling back to a fresh tree when the store
// is empty.
func LoadOrInit(ctx context.Context, a Adapter) (*conversation.State, error) {
	state, err := a.Load(ctx)
	if err != nil {
		return nil, &conversation.PersistenceError{Op: "load", Err: err}
	}
	if state == nil {
		return conversation.NewState(), nil
	}
	return state, nil
}
