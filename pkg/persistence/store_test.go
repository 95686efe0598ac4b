package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) *conversation.State {
	t.Helper()
	s := conversation.NewStore(nil)
	_, err := s.AppendMessage(conversation.RoleUser, []conversation.Part{conversation.TextPart("hello")})
	require.NoError(t, err)
	m, err := s.AppendMessage(conversation.RoleModel, []conversation.Part{conversation.TextPart("A")})
	require.NoError(t, err)
	_, err = s.AppendAlternative(m.ID, "B")
	require.NoError(t, err)
	_, err = s.AddSharedFile(s.CurrentChannel().ID, "notes.txt", "text/plain", []byte("shared"))
	require.NoError(t, err)
	return s.Snapshot()
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing file means no snapshot")

	state := sampleState(t)
	require.NoError(t, store.Save(ctx, state))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	require.NoError(t, store.Close())
	_, err = store.Load(ctx)
	assert.Error(t, err)
}

func TestFileStoreYAMLByExtension(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	state := sampleState(t)
	require.NoError(t, store.Save(ctx, state))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "currentChannelId:")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	dsn, err := SQLiteDSNForFile(path)
	require.NoError(t, err)

	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	first := sampleState(t)
	require.NoError(t, store.Save(ctx, first))
	second := conversation.NewState()
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded, "last writer wins")
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state.pebble")

	store, err := NewPebbleStore(dir)
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	state := sampleState(t)
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Close())
	_, err = store.Load(ctx)
	assert.Error(t, err)

	reopened, err := NewPebbleStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(BackendFile, filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, a)

	a, err = Open(BackendSQLite, filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, a)
	require.NoError(t, a.Close())

	a, err = Open(BackendPebble, filepath.Join(dir, "state.pebble"))
	require.NoError(t, err)
	assert.IsType(t, &PebbleStore{}, a)
	require.NoError(t, a.Close())

	a, err = Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, a)

	_, err = Open(Backend("s3"), "")
	assert.Error(t, err)
}

func TestStorePersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()

	state, err := LoadOrInit(ctx, mem)
	require.NoError(t, err)
	store := conversation.NewStore(state, conversation.WithPersister(mem))

	ch := store.AddChannel()
	_, err = store.AddThread(ch.ID)
	require.NoError(t, err)
	_, err = store.AppendMessage(conversation.RoleUser, []conversation.Part{conversation.TextPart("persist me")})
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Saves())

	reloaded, err := LoadOrInit(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), reloaded)
}

func TestLoadOrInitWrapsErrors(t *testing.T) {
	mem := NewMemoryStoreWithData([]byte("garbage"))
	_, err := LoadOrInit(context.Background(), mem)
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrPersistence)
}
