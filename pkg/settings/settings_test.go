package settings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/persistence"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "file", s.StateBackend)
	assert.Equal(t, engine.DefaultModel, s.DefaultModel)
	assert.Equal(t, 30*time.Millisecond, s.EchoDelay)
}

func TestLoadOverrides(t *testing.T) {
	v := newViper()
	v.Set("api-key", "g-key")
	v.Set("openai-api-key", "o-key")
	v.Set("state-backend", "sqlite")
	v.Set("echo-delay", "0s")

	s, err := Load(v)
	require.NoError(t, err)
	cfg := s.RouterConfig()
	assert.Equal(t, "g-key", cfg.GeminiAPIKey)
	assert.Equal(t, "o-key", cfg.OpenAIAPIKey)
	assert.Equal(t, time.Duration(0), cfg.EchoDelay)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("PARLEY_STATE_BACKEND", "memory")
	v := newViper()
	ConfigureEnv(v)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.StateBackend)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	v := newViper()
	v.Set("state-backend", "postgres")
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StateBackend")

	v = newViper()
	v.Set("gemini-base-url", "not a url")
	_, err = Load(v)
	assert.Error(t, err)
}

func TestOpenAdapter(t *testing.T) {
	dir := t.TempDir()
	s := &AppSettings{StateBackend: "sqlite", StatePath: filepath.Join(dir, "nested", "state.db")}
	a, err := s.OpenAdapter()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	_, ok := a.(*persistence.SQLiteStore)
	assert.True(t, ok)

	s = &AppSettings{StateBackend: "memory"}
	a, err = s.OpenAdapter()
	require.NoError(t, err)
	_, ok = a.(*persistence.MemoryStore)
	assert.True(t, ok)
}

func TestValidateRejectsNegativeEchoDelay(t *testing.T) {
	v := newViper()
	v.Set("echo-delay", "-5ms")
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EchoDelay")
}
