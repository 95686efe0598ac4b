package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/inference/engine/factory"
	"github.com/go-go-golems/parley/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// AppSettings holds everything parley reads from flags, environment and the
// config file.
type AppSettings struct {
	APIKey        string        `mapstructure:"api-key"`
	GeminiBaseURL string        `mapstructure:"gemini-base-url" validate:"omitempty,url"`
	OpenAIAPIKey  string        `mapstructure:"openai-api-key"`
	OpenAIBaseURL string        `mapstructure:"openai-base-url" validate:"omitempty,url"`
	StateBackend  string        `mapstructure:"state-backend" validate:"oneof=file sqlite pebble memory"`
	StatePath     string        `mapstructure:"state-path"`
	DefaultModel  string        `mapstructure:"default-model"`
	EchoDelay     time.Duration `mapstructure:"echo-delay" validate:"gte=0s"`
}

// DefaultEchoDelay is the pause between words streamed by the echo model.
const DefaultEchoDelay = 30 * time.Millisecond

// SetDefaults registers every key so that environment variables are picked
// up by Unmarshal even without a config file entry.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api-key", "")
	v.SetDefault("gemini-base-url", "")
	v.SetDefault("openai-api-key", "")
	v.SetDefault("openai-base-url", "")
	v.SetDefault("state-backend", string(persistence.BackendFile))
	v.SetDefault("state-path", "")
	v.SetDefault("default-model", engine.DefaultModel)
	v.SetDefault("echo-delay", DefaultEchoDelay)
}

func Load(v *viper.Viper) (*AppSettings, error) {
	s := &AppSettings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *AppSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	return nil
}

// ResolvedStatePath returns the configured state path, or a default inside
// the user config directory.
func (s *AppSettings) ResolvedStatePath() (string, error) {
	if s.StatePath != "" {
		return s.StatePath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine config directory")
	}
	name := "state.json"
	switch persistence.Backend(s.StateBackend) {
	case persistence.BackendSQLite:
		name = "state.db"
	case persistence.BackendPebble:
		name = "state.pebble"
	}
	return filepath.Join(dir, "parley", name), nil
}

// OpenAdapter opens the configured persistence backend, creating the parent
// directory of the state file if needed.
func (s *AppSettings) OpenAdapter() (persistence.Adapter, error) {
	backend := persistence.Backend(s.StateBackend)
	if backend == persistence.BackendMemory {
		return persistence.Open(backend, "")
	}
	path, err := s.ResolvedStatePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "could not create state directory for %s", path)
	}
	return persistence.Open(backend, path)
}

func (s *AppSettings) RouterConfig() factory.Config {
	return factory.Config{
		GeminiAPIKey:  s.APIKey,
		GeminiBaseURL: s.GeminiBaseURL,
		OpenAIAPIKey:  s.OpenAIAPIKey,
		OpenAIBaseURL: s.OpenAIBaseURL,
		EchoDelay:     s.EchoDelay,
	}
}

var envReplacer = strings.NewReplacer("-", "_")

// ConfigureEnv makes v read PARLEY_* environment variables.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix("parley")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
}
