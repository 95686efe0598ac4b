package main

import (
	"os"
	"testing"
	"time"

	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaultsMatchSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, initConfig(""))
	s, err := settings.Load(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultModel, s.DefaultModel)
	assert.Equal(t, 30*time.Millisecond, s.EchoDelay)
	assert.Equal(t, "file", s.StateBackend)
}
