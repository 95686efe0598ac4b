package engine

import (
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/stretchr/testify/assert"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := conversation.DefaultChannelConfig()

	opts := OptionsFromConfig(cfg, "")
	assert.Equal(t, DefaultModel, opts.Model)
	assert.True(t, opts.Stream)
	assert.Equal(t, conversation.DefaultMaxOutputTokens, opts.MaxOutputTokens)
	assert.Nil(t, opts.TopK)

	opts = OptionsFromConfig(cfg, "gemini-1.5-pro-latest")
	assert.Equal(t, "gemini-1.5-pro-latest", opts.Model)

	model := "gpt-4o-mini"
	k := 20
	cfg.SelectedModel = &model
	cfg.GenerationConfig.TopK = &k
	cfg.UseWebSearch = true
	opts = OptionsFromConfig(cfg, "gemini-1.5-pro-latest")
	assert.Equal(t, model, opts.Model)
	assert.True(t, opts.UseWebSearch)
	k = 30
	assert.Equal(t, 20, *opts.TopK, "options do not alias the config")
}

func TestEventConstructors(t *testing.T) {
	assert.False(t, Chunk("x").IsTerminal())
	assert.True(t, Complete("").IsTerminal())

	e := Failed(nil)
	assert.True(t, e.IsTerminal())
	assert.Error(t, e.Err)

	e = Failedf("quota %s", "exceeded")
	assert.Equal(t, "quota exceeded", e.Err.Error())
}
