package helpers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWatermillAdapterMapsLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	a := NewWatermill(logger)

	a.Info("chatty", watermill.LogFields{"k": "v"})
	assert.Empty(t, buf.String(), "info is demoted to debug")

	a.With(watermill.LogFields{"topic": "chat"}).Error("boom", errors.New("bad"), nil)
	assert.Contains(t, buf.String(), `"topic":"chat"`)
	assert.Contains(t, buf.String(), `"error":"bad"`)
}
