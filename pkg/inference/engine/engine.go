package engine

import (
	"context"

	"github.com/go-go-golems/parley/pkg/transcript"
)

// Engine is the transport to a generative model. Generate returns a channel
// of events for a single request: zero or more EventChunk (streaming only),
// then exactly one EventComplete or EventError, after which the channel is
// closed. Implementations must stop sending when ctx is done.
type Engine interface {
	Generate(ctx context.Context, t *transcript.Transcript, opts Options) <-chan Event
}

// ModelLister is implemented by engines that can enumerate the models they
// serve.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

type ModelInfo struct {
	ID               string
	DisplayName      string
	Description      string
	Version          string
	InputTokenLimit  int
	OutputTokenLimit int
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, t *transcript.Transcript, opts Options) <-chan Event

func (f EngineFunc) Generate(ctx context.Context, t *transcript.Transcript, opts Options) <-chan Event {
	return f(ctx, t, opts)
}
