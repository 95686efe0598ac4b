package generation

import (
	"context"
	"sync"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/google/uuid"
)

// Phase is the state of a generation's lifecycle. PhaseIdle and PhaseFailed
// are terminal. PhaseFailed reports how the generation ended; the thread itself
// is free again once a generation reaches it, and InFlight reports false.
type Phase string

const (
	PhaseSending    Phase = "sending"
	PhaseStreaming  Phase = "streaming"
	PhaseFinalizing Phase = "finalizing"
	PhaseIdle       Phase = "idle"
	PhaseFailed     Phase = "failed"
)

// Generation is the handle of one request lifecycle. It is safe for
// concurrent use.
type Generation struct {
	ID       uuid.UUID
	ThreadID string
	Mode     events.Mode
	// PromptID is the user message the reply answers.
	PromptID string
	// TargetID is the model message receiving a new alternative, set only in
	// alternative mode.
	TargetID string
	Model    string

	mu        sync.Mutex
	phase     Phase
	messageID string
	text      string
	err       error
	done      chan struct{}
}

func newGeneration(threadID string, mode events.Mode, promptID string, targetID string) *Generation {
	return &Generation{
		ID:        uuid.New(),
		ThreadID:  threadID,
		Mode:      mode,
		PromptID:  promptID,
		TargetID:  targetID,
		phase:     PhaseSending,
		messageID: targetID,
		done:      make(chan struct{}),
	}
}

// Wait blocks until the generation resolved and returns its error, which is a
// *TransportError on transport failure.
func (g *Generation) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Generation) Done() <-chan struct{} {
	return g.done
}

// MessageID is the model message written by the generation. It is empty
// until the reply message exists.
func (g *Generation) MessageID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.messageID
}

// Text is the reply text accumulated so far.
func (g *Generation) Text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

func (g *Generation) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Generation) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *Generation) setPhase(p Phase) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = p
}

func (g *Generation) metadata() events.EventMetadata {
	g.mu.Lock()
	defer g.mu.Unlock()
	return events.EventMetadata{
		ID:        g.ID,
		ThreadID:  g.ThreadID,
		MessageID: g.messageID,
		Mode:      g.Mode,
		Model:     g.Model,
	}
}
