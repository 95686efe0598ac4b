package echo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
)

// EchoEngine replies with the text of the last user turn. It needs no
// credentials and is used for offline runs and tests.
type EchoEngine struct {
	delay time.Duration
}

var _ engine.Engine = (*EchoEngine)(nil)
var _ engine.ModelLister = (*EchoEngine)(nil)

const ModelName = "echo"

// NewEchoEngine returns an engine waiting delay between streamed words.
func NewEchoEngine(delay time.Duration) *EchoEngine {
	return &EchoEngine{delay: delay}
}

func (e *EchoEngine) Generate(ctx context.Context, t *transcript.Transcript, opts engine.Options) <-chan engine.Event {
	out := make(chan engine.Event)
	go func() {
		defer close(out)
		emit := func(ev engine.Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reply, ok := Reply(t)
		if !ok {
			emit(engine.Failedf("transcript does not end with a user turn"))
			return
		}
		if !opts.Stream {
			emit(engine.Complete(reply))
			return
		}
		for _, word := range strings.SplitAfter(reply, " ") {
			if word == "" {
				continue
			}
			if e.delay > 0 {
				timer := time.NewTimer(e.delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					emit(engine.Failed(ctx.Err()))
					return
				}
			}
			if !emit(engine.Chunk(word)) {
				return
			}
		}
		emit(engine.Complete(""))
	}()
	return out
}

// Reply computes the echoed text for a transcript.
func Reply(t *transcript.Transcript) (string, bool) {
	last, ok := t.Last()
	if !ok || last.Role != conversation.RoleUser {
		return "", false
	}
	if text := last.Text(); text != "" {
		return text, true
	}
	return fmt.Sprintf("received %d attachment(s)", len(last.Parts)), true
}

func (e *EchoEngine) ListModels(ctx context.Context) ([]engine.ModelInfo, error) {
	return []engine.ModelInfo{{
		ID:          ModelName,
		DisplayName: "Echo",
		Description: "Repeats the last user message",
	}}, nil
}
