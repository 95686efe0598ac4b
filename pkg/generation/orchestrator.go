package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/rs/zerolog/log"
)

// Store is the part of the conversation store the orchestrator drives.
type Store interface {
	Thread(id string) (*conversation.Channel, *conversation.Thread, error)
	Message(id string) (*conversation.Message, string, int, error)
	AppendMessageToThread(threadID string, role conversation.Role, parts []conversation.Part) (*conversation.Message, error)
	InsertMessageAfter(afterID string, role conversation.Role, parts []conversation.Part) (*conversation.Message, error)
	DeleteMessage(id string) error
	UpdateMessagePrimaryText(id string, text string) error
	AppendAlternative(messageID string, text string) (int, error)
	SetActivePartIndex(messageID string, index int) error
}

var _ Store = (*conversation.Store)(nil)

// Orchestrator runs generations against the conversation store. At most one
// generation is in flight per thread.
type Orchestrator struct {
	store        Store
	engine       engine.Engine
	sinks        []inference.EventSink
	defaultModel string

	mu       sync.Mutex
	inFlight map[string]*Generation
	wg       sync.WaitGroup
}

type Option func(*Orchestrator)

func WithEventSinks(sinks ...inference.EventSink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithDefaultModel sets the model used by channels that select "auto".
func WithDefaultModel(model string) Option {
	return func(o *Orchestrator) {
		o.defaultModel = model
	}
}

func NewOrchestrator(store Store, e engine.Engine, options ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		engine:       e,
		defaultModel: engine.DefaultModel,
		inFlight:     map[string]*Generation{},
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// InFlight reports whether a generation is active for the thread.
func (o *Orchestrator) InFlight(threadID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[threadID]
	return ok
}

// Close waits for every running generation to resolve.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) acquire(g *Generation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[g.ThreadID]; ok {
		return ErrInFlight
	}
	o.inFlight[g.ThreadID] = g
	return nil
}

func (o *Orchestrator) release(g *Generation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[g.ThreadID] == g {
		delete(o.inFlight, g.ThreadID)
	}
}

// SubmissionParts builds the parts of a user turn. Blank text is dropped, as
// are files without data.
func SubmissionParts(text string, files []conversation.FileData) []conversation.Part {
	var parts []conversation.Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, conversation.TextPart(text))
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			continue
		}
		parts = append(parts, conversation.FilePart(f.Name, f.MimeType, f.Data))
	}
	return parts
}

// Submit appends a user turn to the thread and starts generating the reply.
// An empty submission returns ErrEmptySubmission and changes nothing. A
// submission while the thread has a generation in flight returns ErrInFlight
// and changes nothing.
func (o *Orchestrator) Submit(ctx context.Context, threadID string, text string, files []conversation.FileData) (*Generation, error) {
	parts := SubmissionParts(text, files)
	if len(parts) == 0 {
		return nil, ErrEmptySubmission
	}

	g := newGeneration(threadID, events.ModeReply, "", "")
	if err := o.acquire(g); err != nil {
		return nil, err
	}
	prompt, err := o.store.AppendMessageToThread(threadID, conversation.RoleUser, parts)
	if err != nil {
		o.release(g)
		return nil, err
	}
	g.PromptID = prompt.ID

	t, opts, err := o.compile(threadID, -1)
	if err != nil {
		o.release(g)
		return nil, err
	}
	o.start(ctx, g, t, opts)
	return g, nil
}

// compile builds the transcript from the first upTo messages of the thread,
// or from the whole history when upTo is negative.
func (o *Orchestrator) compile(threadID string, upTo int, extra ...transcript.Option) (*transcript.Transcript, engine.Options, error) {
	ch, th, err := o.store.Thread(threadID)
	if err != nil {
		return nil, engine.Options{}, err
	}
	topts := append([]transcript.Option{}, extra...)
	if upTo >= 0 {
		topts = append(topts, transcript.UpTo(upTo))
	}
	return transcript.Compile(ch, th, topts...), engine.OptionsFromConfig(ch.Config, o.defaultModel), nil
}

func (o *Orchestrator) start(ctx context.Context, g *Generation, t *transcript.Transcript, opts engine.Options) {
	g.Model = opts.Model
	log.Debug().
		Str("generation_id", g.ID.String()).
		Str("thread_id", g.ThreadID).
		Str("mode", string(g.Mode)).
		Str("model", opts.Model).
		Bool("stream", opts.Stream).
		Int("entries", len(t.Entries)).
		Msg("starting generation")

	o.publish(events.NewStartEvent(g.metadata()))
	stream := o.engine.Generate(ctx, t, opts)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(ctx, g, stream)
	}()
}

// run consumes the event stream. Events after the terminal one are ignored; a
// stream that closes without a terminal event counts as a transport failure.
func (o *Orchestrator) run(ctx context.Context, g *Generation, stream <-chan engine.Event) {
	started := time.Now()
	var err error

	defer func() {
		g.mu.Lock()
		g.err = err
		if err != nil {
			g.phase = PhaseFailed
		} else {
			g.phase = PhaseIdle
		}
		g.mu.Unlock()

		meta := g.metadata()
		d := time.Since(started).Milliseconds()
		meta.DurationMs = &d
		if err != nil {
			log.Warn().Err(err).Str("thread_id", g.ThreadID).Msg("generation failed")
			o.publish(events.NewErrorEvent(meta, err))
		} else {
			log.Debug().Str("thread_id", g.ThreadID).Str("message_id", meta.MessageID).Int64("duration_ms", d).Msg("generation finished")
			o.publish(events.NewFinalEvent(meta, g.Text()))
		}
		o.release(g)
		close(g.done)
	}()

	for {
		var (
			ev engine.Event
			ok bool
		)
		select {
		case ev, ok = <-stream:
		case <-ctx.Done():
			ev, ok = engine.Failed(ctx.Err()), true
		}
		if !ok {
			ev = engine.Failed(errors.New("stream ended without completion"))
		}

		switch ev.Type {
		case engine.EventChunk:
			o.applyChunk(g, ev.Text)
		case engine.EventComplete:
			g.setPhase(PhaseFinalizing)
			err = o.finalize(g, ev.Text)
			return
		case engine.EventError:
			o.rollback(g)
			err = NewTransportError(ev.Err)
			return
		default:
			log.Warn().Str("type", string(ev.Type)).Msg("ignoring unknown engine event")
		}
	}
}

func (o *Orchestrator) applyChunk(g *Generation, delta string) {
	if delta == "" {
		return
	}
	g.mu.Lock()
	g.text += delta
	text := g.text
	g.phase = PhaseStreaming
	messageID := g.messageID
	g.mu.Unlock()

	// alternatives are only committed once complete
	if g.Mode == events.ModeReply {
		if messageID == "" {
			messageID = o.createPlaceholder(g)
		}
		if messageID != "" {
			if err := o.store.UpdateMessagePrimaryText(messageID, text); err != nil {
				log.Warn().Err(err).Str("message_id", messageID).Msg("could not apply chunk")
			}
		}
	}

	o.publish(events.NewPartialCompletionEvent(g.metadata(), delta, text))
}

// createPlaceholder inserts the empty model message a streamed reply is
// written into, directly after the prompt.
func (o *Orchestrator) createPlaceholder(g *Generation) string {
	m, err := o.insertReply(g, "")
	if err != nil {
		log.Error().Err(err).Str("thread_id", g.ThreadID).Msg("could not create reply placeholder")
		return ""
	}
	g.mu.Lock()
	g.messageID = m.ID
	g.mu.Unlock()
	return m.ID
}

func (o *Orchestrator) insertReply(g *Generation, text string) (*conversation.Message, error) {
	parts := []conversation.Part{conversation.TextPart(text)}
	m, err := o.store.InsertMessageAfter(g.PromptID, conversation.RoleModel, parts)
	if errors.Is(err, conversation.ErrNotFound) {
		// the prompt was deleted while generating
		return o.store.AppendMessageToThread(g.ThreadID, conversation.RoleModel, parts)
	}
	return m, err
}

// finalize commits the completed reply. A store failure here fails the
// generation.
func (o *Orchestrator) finalize(g *Generation, rest string) error {
	g.mu.Lock()
	g.text += rest
	text := g.text
	messageID := g.messageID
	g.mu.Unlock()

	switch g.Mode {
	case events.ModeAlternative:
		if _, err := o.store.AppendAlternative(g.TargetID, text); err != nil {
			log.Error().Err(err).Str("message_id", g.TargetID).Msg("could not append alternative")
			return err
		}
	default:
		if messageID == "" {
			m, err := o.insertReply(g, text)
			if err != nil {
				log.Error().Err(err).Str("thread_id", g.ThreadID).Msg("could not append reply")
				return err
			}
			g.mu.Lock()
			g.messageID = m.ID
			g.mu.Unlock()
			return nil
		}
		if rest != "" {
			if err := o.store.UpdateMessagePrimaryText(messageID, text); err != nil {
				log.Error().Err(err).Str("message_id", messageID).Msg("could not apply final text")
				return err
			}
		}
	}
	return nil
}

// rollback removes the reply placeholder created by a failed generation. In
// alternative mode there is nothing to undo.
func (o *Orchestrator) rollback(g *Generation) {
	if g.Mode != events.ModeReply {
		return
	}
	g.mu.Lock()
	messageID := g.messageID
	g.messageID = ""
	g.mu.Unlock()
	if messageID == "" {
		return
	}
	if err := o.store.DeleteMessage(messageID); err != nil && !errors.Is(err, conversation.ErrNotFound) {
		log.Error().Err(err).Str("message_id", messageID).Msg("could not remove failed reply")
	}
}

func (o *Orchestrator) publish(e events.Event) {
	for _, s := range o.sinks {
		if err := s.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("could not publish event")
		}
	}
}
