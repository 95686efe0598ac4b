package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	transcript *transcript.Transcript
	opts       engine.Options
}

// scriptedEngine replays one scripted event sequence per call. When gate is
// set, every call waits for it to be closed before emitting anything. Events
// are sent exactly as scripted; the channel is closed afterwards.
type scriptedEngine struct {
	mu      sync.Mutex
	scripts [][]engine.Event
	calls   []call
	gate    chan struct{}
}

func newScriptedEngine(scripts ...[]engine.Event) *scriptedEngine {
	return &scriptedEngine{scripts: scripts}
}

func (s *scriptedEngine) Generate(ctx context.Context, t *transcript.Transcript, opts engine.Options) <-chan engine.Event {
	s.mu.Lock()
	s.calls = append(s.calls, call{transcript: t, opts: opts})
	var script []engine.Event
	if len(s.scripts) > 0 {
		script, s.scripts = s.scripts[0], s.scripts[1:]
	}
	gate := s.gate
	s.mu.Unlock()

	ch := make(chan engine.Event)
	go func() {
		defer close(ch)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return
			}
		}
		for _, e := range script {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (s *scriptedEngine) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) PublishEvent(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []events.EventType
	for _, e := range r.events {
		ret = append(ret, e.Type())
	}
	return ret
}

func wait(t *testing.T, g *Generation) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := g.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "generation did not resolve")
	return err
}

func setStream(t *testing.T, s *conversation.Store, stream bool) {
	t.Helper()
	require.NoError(t, s.UpdateChannelConfig(s.CurrentChannel().ID, func(cfg *conversation.ChannelConfig) {
		cfg.Stream = stream
	}))
}

func history(s *conversation.Store) []*conversation.Message {
	return s.CurrentThread().History
}

func TestStreamingAccumulation(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{
		engine.Chunk("Hel"),
		engine.Chunk("lo"),
		engine.Complete(""),
	})
	sink := &recordingSink{}
	o := NewOrchestrator(store, eng, WithEventSinks(sink))

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "hi", nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, g))

	h := history(store)
	require.Len(t, h, 2)
	assert.Equal(t, conversation.RoleUser, h[0].Role)
	assert.Equal(t, conversation.RoleModel, h[1].Role)
	require.Len(t, h[1].Parts, 1)
	assert.Equal(t, "Hello", h[1].ActiveText())
	assert.Equal(t, h[1].ID, g.MessageID())
	assert.Equal(t, "Hello", g.Text())
	assert.Equal(t, PhaseIdle, g.Phase())
	assert.False(t, o.InFlight(g.ThreadID))

	assert.Equal(t, []events.EventType{
		events.EventTypeStart,
		events.EventTypePartialCompletion,
		events.EventTypePartialCompletion,
		events.EventTypeFinal,
	}, sink.Types())

	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].opts.Stream)
	assert.Equal(t, engine.DefaultModel, calls[0].opts.Model)
	last, ok := calls[0].transcript.Last()
	require.True(t, ok)
	assert.Equal(t, "hi", last.Text())
}

func TestNonStreamingReply(t *testing.T) {
	store := conversation.NewStore(nil)
	setStream(t, store, false)
	eng := newScriptedEngine([]engine.Event{engine.Complete("full reply")})
	o := NewOrchestrator(store, eng, WithDefaultModel("gemini-1.5-pro-latest"))

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "hello", nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, g))

	h := history(store)
	require.Len(t, h, 2)
	assert.Equal(t, "full reply", h[1].ActiveText())
	assert.False(t, eng.Calls()[0].opts.Stream)
	assert.Equal(t, "gemini-1.5-pro-latest", eng.Calls()[0].opts.Model)
}

func TestRollbackOnFailure(t *testing.T) {
	store := conversation.NewStore(nil)
	setStream(t, store, false)
	eng := newScriptedEngine(
		[]engine.Event{engine.Failed(errors.New("quota exceeded"))},
		[]engine.Event{engine.Complete("ok")},
	)
	sink := &recordingSink{}
	o := NewOrchestrator(store, eng, WithEventSinks(sink))
	threadID := store.CurrentThread().ID

	g, err := o.Submit(context.Background(), threadID, "hello", nil)
	require.NoError(t, err)
	err = wait(t, g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "quota exceeded", terr.Message)
	assert.Equal(t, PhaseFailed, g.Phase())

	h := history(store)
	require.Len(t, h, 1)
	assert.Equal(t, conversation.RoleUser, h[0].Role)
	assert.False(t, o.InFlight(threadID))
	assert.Equal(t, events.EventTypeError, sink.Types()[len(sink.Types())-1])

	g, err = o.Submit(context.Background(), threadID, "again", nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, g))
	assert.Len(t, history(store), 3)
}

func TestStreamingFailureRemovesPlaceholder(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{
		engine.Chunk("partial"),
		engine.Failed(errors.New("connection reset")),
	})
	o := NewOrchestrator(store, eng)

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "hello", nil)
	require.NoError(t, err)
	require.Error(t, wait(t, g))

	h := history(store)
	require.Len(t, h, 1)
	assert.Equal(t, "hello", h[0].ActiveText())
	assert.Empty(t, g.MessageID())
}

func TestStreamEndingWithoutTerminalEventFails(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{engine.Chunk("dangling")})
	o := NewOrchestrator(store, eng)

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "hello", nil)
	require.NoError(t, err)
	err = wait(t, g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Len(t, history(store), 1)
}

func TestEventsAfterCompleteAreIgnored(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{
		engine.Chunk("done"),
		engine.Complete(""),
		engine.Chunk(" and more"),
		engine.Failed(errors.New("late")),
	})
	o := NewOrchestrator(store, eng)

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "hello", nil)
	require.NoError(t, err)
	require.NoError(t, wait(t, g))

	h := history(store)
	require.Len(t, h, 2)
	assert.Equal(t, "done", h[1].ActiveText())
}

func TestAtMostOneInFlight(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{engine.Complete("first")})
	eng.gate = make(chan struct{})
	o := NewOrchestrator(store, eng)
	threadID := store.CurrentThread().ID

	g, err := o.Submit(context.Background(), threadID, "one", nil)
	require.NoError(t, err)
	assert.True(t, o.InFlight(threadID))

	_, err = o.Submit(context.Background(), threadID, "two", nil)
	assert.True(t, errors.Is(err, ErrInFlight))
	require.Len(t, history(store), 1, "the rejected submit appends nothing")

	other, err := store.AddThread(store.CurrentChannel().ID)
	require.NoError(t, err)
	assert.False(t, o.InFlight(other.ID))

	close(eng.gate)
	require.NoError(t, wait(t, g))

	_, th, err := store.Thread(threadID)
	require.NoError(t, err)
	require.Len(t, th.History, 2)
	assert.Equal(t, "one", th.History[0].ActiveText())
	assert.Equal(t, "first", th.History[1].ActiveText())
	assert.Len(t, eng.Calls(), 1)
}

func TestEmptySubmissionIsIgnored(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine()
	o := NewOrchestrator(store, eng)

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "   ", []conversation.FileData{{Name: "empty.txt"}})
	assert.Nil(t, g)
	assert.True(t, errors.Is(err, ErrEmptySubmission))
	assert.True(t, errors.Is(err, conversation.ErrValidation))
	assert.Empty(t, history(store))
	assert.Empty(t, eng.Calls())
}

func TestSubmitWithFiles(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{engine.Complete("a cat")})
	o := NewOrchestrator(store, eng)

	g, err := o.Submit(context.Background(), store.CurrentThread().ID, "what is this?", []conversation.FileData{
		{Name: "cat.png", MimeType: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, g))

	h := history(store)
	require.Len(t, h[0].Parts, 2)
	assert.True(t, h[0].Parts[1].IsFile())

	last, ok := eng.Calls()[0].transcript.Last()
	require.True(t, ok)
	require.Len(t, last.Parts, 2)
	assert.Equal(t, "image/png", last.Parts[1].File.MimeType)
}

func TestSubmitUnknownThread(t *testing.T) {
	store := conversation.NewStore(nil)
	o := NewOrchestrator(store, newScriptedEngine())

	_, err := o.Submit(context.Background(), "thread-missing", "hello", nil)
	assert.True(t, errors.Is(err, conversation.ErrNotFound))
	assert.False(t, o.InFlight("thread-missing"))
}

func TestRepliesLandInTheirThreadAfterSelectionChanges(t *testing.T) {
	store := conversation.NewStore(nil)
	eng := newScriptedEngine([]engine.Event{engine.Chunk("late "), engine.Chunk("reply"), engine.Complete("")})
	eng.gate = make(chan struct{})
	o := NewOrchestrator(store, eng)
	threadID := store.CurrentThread().ID

	g, err := o.Submit(context.Background(), threadID, "hello", nil)
	require.NoError(t, err)

	store.AddChannel()
	close(eng.gate)
	require.NoError(t, wait(t, g))

	assert.Empty(t, history(store))
	_, th, err := store.Thread(threadID)
	require.NoError(t, err)
	require.Len(t, th.History, 2)
	assert.Equal(t, "late reply", th.History[1].ActiveText())
}
