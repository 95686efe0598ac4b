package generation

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/rs/zerolog/log"
)

// Navigator implements retry and version switching on top of an
// orchestrator.
type Navigator struct {
	o *Orchestrator
}

func NewNavigator(o *Orchestrator) *Navigator {
	return &Navigator{o: o}
}

// RetryMessage regenerates the reply around a message.
//
// For a user message the model reply directly following it is deleted and a
// new one is generated from the history up to and including the message. The
// user message itself is reused, and the new reply is inserted right after
// it.
//
// For a model message the history up to the preceding user message is sent
// again and the result is appended to the message as a new alternative.
//
// Retries never attach the channel's shared files.
func (n *Navigator) RetryMessage(ctx context.Context, id string) (*Generation, error) {
	m, threadID, _, err := n.o.store.Message(id)
	if err != nil {
		return nil, err
	}
	if m.Role == conversation.RoleUser {
		return n.retryUser(ctx, threadID, m)
	}
	return n.retryModel(ctx, threadID, m)
}

func (n *Navigator) retryUser(ctx context.Context, threadID string, m *conversation.Message) (*Generation, error) {
	hasContent := false
	for _, p := range m.Parts {
		if !p.IsEmpty() {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return nil, ErrEmptySubmission
	}

	g := newGeneration(threadID, events.ModeReply, m.ID, "")
	if err := n.o.acquire(g); err != nil {
		return nil, err
	}

	_, th, err := n.o.store.Thread(threadID)
	if err != nil {
		n.o.release(g)
		return nil, err
	}
	idx := th.MessageIndex(m.ID)
	if idx < 0 {
		n.o.release(g)
		return nil, &conversation.NotFoundError{Kind: "message", ID: m.ID}
	}
	if idx+1 < len(th.History) && th.History[idx+1].Role == conversation.RoleModel {
		next := th.History[idx+1].ID
		if err := n.o.store.DeleteMessage(next); err != nil {
			n.o.release(g)
			return nil, err
		}
		log.Debug().Str("message_id", next).Msg("deleted reply before retry")
	}

	t, opts, err := n.o.compile(threadID, idx+1, transcript.WithoutSharedFiles())
	if err != nil {
		n.o.release(g)
		return nil, err
	}
	n.o.start(ctx, g, t, opts)
	return g, nil
}

func (n *Navigator) retryModel(ctx context.Context, threadID string, m *conversation.Message) (*Generation, error) {
	_, th, err := n.o.store.Thread(threadID)
	if err != nil {
		return nil, err
	}
	idx := th.MessageIndex(m.ID)
	prompt := -1
	for i := idx - 1; i >= 0; i-- {
		if th.History[i].Role == conversation.RoleUser {
			prompt = i
			break
		}
	}
	if prompt < 0 {
		return nil, ErrNoPrompt
	}

	g := newGeneration(threadID, events.ModeAlternative, th.History[prompt].ID, m.ID)
	if err := n.o.acquire(g); err != nil {
		return nil, err
	}
	t, opts, err := n.o.compile(threadID, prompt+1, transcript.WithoutSharedFiles())
	if err != nil {
		n.o.release(g)
		return nil, err
	}
	n.o.start(ctx, g, t, opts)
	return g, nil
}

// SwitchVersion selects another alternative of a message and deletes every
// message after it. It is rejected while the thread has a generation in
// flight.
func (n *Navigator) SwitchVersion(id string, index int) error {
	_, threadID, _, err := n.o.store.Message(id)
	if err != nil {
		return err
	}

	n.o.mu.Lock()
	defer n.o.mu.Unlock()
	if _, ok := n.o.inFlight[threadID]; ok {
		return ErrInFlight
	}
	return n.o.store.SetActivePartIndex(id, index)
}
