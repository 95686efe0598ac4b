package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huandu/go-clone"
	"github.com/rs/zerolog/log"
)

// Persister receives the full tree after every mutation. The state pointer is
// only valid for the duration of the call: implementations must serialize it
// before returning and must not retain it.
type Persister interface {
	Save(ctx context.Context, state *State) error
}

// Store owns the in-memory conversation tree. All mutations are serialized by
// a single mutex, either apply completely or not at all, and conclude by
// handing the tree to the Persister. Read accessors return deep copies.
type Store struct {
	mu             sync.Mutex
	state          *State
	persister      Persister
	persistTimeout time.Duration
	lastPersistErr error
	now            func() time.Time
}

type StoreOption func(*Store)

func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.persister = p
	}
}

func WithPersistTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.persistTimeout = d
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore wraps state (or a fresh tree when nil). The state is normalized so
// that the structural invariants hold from the start.
func NewStore(state *State, options ...StoreOption) *Store {
	s := &Store{
		state:          Normalize(state),
		persistTimeout: 10 * time.Second,
		now:            time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// persistLocked must be called with s.mu held. Failures are logged and
// remembered but never returned to the caller of the mutation.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.state); err != nil {
		s.lastPersistErr = &PersistenceError{Op: "save", Err: err}
		log.Error().Err(err).Msg("failed to persist conversation state")
		return
	}
	s.lastPersistErr = nil
}

// LastPersistError returns the error of the most recent failed save, or nil
// if the last save succeeded.
func (s *Store) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersistErr
}

// Persist forces a save of the current tree.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
	return s.lastPersistErr
}

func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Clone(s.state).(*State)
}

func (s *Store) Channels() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Clone(s.state.Channels).([]*Channel)
}

func (s *Store) Channel(id string) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.state.Channel(id)
	if ch == nil {
		return nil, &NotFoundError{Kind: "channel", ID: id}
	}
	return clone.Clone(ch).(*Channel), nil
}

// Thread returns copies of the thread and its owning channel.
func (s *Store) Thread(id string) (*Channel, *Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, t := s.state.FindThread(id)
	if t == nil {
		return nil, nil, &NotFoundError{Kind: "thread", ID: id}
	}
	return clone.Clone(ch).(*Channel), clone.Clone(t).(*Thread), nil
}

// Message returns a copy of the message, the id of its thread and its index
// in the thread history.
func (s *Store) Message(id string) (*Message, string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, m, idx := s.state.FindMessage(id)
	if m == nil {
		return nil, "", -1, &NotFoundError{Kind: "message", ID: id}
	}
	return clone.Clone(m).(*Message), t.ID, idx, nil
}

func (s *Store) CurrentChannel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.state.Channel(s.state.CurrentChannelID)
	if ch == nil {
		return nil
	}
	return clone.Clone(ch).(*Channel)
}

func (s *Store) CurrentThread() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, t := s.currentLocked()
	if t == nil {
		return nil
	}
	return clone.Clone(t).(*Thread)
}

func (s *Store) currentLocked() (*Channel, *Thread) {
	ch := s.state.Channel(s.state.CurrentChannelID)
	if ch == nil {
		return nil, nil
	}
	return ch, ch.Thread(s.state.CurrentThreadID)
}

// AddChannel prepends a new channel seeded from the default settings and
// selects it together with its first thread.
func (s *Store) AddChannel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s %d", DefaultChannelNamePrefix, len(s.state.Channels)+1)
	ch := NewChannel(name, s.state.DefaultSettings)
	s.state.Channels = append([]*Channel{ch}, s.state.Channels...)
	s.state.CurrentChannelID = ch.ID
	s.state.CurrentThreadID = ch.Threads[0].ID

	log.Debug().Str("channel_id", ch.ID).Str("name", name).Msg("added channel")
	s.persistLocked()
	return clone.Clone(ch).(*Channel)
}

// AddThread prepends a new thread to the channel and selects it.
func (s *Store) AddThread(channelID string) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(channelID)
	if ch == nil {
		return nil, &NotFoundError{Kind: "channel", ID: channelID}
	}
	name := fmt.Sprintf("%s %d", NewThreadNamePrefix, len(ch.Threads)+1)
	t := NewThread(name, s.state.DefaultSettings.Thread)
	ch.Threads = append([]*Thread{t}, ch.Threads...)
	s.state.CurrentChannelID = ch.ID
	s.state.CurrentThreadID = t.ID

	log.Debug().Str("channel_id", ch.ID).Str("thread_id", t.ID).Msg("added thread")
	s.persistLocked()
	return clone.Clone(t).(*Thread), nil
}

// DeleteChannel removes a channel. Deleting the last channel is rejected with
// a CapacityError and leaves the tree untouched.
func (s *Store) DeleteChannel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, ch := range s.state.Channels {
		if ch.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: "channel", ID: id}
	}
	if len(s.state.Channels) <= 1 {
		return &CapacityError{Kind: "channel", ID: id}
	}

	s.state.Channels = append(s.state.Channels[:idx], s.state.Channels[idx+1:]...)
	if s.state.CurrentChannelID == id {
		first := s.state.Channels[0]
		s.state.CurrentChannelID = first.ID
		s.state.CurrentThreadID = first.Threads[0].ID
	}

	log.Debug().Str("channel_id", id).Msg("deleted channel")
	s.persistLocked()
	return nil
}

// DeleteThread removes a thread from its channel. Deleting the last thread of
// a channel is rejected with a CapacityError.
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, t := s.state.FindThread(id)
	if t == nil {
		return &NotFoundError{Kind: "thread", ID: id}
	}
	if len(ch.Threads) <= 1 {
		return &CapacityError{Kind: "thread", ID: id}
	}

	threads := make([]*Thread, 0, len(ch.Threads)-1)
	for _, other := range ch.Threads {
		if other.ID != id {
			threads = append(threads, other)
		}
	}
	ch.Threads = threads
	if s.state.CurrentThreadID == id {
		s.state.CurrentThreadID = ch.Threads[0].ID
	}

	log.Debug().Str("thread_id", id).Str("channel_id", ch.ID).Msg("deleted thread")
	s.persistLocked()
	return nil
}

// SelectChannel makes the channel current and resets the current thread to
// the channel's first thread.
func (s *Store) SelectChannel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(id)
	if ch == nil {
		return &NotFoundError{Kind: "channel", ID: id}
	}
	if s.state.CurrentChannelID == id {
		return nil
	}
	s.state.CurrentChannelID = ch.ID
	s.state.CurrentThreadID = ch.Threads[0].ID
	s.persistLocked()
	return nil
}

// SelectThread makes the thread current, switching the current channel to
// its owner if needed.
func (s *Store) SelectThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, t := s.state.FindThread(id)
	if t == nil {
		return &NotFoundError{Kind: "thread", ID: id}
	}
	if s.state.CurrentThreadID == id && s.state.CurrentChannelID == ch.ID {
		return nil
	}
	s.state.CurrentChannelID = ch.ID
	s.state.CurrentThreadID = t.ID
	s.persistLocked()
	return nil
}

func (s *Store) RenameChannel(id string, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(id)
	if ch == nil {
		return &NotFoundError{Kind: "channel", ID: id}
	}
	ch.Name = name
	s.persistLocked()
	return nil
}

func (s *Store) RenameThread(id string, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.state.FindThread(id)
	if t == nil {
		return &NotFoundError{Kind: "thread", ID: id}
	}
	t.Name = name
	s.persistLocked()
	return nil
}

// Import replaces the whole tree. There is no merge.
func (s *Store) Import(state *State) {
	var imported *State
	if state == nil {
		imported = NewState()
	} else {
		imported = Normalize(clone.Clone(state).(*State))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = imported
	log.Info().Int("channels", len(imported.Channels)).Msg("imported conversation state")
	s.persistLocked()
}
