package conversation

import (
	"strings"
	"unicode/utf8"

	"github.com/huandu/go-clone"
	"github.com/rs/zerolog/log"
)

func newMessage(role Role, parts []Part) *Message {
	return &Message{
		ID:              NewID("msg"),
		Role:            role,
		Parts:           clone.Clone(parts).([]Part),
		ActivePartIndex: 0,
	}
}

func validateMessage(role Role, parts []Part) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Reason: "must be user or model"}
	}
	if len(parts) == 0 {
		return &ValidationError{Field: "parts", Reason: "a message needs at least one part"}
	}
	for _, p := range parts {
		if p.IsText() == p.IsFile() {
			return &ValidationError{Field: "parts", Reason: "each part must be either text or file"}
		}
	}
	return nil
}

// AppendMessage appends a message to the current thread.
func (s *Store) AppendMessage(role Role, parts []Part) (*Message, error) {
	s.mu.Lock()
	threadID := s.state.CurrentThreadID
	s.mu.Unlock()
	return s.AppendMessageToThread(threadID, role, parts)
}

// AppendMessageToThread appends a message to the given thread. The first
// message of a thread that still carries the default name gives the thread
// its title.
func (s *Store) AppendMessageToThread(threadID string, role Role, parts []Part) (*Message, error) {
	if err := validateMessage(role, parts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.state.FindThread(threadID)
	if t == nil {
		return nil, &NotFoundError{Kind: "thread", ID: threadID}
	}
	m := newMessage(role, parts)
	t.History = append(t.History, m)
	if len(t.History) == 1 && strings.HasPrefix(t.Name, DefaultThreadNamePrefix) {
		if title := autoTitle(parts); title != "" {
			t.Name = title
		}
	}

	log.Debug().Str("thread_id", t.ID).Str("message_id", m.ID).Str("role", string(role)).Msg("appended message")
	s.persistLocked()
	return clone.Clone(m).(*Message), nil
}

// InsertMessageAfter inserts a message directly after an existing one in the
// same thread.
func (s *Store) InsertMessageAfter(afterID string, role Role, parts []Part) (*Message, error) {
	if err := validateMessage(role, parts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, _, idx := s.state.FindMessage(afterID)
	if t == nil {
		return nil, &NotFoundError{Kind: "message", ID: afterID}
	}
	m := newMessage(role, parts)
	history := make([]*Message, 0, len(t.History)+1)
	history = append(history, t.History[:idx+1]...)
	history = append(history, m)
	history = append(history, t.History[idx+1:]...)
	t.History = history

	log.Debug().Str("thread_id", t.ID).Str("message_id", m.ID).Str("after", afterID).Msg("inserted message")
	s.persistLocked()
	return clone.Clone(m).(*Message), nil
}

func autoTitle(parts []Part) string {
	for _, p := range parts {
		if !p.IsText() || p.GetText() == "" {
			continue
		}
		text := p.GetText()
		if utf8.RuneCountInString(text) <= AutoTitleLength {
			return text
		}
		return string([]rune(text)[:AutoTitleLength])
	}
	return ""
}

func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, _, idx := s.state.FindMessage(id)
	if t == nil {
		return &NotFoundError{Kind: "message", ID: id}
	}
	t.History = append(t.History[:idx], t.History[idx+1:]...)

	log.Debug().Str("thread_id", t.ID).Str("message_id", id).Msg("deleted message")
	s.persistLocked()
	return nil
}

// UpdateMessagePrimaryText replaces the text of the active part. If the
// active part is a file, the first text part is replaced instead, and if the
// message has no text part at all one is appended. File parts are kept.
func (s *Store) UpdateMessagePrimaryText(id string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, m, _ := s.state.FindMessage(id)
	if m == nil {
		return &NotFoundError{Kind: "message", ID: id}
	}
	setPrimaryText(m, text)
	s.persistLocked()
	return nil
}

func setPrimaryText(m *Message, text string) {
	if m.ActivePartIndex < len(m.Parts) && m.Parts[m.ActivePartIndex].IsText() {
		m.Parts[m.ActivePartIndex] = TextPart(text)
		return
	}
	for i, p := range m.Parts {
		if p.IsText() {
			m.Parts[i] = TextPart(text)
			return
		}
	}
	m.Parts = append(m.Parts, TextPart(text))
}

// AppendAlternative adds a new generation to a model message and makes it the
// active part. It returns the index of the new part.
func (s *Store) AppendAlternative(messageID string, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, m, _ := s.state.FindMessage(messageID)
	if m == nil {
		return -1, &NotFoundError{Kind: "message", ID: messageID}
	}
	m.Parts = append(m.Parts, TextPart(text))
	m.ActivePartIndex = len(m.Parts) - 1

	log.Debug().
		Str("thread_id", t.ID).
		Str("message_id", m.ID).
		Int("alternatives", len(m.Parts)).
		Msg("appended alternative")
	s.persistLocked()
	return m.ActivePartIndex, nil
}

// SetActivePartIndex selects an alternative and truncates every message that
// follows the target in its thread. Out of range indices are rejected without
// any change.
func (s *Store) SetActivePartIndex(messageID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, m, idx := s.state.FindMessage(messageID)
	if m == nil {
		return &NotFoundError{Kind: "message", ID: messageID}
	}
	if index < 0 || index >= len(m.Parts) {
		return &ValidationError{Field: "index", Reason: "out of range"}
	}
	m.ActivePartIndex = index
	dropped := len(t.History) - (idx + 1)
	t.History = t.History[:idx+1]

	log.Debug().
		Str("thread_id", t.ID).
		Str("message_id", m.ID).
		Int("index", index).
		Int("truncated", dropped).
		Msg("switched active part")
	s.persistLocked()
	return nil
}
