package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the snapshot shape produced by this package. Snapshots
// written by older clients carry a lower (or no) version and are backfilled
// on load.
const SchemaVersion = 9

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// FileData is an inline binary blob attached to a message part.
type FileData struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
}

// Part is one content unit of a message. Exactly one of Text or File is set.
// Text is a pointer so that an empty text part is distinguishable from a
// file part.
type Part struct {
	Text *string   `json:"text,omitempty"`
	File *FileData `json:"file,omitempty"`
}

func TextPart(text string) Part {
	return Part{Text: &text}
}

func FilePart(name, mimeType string, data []byte) Part {
	return Part{File: &FileData{Data: data, MimeType: mimeType, Name: name}}
}

func (p Part) IsText() bool { return p.Text != nil }
func (p Part) IsFile() bool { return p.File != nil }

// GetText returns the text of a text part, or "" for file parts.
func (p Part) GetText() string {
	if p.Text == nil {
		return ""
	}
	return *p.Text
}

// IsEmpty reports whether the part carries no content at all.
func (p Part) IsEmpty() bool {
	if p.File != nil {
		return len(p.File.Data) == 0
	}
	return strings.TrimSpace(p.GetText()) == ""
}

// Message is one turn of a thread. For model messages the parts are
// alternative generations of the same reply and only Parts[ActivePartIndex]
// is canonical. For user messages all parts belong to the turn.
type Message struct {
	ID              string `json:"id"`
	Role            Role   `json:"role"`
	Parts           []Part `json:"parts"`
	ActivePartIndex int    `json:"activePartIndex"`
}

// ActivePart returns the canonical part of the message.
func (m *Message) ActivePart() (Part, bool) {
	if m == nil || m.ActivePartIndex < 0 || m.ActivePartIndex >= len(m.Parts) {
		return Part{}, false
	}
	return m.Parts[m.ActivePartIndex], true
}

// ActiveText returns the text of the active part, or "" if it is a file.
func (m *Message) ActiveText() string {
	p, ok := m.ActivePart()
	if !ok {
		return ""
	}
	return p.GetText()
}

// CanonicalParts returns the parts that make up the turn: every part for a
// user message, only the active alternative for a model message.
func (m *Message) CanonicalParts() []Part {
	if m.Role == RoleModel {
		p, ok := m.ActivePart()
		if !ok {
			return nil
		}
		return []Part{p}
	}
	return m.Parts
}

type TogglePrompt struct {
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
}

// Effective returns the trimmed text when the prompt is enabled and non-empty.
func (p TogglePrompt) Effective() (string, bool) {
	text := strings.TrimSpace(p.Text)
	if !p.Enabled || text == "" {
		return "", false
	}
	return text, true
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature" validate:"gte=0,lte=2"`
	TopP            float64 `json:"top_p" validate:"gte=0,lte=1"`
	TopK            *int    `json:"top_k" validate:"omitempty,gte=1"`
	MaxOutputTokens int     `json:"max_output_tokens" validate:"gte=1"`
}

// ChannelConfig carries the generation parameters shared by every thread of
// a channel. A nil SelectedModel means "auto".
type ChannelConfig struct {
	Stream           bool             `json:"stream"`
	UseWebSearch     bool             `json:"useWebSearch"`
	SelectedModel    *string          `json:"selectedModel"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	DummyUserPrompt  TogglePrompt     `json:"dummyUserPrompt"`
	DummyModelPrompt TogglePrompt     `json:"dummyModelPrompt"`
	SystemPrompt     TogglePrompt     `json:"systemPrompt"`
}

// Model returns the selected model id, or "auto".
func (c ChannelConfig) Model() string {
	if c.SelectedModel == nil || *c.SelectedModel == "" {
		return ModelAuto
	}
	return *c.SelectedModel
}

// IconSettings holds optional icon images (data urls or paths).
type IconSettings struct {
	UserIcon  *string `json:"userIcon"`
	ModelIcon *string `json:"modelIcon"`
}

type SharedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Data       []byte    `json:"base64"`
	Size       int       `json:"size"`
	UploadDate time.Time `json:"uploadDate"`
}

type Thread struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	History         []*Message   `json:"history"`
	UiSettings      IconSettings `json:"uiSettings"`
	UseChannelIcons bool         `json:"useChannelIcons"`
	SystemPrompt    TogglePrompt `json:"systemPrompt"`
	UseChannelFiles bool         `json:"useChannelFiles"`
}

// MessageIndex returns the position of the message in the history or -1.
func (t *Thread) MessageIndex(id string) int {
	for i, m := range t.History {
		if m.ID == id {
			return i
		}
	}
	return -1
}

type Channel struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Config      ChannelConfig `json:"config"`
	Threads     []*Thread     `json:"threads"`
	UiSettings  IconSettings  `json:"uiSettings"`
	SharedFiles []SharedFile  `json:"sharedFiles"`
}

func (c *Channel) Thread(id string) *Thread {
	for _, t := range c.Threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

type GlobalUiSettings struct {
	BackgroundImage *string `json:"backgroundImage"`
}

// ModelInfo is one entry of the cached model catalogue.
type ModelInfo struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	Description      string `json:"description,omitempty"`
	Version          string `json:"version,omitempty"`
	InputTokenLimit  int    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int    `json:"outputTokenLimit,omitempty"`
}

type ThreadDefaults struct {
	SystemPrompt TogglePrompt `json:"systemPrompt"`
}

// DefaultSettings seeds newly created channels and threads.
type DefaultSettings struct {
	Channel ChannelConfig  `json:"channel"`
	Thread  ThreadDefaults `json:"thread"`
}

// State is the whole persisted application tree.
type State struct {
	SchemaVersion    int              `json:"schemaVersion"`
	Channels         []*Channel       `json:"channels"`
	CurrentChannelID string           `json:"currentChannelId"`
	CurrentThreadID  string           `json:"currentThreadId"`
	GlobalUiSettings GlobalUiSettings `json:"globalUiSettings"`
	AvailableModels  []ModelInfo      `json:"availableModels"`
	ModelsLoaded     bool             `json:"modelsLoaded"`
	DefaultSettings  DefaultSettings  `json:"defaultSettings"`
}

func (s *State) Channel(id string) *Channel {
	for _, c := range s.Channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindThread returns the thread with the given id and its owning channel.
func (s *State) FindThread(id string) (*Channel, *Thread) {
	for _, c := range s.Channels {
		if t := c.Thread(id); t != nil {
			return c, t
		}
	}
	return nil, nil
}

// FindMessage returns the message with the given id, its thread and its
// position in the thread history. Message ids are unique across the tree.
func (s *State) FindMessage(id string) (*Thread, *Message, int) {
	for _, c := range s.Channels {
		for _, t := range c.Threads {
			if i := t.MessageIndex(id); i >= 0 {
				return t, t.History[i], i
			}
		}
	}
	return nil, nil, -1
}

func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
