package conversation

import (
	"fmt"

	"github.com/huandu/go-clone"
)

const (
	ModelAuto = "auto"

	DefaultChannelName       = "New channel"
	DefaultChannelNamePrefix = "Channel"
	DefaultThreadNamePrefix  = "New conversation"
	NewThreadNamePrefix      = "Conversation"

	// AutoTitleLength is the number of runes of the first message used to
	// rename a thread that still carries its default name.
	AutoTitleLength = 20

	DefaultTemperature     = 0.7
	DefaultTopP            = 1.0
	DefaultMaxOutputTokens = 8192

	// Fallbacks for cached model entries missing these fields.
	DefaultModelVersion     = "1.0"
	DefaultInputTokenLimit  = 32000
	DefaultOutputTokenLimit = 8192
)

// DefaultChannelConfig is the configuration used when no default settings
// have been stored yet.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Stream:        true,
		UseWebSearch:  false,
		SelectedModel: nil,
		GenerationConfig: GenerationConfig{
			Temperature:     DefaultTemperature,
			TopP:            DefaultTopP,
			TopK:            nil,
			MaxOutputTokens: DefaultMaxOutputTokens,
		},
	}
}

func DefaultDefaultSettings() DefaultSettings {
	return DefaultSettings{
		Channel: DefaultChannelConfig(),
		Thread:  ThreadDefaults{},
	}
}

// NewThread creates an empty thread seeded from the thread defaults.
func NewThread(name string, defaults ThreadDefaults) *Thread {
	return &Thread{
		ID:              NewID("thread"),
		Name:            name,
		History:         []*Message{},
		UseChannelIcons: true,
		SystemPrompt:    defaults.SystemPrompt,
		UseChannelFiles: true,
	}
}

// NewChannel creates a channel with one thread, seeded from defaults.
func NewChannel(name string, defaults DefaultSettings) *Channel {
	cfg := clone.Clone(defaults.Channel).(ChannelConfig)
	return &Channel{
		ID:          NewID("channel"),
		Name:        name,
		Config:      cfg,
		Threads:     []*Thread{NewThread(DefaultThreadNamePrefix, defaults.Thread)},
		SharedFiles: []SharedFile{},
	}
}

// NewState returns a fresh tree with a single channel and thread selected.
func NewState() *State {
	defaults := DefaultDefaultSettings()
	ch := NewChannel(DefaultChannelName, defaults)
	return &State{
		SchemaVersion:    SchemaVersion,
		Channels:         []*Channel{ch},
		CurrentChannelID: ch.ID,
		CurrentThreadID:  ch.Threads[0].ID,
		AvailableModels:  []ModelInfo{},
		DefaultSettings:  defaults,
	}
}

// Normalize repairs a decoded tree so that every structural invariant holds:
// at least one channel, at least one thread per channel, a valid selection,
// non-empty parts and in-range active indices. It returns the same pointer.
func Normalize(s *State) *State {
	if s == nil {
		return NewState()
	}
	s.SchemaVersion = SchemaVersion
	if s.AvailableModels == nil {
		s.AvailableModels = []ModelInfo{}
	}
	if len(s.Channels) == 0 {
		s.Channels = []*Channel{NewChannel(DefaultChannelName, s.DefaultSettings)}
	}
	for i, ch := range s.Channels {
		if ch == nil {
			ch = NewChannel(fmt.Sprintf("%s %d", DefaultChannelNamePrefix, i+1), s.DefaultSettings)
			s.Channels[i] = ch
		}
		if ch.ID == "" {
			ch.ID = NewID("channel")
		}
		if ch.SharedFiles == nil {
			ch.SharedFiles = []SharedFile{}
		}
		threads := ch.Threads[:0]
		for _, t := range ch.Threads {
			if t != nil {
				threads = append(threads, t)
			}
		}
		ch.Threads = threads
		if len(ch.Threads) == 0 {
			ch.Threads = []*Thread{NewThread(DefaultThreadNamePrefix, s.DefaultSettings.Thread)}
		}
		for _, t := range ch.Threads {
			normalizeThread(t)
		}
	}

	ch := s.Channel(s.CurrentChannelID)
	if ch == nil {
		ch = s.Channels[0]
		s.CurrentChannelID = ch.ID
	}
	if ch.Thread(s.CurrentThreadID) == nil {
		s.CurrentThreadID = ch.Threads[0].ID
	}
	return s
}

func normalizeThread(t *Thread) {
	if t.ID == "" {
		t.ID = NewID("thread")
	}
	history := make([]*Message, 0, len(t.History))
	for _, m := range t.History {
		if m == nil {
			continue
		}
		if m.ID == "" {
			m.ID = NewID("msg")
		}
		if len(m.Parts) == 0 {
			m.Parts = []Part{TextPart("")}
		}
		if m.ActivePartIndex < 0 || m.ActivePartIndex >= len(m.Parts) {
			m.ActivePartIndex = 0
		}
		history = append(history, m)
	}
	t.History = history
}
