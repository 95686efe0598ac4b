package conversation

import (
	"github.com/huandu/go-clone"
	"github.com/rs/zerolog/log"
)

// UpdateChannelConfig applies update to a copy of the channel config and
// commits it only if the result is valid.
func (s *Store) UpdateChannelConfig(channelID string, update func(cfg *ChannelConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(channelID)
	if ch == nil {
		return &NotFoundError{Kind: "channel", ID: channelID}
	}
	cfg := clone.Clone(ch.Config).(ChannelConfig)
	update(&cfg)
	if err := ValidateChannelConfig(cfg); err != nil {
		return err
	}
	ch.Config = cfg

	log.Debug().Str("channel_id", ch.ID).Str("model", cfg.Model()).Msg("updated channel config")
	s.persistLocked()
	return nil
}

func (s *Store) UpdateChannelSystemPrompt(channelID string, prompt TogglePrompt) error {
	return s.UpdateChannelConfig(channelID, func(cfg *ChannelConfig) {
		cfg.SystemPrompt = prompt
	})
}

func (s *Store) UpdateThreadSystemPrompt(threadID string, prompt TogglePrompt) error {
	return s.updateThread(threadID, func(t *Thread) {
		t.SystemPrompt = prompt
	})
}

func (s *Store) SetThreadUseChannelFiles(threadID string, enabled bool) error {
	return s.updateThread(threadID, func(t *Thread) {
		t.UseChannelFiles = enabled
	})
}

func (s *Store) UpdateThreadUiSettings(threadID string, icons IconSettings) error {
	return s.updateThread(threadID, func(t *Thread) {
		t.UiSettings = icons
	})
}

// SetThreadIconOverride makes the thread use its own icons instead of the
// channel's when override is true.
func (s *Store) SetThreadIconOverride(threadID string, override bool) error {
	return s.updateThread(threadID, func(t *Thread) {
		t.UseChannelIcons = !override
	})
}

func (s *Store) updateThread(threadID string, update func(t *Thread)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.state.FindThread(threadID)
	if t == nil {
		return &NotFoundError{Kind: "thread", ID: threadID}
	}
	update(t)
	s.persistLocked()
	return nil
}

func (s *Store) UpdateChannelUiSettings(channelID string, icons IconSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(channelID)
	if ch == nil {
		return &NotFoundError{Kind: "channel", ID: channelID}
	}
	ch.UiSettings = icons
	s.persistLocked()
	return nil
}

// EffectiveIcons resolves the icons shown for a thread, taking the channel's
// icons when the thread inherits them.
func (s *Store) EffectiveIcons(threadID string) (IconSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, t := s.state.FindThread(threadID)
	if t == nil {
		return IconSettings{}, &NotFoundError{Kind: "thread", ID: threadID}
	}
	if t.UseChannelIcons {
		return clone.Clone(ch.UiSettings).(IconSettings), nil
	}
	return clone.Clone(t.UiSettings).(IconSettings), nil
}

func (s *Store) UpdateGlobalUiSettings(settings GlobalUiSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.GlobalUiSettings = settings
	s.persistLocked()
}

// SetAvailableModels replaces the cached model catalogue and marks it loaded.
func (s *Store) SetAvailableModels(models []ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if models == nil {
		models = []ModelInfo{}
	}
	s.state.AvailableModels = clone.Clone(models).([]ModelInfo)
	s.state.ModelsLoaded = true
	log.Debug().Int("models", len(models)).Msg("cached model catalogue")
	s.persistLocked()
}

func (s *Store) DefaultSettings() DefaultSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Clone(s.state.DefaultSettings).(DefaultSettings)
}

func (s *Store) UpdateDefaultChannelSettings(update func(cfg *ChannelConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := clone.Clone(s.state.DefaultSettings.Channel).(ChannelConfig)
	update(&cfg)
	if err := ValidateChannelConfig(cfg); err != nil {
		return err
	}
	s.state.DefaultSettings.Channel = cfg
	s.persistLocked()
	return nil
}

func (s *Store) UpdateDefaultThreadSettings(defaults ThreadDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DefaultSettings.Thread = defaults
	s.persistLocked()
}

func (s *Store) ResetDefaultSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DefaultSettings = DefaultDefaultSettings()
	s.persistLocked()
}
