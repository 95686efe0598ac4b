package cmds

import (
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/spf13/cobra"
)

var configFlagNames = []string{
	"model", "stream", "web-search",
	"temperature", "top-p", "top-k", "max-output-tokens",
	"system-prompt", "system-prompt-enabled",
	"dummy-user-prompt", "dummy-user-prompt-enabled",
	"dummy-model-prompt", "dummy-model-prompt-enabled",
}

// addConfigFlags registers the channel configuration flags shared by
// "channel config" and "defaults set".
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("model", "", "Model id, or auto")
	f.Bool("stream", true, "Stream replies")
	f.Bool("web-search", false, "Ask for web search grounding")
	f.Float64("temperature", conversation.DefaultTemperature, "Sampling temperature (0-2)")
	f.Float64("top-p", conversation.DefaultTopP, "Nucleus sampling (0-1)")
	f.Int("top-k", 0, "Top-k sampling, 0 to unset")
	f.Int("max-output-tokens", conversation.DefaultMaxOutputTokens, "Maximum reply length")
	f.String("system-prompt", "", "Channel system prompt")
	f.Bool("system-prompt-enabled", false, "Enable the channel system prompt")
	f.String("dummy-user-prompt", "", "Text injected as a leading user turn")
	f.Bool("dummy-user-prompt-enabled", false, "Enable the dummy user prompt")
	f.String("dummy-model-prompt", "", "Text injected as a leading model turn")
	f.Bool("dummy-model-prompt-enabled", false, "Enable the dummy model prompt")
}

func anyConfigFlagChanged(cmd *cobra.Command) bool {
	for _, n := range configFlagNames {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

// applyConfigFlags copies the flags set on the command line into cfg.
func applyConfigFlags(cmd *cobra.Command, cfg *conversation.ChannelConfig) error {
	f := cmd.Flags()
	if f.Changed("model") {
		m, err := f.GetString("model")
		if err != nil {
			return err
		}
		if m == "" || m == conversation.ModelAuto {
			cfg.SelectedModel = nil
		} else {
			cfg.SelectedModel = &m
		}
	}
	boolFlags := map[string]*bool{
		"stream":                     &cfg.Stream,
		"web-search":                 &cfg.UseWebSearch,
		"system-prompt-enabled":      &cfg.SystemPrompt.Enabled,
		"dummy-user-prompt-enabled":  &cfg.DummyUserPrompt.Enabled,
		"dummy-model-prompt-enabled": &cfg.DummyModelPrompt.Enabled,
	}
	for name, dst := range boolFlags {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	stringFlags := map[string]*string{
		"system-prompt":      &cfg.SystemPrompt.Text,
		"dummy-user-prompt":  &cfg.DummyUserPrompt.Text,
		"dummy-model-prompt": &cfg.DummyModelPrompt.Text,
	}
	for name, dst := range stringFlags {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if f.Changed("temperature") {
		v, err := f.GetFloat64("temperature")
		if err != nil {
			return err
		}
		cfg.GenerationConfig.Temperature = v
	}
	if f.Changed("top-p") {
		v, err := f.GetFloat64("top-p")
		if err != nil {
			return err
		}
		cfg.GenerationConfig.TopP = v
	}
	if f.Changed("top-k") {
		v, err := f.GetInt("top-k")
		if err != nil {
			return err
		}
		if v == 0 {
			cfg.GenerationConfig.TopK = nil
		} else {
			cfg.GenerationConfig.TopK = &v
		}
	}
	if f.Changed("max-output-tokens") {
		v, err := f.GetInt("max-output-tokens")
		if err != nil {
			return err
		}
		cfg.GenerationConfig.MaxOutputTokens = v
	}
	return nil
}
