package engine

import (
	"errors"
	"fmt"

	"github.com/go-go-golems/parley/pkg/conversation"
)

type EventType string

const (
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one item of a generation stream. Text is the increment for a
// chunk, and for a complete event the remainder of the reply not already sent
// as chunks (the whole reply when not streaming). Err is set for errors.
type Event struct {
	Type EventType
	Text string
	Err  error
}

func Chunk(text string) Event {
	return Event{Type: EventChunk, Text: text}
}

func Complete(text string) Event {
	return Event{Type: EventComplete, Text: text}
}

func Failed(err error) Event {
	if err == nil {
		err = errors.New("unknown transport error")
	}
	return Event{Type: EventError, Err: err}
}

// Failedf builds an error event from a message.
func Failedf(format string, args ...interface{}) Event {
	return Failed(fmt.Errorf(format, args...))
}

func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// DefaultModel is used when a channel selects "auto" and nothing else is
// configured.
const DefaultModel = "gemini-1.5-flash-latest"

// Options control a single request.
type Options struct {
	Model           string  `json:"model"`
	Stream          bool    `json:"stream"`
	UseWebSearch    bool    `json:"use_web_search"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	TopK            *int    `json:"top_k,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// OptionsFromConfig derives request options from a channel config, resolving
// the "auto" model to defaultModel.
func OptionsFromConfig(cfg conversation.ChannelConfig, defaultModel string) Options {
	model := cfg.Model()
	if model == conversation.ModelAuto {
		model = defaultModel
	}
	if model == "" {
		model = DefaultModel
	}
	var topK *int
	if cfg.GenerationConfig.TopK != nil {
		k := *cfg.GenerationConfig.TopK
		topK = &k
	}
	return Options{
		Model:           model,
		Stream:          cfg.Stream,
		UseWebSearch:    cfg.UseWebSearch,
		Temperature:     cfg.GenerationConfig.Temperature,
		TopP:            cfg.GenerationConfig.TopP,
		TopK:            topK,
		MaxOutputTokens: cfg.GenerationConfig.MaxOutputTokens,
	}
}
