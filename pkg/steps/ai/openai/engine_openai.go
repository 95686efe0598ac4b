package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

type OpenAIEngine struct {
	apiKey  string
	baseURL string
}

var _ engine.Engine = (*OpenAIEngine)(nil)

func NewOpenAIEngine(apiKey string, baseURL string) *OpenAIEngine {
	return &OpenAIEngine{apiKey: apiKey, baseURL: baseURL}
}

func (e *OpenAIEngine) client() (*go_openai.Client, error) {
	if e.apiKey == "" {
		return nil, errors.New("missing openai api key")
	}
	config := go_openai.DefaultConfig(e.apiKey)
	if e.baseURL != "" {
		config.BaseURL = e.baseURL
	}
	return go_openai.NewClientWithConfig(config), nil
}

func (e *OpenAIEngine) Generate(ctx context.Context, t *transcript.Transcript, opts engine.Options) <-chan engine.Event {
	out := make(chan engine.Event)
	go func() {
		defer close(out)
		emit := func(ev engine.Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if err := e.generate(ctx, t, opts, emit); err != nil {
			emit(engine.Failed(err))
		}
	}()
	return out
}

func (e *OpenAIEngine) generate(ctx context.Context, t *transcript.Transcript, opts engine.Options, emit func(engine.Event) bool) error {
	if last, ok := t.Last(); !ok || last.Role != conversation.RoleUser {
		return errors.New("transcript does not end with a user turn")
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	if opts.UseWebSearch {
		log.Warn().Str("model", opts.Model).Msg("web search is not supported for openai models, sending without it")
	}

	req := Request(t, opts)
	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("stream", req.Stream).
		Msg("openai request")

	if !req.Stream {
		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai returned no choices")
		}
		emit(engine.Complete(resp.Choices[0].Message.Content))
		return nil
	}

	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	chunks := 0
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunks).Msg("openai stream completed")
			break
		}
		if err != nil {
			log.Error().Err(err).Int("chunks_received", chunks).Msg("openai stream receive failed")
			return err
		}
		chunks++
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if !emit(engine.Chunk(delta)) {
				return nil
			}
		}
	}
	emit(engine.Complete(""))
	return nil
}

// Request builds a chat completion request from a transcript. The system
// prompt becomes the leading system message.
func Request(t *transcript.Transcript, opts engine.Options) go_openai.ChatCompletionRequest {
	var msgs []go_openai.ChatCompletionMessage
	if t.SystemPrompt != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: t.SystemPrompt,
		})
	}
	for _, e := range t.Entries {
		if msg, ok := Message(e); ok {
			msgs = append(msgs, msg)
		}
	}

	req := go_openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    msgs,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		Stream:      opts.Stream,
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	return req
}

// Message converts one transcript entry. Images are sent as data URLs, other
// files are dropped. Entries left without content are skipped.
func Message(e transcript.Entry) (go_openai.ChatCompletionMessage, bool) {
	role := go_openai.ChatMessageRoleUser
	if e.Role == conversation.RoleModel {
		role = go_openai.ChatMessageRoleAssistant
	}

	var texts []string
	var images []go_openai.ChatMessagePart
	for _, p := range e.Parts {
		switch {
		case p.IsText() && p.GetText() != "":
			texts = append(texts, p.GetText())
		case p.IsFile():
			if !strings.HasPrefix(p.File.MimeType, "image/") || role != go_openai.ChatMessageRoleUser {
				log.Warn().Str("mime_type", p.File.MimeType).Str("name", p.File.Name).Msg("skipping attachment unsupported by openai")
				continue
			}
			images = append(images, go_openai.ChatMessagePart{
				Type: go_openai.ChatMessagePartTypeImageURL,
				ImageURL: &go_openai.ChatMessageImageURL{
					URL:    dataURL(p.File),
					Detail: go_openai.ImageURLDetailAuto,
				},
			})
		}
	}

	text := strings.Join(texts, "\n")
	if len(images) == 0 {
		if text == "" {
			return go_openai.ChatCompletionMessage{}, false
		}
		return go_openai.ChatCompletionMessage{Role: role, Content: text}, true
	}

	parts := make([]go_openai.ChatMessagePart, 0, len(images)+1)
	if text != "" {
		parts = append(parts, go_openai.ChatMessagePart{Type: go_openai.ChatMessagePartTypeText, Text: text})
	}
	parts = append(parts, images...)
	return go_openai.ChatCompletionMessage{Role: role, MultiContent: parts}, true
}

func dataURL(f *conversation.FileData) string {
	return fmt.Sprintf("data:%s;base64,%s", f.MimeType, base64.StdEncoding.EncodeToString(f.Data))
}
