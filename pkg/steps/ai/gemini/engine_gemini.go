package gemini

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiEngine talks to the Gemini API through the genai SDK. A client is
// created per request.
type GeminiEngine struct {
	apiKey  string
	baseURL string
}

var _ engine.Engine = (*GeminiEngine)(nil)
var _ engine.ModelLister = (*GeminiEngine)(nil)

func NewGeminiEngine(apiKey string, baseURL string) *GeminiEngine {
	return &GeminiEngine{apiKey: apiKey, baseURL: baseURL}
}

func (e *GeminiEngine) newClient(ctx context.Context) (*genai.Client, error) {
	if e.apiKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	opts := []option.ClientOption{option.WithAPIKey(e.apiKey)}
	if e.baseURL != "" {
		opts = append(opts, option.WithEndpoint(e.baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

func (e *GeminiEngine) Generate(ctx context.Context, t *transcript.Transcript, opts engine.Options) <-chan engine.Event {
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

func (e *GeminiEngine) generate(ctx context.Context, t *transcript.Transcript, opts engine.Options, emit func(engine.Event) bool) error {
	last, ok := t.Last()
	if !ok || last.Role != conversation.RoleUser {
		return errors.New("transcript does not end with a user turn")
	}

	client, err := e.newClient(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}()

	model := client.GenerativeModel(opts.Model)
	model.GenerationConfig = GenerationConfig(opts)
	if t.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(t.SystemPrompt)}}
	}
	if opts.UseWebSearch {
		log.Warn().Str("model", opts.Model).Msg("web search grounding is not available through the genai SDK, sending without it")
	}

	cs := model.StartChat()
	cs.History = Contents(t.History())
	parts := Parts(last.Parts)

	log.Debug().
		Str("model", opts.Model).
		Int("history", len(cs.History)).
		Int("parts", len(parts)).
		Bool("stream", opts.Stream).
		Msg("gemini request")

	if !opts.Stream {
		resp, err := cs.SendMessage(ctx, parts...)
		if err != nil {
			return err
		}
		emit(engine.Complete(ResponseText(resp)))
		return nil
	}

	iter := cs.SendMessageStream(ctx, parts...)
	chunks := 0
	for {
		resp, err := iter.Next()
		if err == iterator.Done || errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunks).Msg("gemini stream completed")
			break
		}
		if err != nil {
			log.Error().Err(err).Int("chunks_received", chunks).Msg("gemini stream receive failed")
			return err
		}
		chunks++
		if delta := ResponseText(resp); delta != "" {
			if !emit(engine.Chunk(delta)) {
				return nil
			}
		}
	}
	emit(engine.Complete(""))
	return nil
}

// GenerationConfig maps request options to the SDK's generation config.
func GenerationConfig(opts engine.Options) genai.GenerationConfig {
	cfg := genai.GenerationConfig{}
	temperature := float32(opts.Temperature)
	cfg.Temperature = &temperature
	topP := float32(opts.TopP)
	cfg.TopP = &topP
	if opts.TopK != nil {
		k := clampInt32(*opts.TopK)
		cfg.TopK = &k
	}
	if opts.MaxOutputTokens > 0 {
		mt := clampInt32(opts.MaxOutputTokens)
		cfg.MaxOutputTokens = &mt
	}
	return cfg
}

func clampInt32(v int) int32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		log.Warn().Int("value", v).Msg("value exceeds int32, clamping")
		return math.MaxInt32
	}
	return int32(v) // #nosec G115
}

// Contents converts transcript entries to SDK contents. Entries without any
// usable part are skipped.
func Contents(entries []transcript.Entry) []*genai.Content {
	ret := make([]*genai.Content, 0, len(entries))
	for _, e := range entries {
		parts := Parts(e.Parts)
		if len(parts) == 0 {
			continue
		}
		ret = append(ret, &genai.Content{Role: string(e.Role), Parts: parts})
	}
	return ret
}

// Parts converts text parts to genai.Text and file parts to inline blobs.
// Empty text parts are dropped since the API rejects them.
func Parts(parts []conversation.Part) []genai.Part {
	var ret []genai.Part
	for _, p := range parts {
		switch {
		case p.IsFile():
			ret = append(ret, genai.Blob{MIMEType: p.File.MimeType, Data: p.File.Data})
		case p.IsText() && p.GetText() != "":
			ret = append(ret, genai.Text(p.GetText()))
		}
	}
	return ret
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
