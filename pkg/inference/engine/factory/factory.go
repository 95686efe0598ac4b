package factory

import (
	"context"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/steps/ai/echo"
	"github.com/go-go-golems/parley/pkg/steps/ai/gemini"
	"github.com/go-go-golems/parley/pkg/steps/ai/openai"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderEcho   Provider = "echo"
)

var openAIPrefixes = []string{"gpt-", "o1", "o3", "chatgpt"}

// ProviderForModel picks the transport for a model name. Anything not
// recognized goes to Gemini.
func ProviderForModel(model string) Provider {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == echo.ModelName || strings.HasPrefix(m, echo.ModelName+"-") {
		return ProviderEcho
	}
	if pie.Any(openAIPrefixes, func(p string) bool { return strings.HasPrefix(m, p) }) {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// Config carries the credentials and endpoints of every provider.
type Config struct {
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	EchoDelay     time.Duration
}

// Router dispatches each request to the engine serving the requested model.
type Router struct {
	engines map[Provider]engine.Engine
}

var _ engine.Engine = (*Router)(nil)
var _ engine.ModelLister = (*Router)(nil)

func NewRouter(cfg Config) *Router {
	return &Router{engines: map[Provider]engine.Engine{
		ProviderGemini: gemini.NewGeminiEngine(cfg.GeminiAPIKey, cfg.GeminiBaseURL),
		ProviderOpenAI: openai.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		ProviderEcho:   echo.NewEchoEngine(cfg.EchoDelay),
	}}
}

// NewRouterWithEngines builds a router from explicit engines. Providers
// without an engine fail their requests.
func NewRouterWithEngines(engines map[Provider]engine.Engine) *Router {
	r := &Router{engines: map[Provider]engine.Engine{}}
	for k, v := range engines {
		r.engines[k] = v
	}
	return r
}

func (r *Router) Generate(ctx context.Context, t *transcript.Transcript, opts engine.Options) <-chan engine.Event {
	provider := ProviderForModel(opts.Model)
	e, ok := r.engines[provider]
	if !ok {
		out := make(chan engine.Event, 1)
		out <- engine.Failedf("no engine configured for provider %s", provider)
		close(out)
		return out
	}
	log.Debug().Str("model", opts.Model).Str("provider", string(provider)).Msg("routing generation")
	return e.Generate(ctx, t, opts)
}

// ListModels asks the Gemini engine for its catalog and adds the echo model.
func (r *Router) ListModels(ctx context.Context) ([]engine.ModelInfo, error) {
	var ret []engine.ModelInfo
	if l, ok := r.engines[ProviderGemini].(engine.ModelLister); ok {
		models, err := l.ListModels(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list gemini models")
		}
		ret = append(ret, models...)
	}
	if l, ok := r.engines[ProviderEcho].(engine.ModelLister); ok {
		models, err := l.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		ret = append(ret, models...)
	}
	return ret, nil
}
