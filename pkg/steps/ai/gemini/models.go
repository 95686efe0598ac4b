package gemini

import (
	"context"
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

const generateContentMethod = "generateContent"

// ListModels returns the models that support content generation.
func (e *GeminiEngine) ListModels(ctx context.Context) ([]engine.ModelInfo, error) {
	client, err := e.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}()

	var all []*genai.ModelInfo
	iter := client.ListModels(ctx)
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		all = append(all, m)
	}
	return FilterModels(all), nil
}

// FilterModels keeps the models supporting generateContent and strips the
// "models/" resource prefix from their names.
func FilterModels(models []*genai.ModelInfo) []engine.ModelInfo {
	var ret []engine.ModelInfo
	for _, m := range models {
		if m == nil || !pie.Contains(m.SupportedGenerationMethods, generateContentMethod) {
			continue
		}
		ret = append(ret, engine.ModelInfo{
			ID:               strings.TrimPrefix(m.Name, "models/"),
			DisplayName:      m.DisplayName,
			Description:      m.Description,
			Version:          m.Version,
			InputTokenLimit:  int(m.InputTokenLimit),
			OutputTokenLimit: int(m.OutputTokenLimit),
		})
	}
	return ret
}
