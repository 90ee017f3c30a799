package coach

import (
	"context"
	"errors"
	"strings"

	"flashcoach/internal/compactor"
	"flashcoach/internal/riot"

	"go.uber.org/zap"
)

// Generator turns compacted matches into a coaching report
type Generator struct {
	backend Backend
	items   ItemNamer
	logger  *zap.Logger
}

// NewGenerator creates a Generator. items may be nil.
func NewGenerator(backend Backend, items ItemNamer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{backend: backend, items: items, logger: logger}
}

// Generate asks model for a report on matches. Every failure is a
// *riot.StageError with StageCoaching. There is no retry.
func (g *Generator) Generate(ctx context.Context, model string, matches []compactor.CompactedMatch) (string, error) {
	prompt, err := BuildPrompt(matches, g.items)
	if err != nil {
		return "", riot.NewStageError(riot.StageCoaching, err)
	}

	g.logger.Debug("sending coaching prompt",
		zap.String("model", model),
		zap.Int("matches", len(matches)),
		zap.Int("promptBytes", len(prompt)))

	text, err := g.backend.GenerateText(ctx, model, SystemPrompt, prompt)
	if err != nil {
		g.logger.Error("error querying gemini", zap.String("model", model), zap.Error(err))
		return "", riot.NewStageError(riot.StageCoaching, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", riot.NewStageError(riot.StageCoaching, errors.New("model returned no text"))
	}
	return text, nil
}
