package coach

import (
	"context"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultModel is used whenever listing fails or nothing matches
	DefaultModel = "gemini-1.5-flash"

	modelFamily      = "flash"
	generateAction   = "generateContent"
	modelsPathPrefix = "models/"
)

// Selector chooses which Gemini model writes the report
type Selector struct {
	backend  Backend
	override string
	logger   *zap.Logger
}

// NewSelector creates a Selector. A non-empty override skips listing entirely.
func NewSelector(backend Backend, override string, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{backend: backend, override: override, logger: logger}
}

// Select returns a model name. It never fails; problems fall back to DefaultModel.
func (s *Selector) Select(ctx context.Context) string {
	if s.override != "" {
		return strings.TrimPrefix(s.override, modelsPathPrefix)
	}

	models, err := s.backend.ListModels(ctx)
	if err != nil {
		s.logger.Warn("failed to list models, using default",
			zap.String("model", DefaultModel), zap.Error(err))
		return DefaultModel
	}

	name, ok := PickModel(models)
	if !ok {
		s.logger.Warn("no flash models found, using default", zap.String("model", DefaultModel))
		return DefaultModel
	}
	return name
}

// PickModel keeps flash models that support content generation and takes
// the greatest name in reverse lexicographic order. String order is not
// version order ("flash-10" sorts below "flash-9"), so this is a heuristic.
func PickModel(models []ModelInfo) (string, bool) {
	var names []string
	for _, m := range models {
		if strings.Contains(m.Name, modelFamily) && slices.Contains(m.SupportedActions, generateAction) {
			names = append(names, m.Name)
		}
	}
	if len(names) == 0 {
		return "", false
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return strings.TrimPrefix(names[0], modelsPathPrefix), true
}
