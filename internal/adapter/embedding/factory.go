package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/crime-change-map/internal/config"
	"github.com/couchcryptid/crime-change-map/internal/observability"
)

type namedEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Name() string
}

// New builds the engine selected by EMBEDDER and wraps it in a Cached.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Cached, error) {
	var engine namedEmbedder
	switch cfg.Embedder {
	case "lexical":
		engine = NewLexical()
	case "ollama":
		engine = NewOllama(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.EmbedTimeout)
	case "genai":
		g, err := NewGenAI(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			return nil, err
		}
		engine = g
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}

	logger.Info("embedding engine ready", "engine", engine.Name())
	return NewCached(engine, metrics), nil
}
