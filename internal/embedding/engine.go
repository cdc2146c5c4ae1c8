// Package embedding provides vector embedding generation for semantic
// memory. The only production backend is a local Ollama server; a Disabled
// engine lets the whole semantic tier run as a no-op when embeddings are
// unavailable or turned off.
package embedding

import (
	"context"
	"fmt"

	"arklore/internal/config"
	"arklore/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings, 0 if unknown
	// until the first call
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// HealthChecker is an optional interface for engines that can verify
// availability before the pipeline commits to the semantic tier.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewEngine creates an embedding engine from configuration.
func NewEngine(cfg config.EmbeddingConfig) (Engine, error) {
	switch cfg.Provider {
	case "ollama":
		logging.Embedding("initializing Ollama embedding engine: endpoint=%s model=%s", cfg.Endpoint, cfg.Model)
		return NewOllamaEngine(cfg.Endpoint, cfg.Model, cfg.Timeout), nil
	case "disabled", "":
		logging.Embedding("embedding engine disabled by configuration")
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'disabled')", cfg.Provider)
	}
}

// Disabled is an engine that always reports unavailability. Callers treat
// its errors as the signal to run the semantic tier in no-op mode.
type Disabled struct{}

// ErrDisabled is returned by every Disabled operation.
var ErrDisabled = fmt.Errorf("embedding engine disabled")

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrDisabled
}

func (Disabled) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrDisabled
}

func (Disabled) Dimensions() int { return 0 }

func (Disabled) Name() string { return "disabled" }
