package config

import "time"

// GenerationConfig configures the Ollama generation backend and the token
// budget surrounding it.
//
// Token budget architecture:
//
//	ContextWindow = prompt tokens + SafetyBuffer + num_predict
//
// where num_predict is computed per request from the assembled prompt and
// clamped to [MinOutputTokens, MaxOutputTokens].
type GenerationConfig struct {
	// Ollama endpoint for /api/generate (default: http://localhost:11434)
	URL string `yaml:"url"`

	// Model name passed to Ollama
	Model string `yaml:"model"`

	// Declared context window size in tokens (num_ctx)
	ContextWindow int `yaml:"context_window"`

	// Tokens held back from the window to absorb counting drift
	SafetyBuffer int `yaml:"safety_buffer"`

	// Bounds on the generation allowance (num_predict)
	MinOutputTokens int `yaml:"min_output_tokens"`
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// Tokenizer model for exact counting; falls back to the character
	// heuristic when the encoding cannot be loaded
	TokenizerModel string `yaml:"tokenizer_model"`

	// Sampling knobs forwarded to Ollama
	Temperature   float64 `yaml:"temperature"`
	RepeatPenalty float64 `yaml:"repeat_penalty"`

	// Request timeout for a single generation call
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultGenerationConfig returns defaults sized for small local models.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		URL:             "http://localhost:11434",
		Model:           "llama3.1",
		ContextWindow:   4096,
		SafetyBuffer:    48,
		MinOutputTokens: 64,
		MaxOutputTokens: 512,
		TokenizerModel:  "gpt-3.5-turbo",
		Temperature:     0.8,
		RepeatPenalty:   1.15,
		Timeout:         120 * time.Second,
	}
}

// EmbeddingConfig configures the vector embedding engine.
type EmbeddingConfig struct {
	// Provider: "ollama" or "disabled"
	Provider string `yaml:"provider"`

	// Ollama embedding endpoint and model
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	// Request timeout per embedding call
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultEmbeddingConfig returns defaults for a local Ollama embedder.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider: "ollama",
		Endpoint: "http://localhost:11434",
		Model:    "nomic-embed-text",
		Timeout:  30 * time.Second,
	}
}
