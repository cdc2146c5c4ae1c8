// Package config holds the arklore configuration value object.
// Configuration is constructed once at startup and passed by reference into
// each component's constructor; there is no hidden global state. Legacy
// sources (env vars, file reloads) are converted into this one canonical
// representation at the boundary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all arklore configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Generation backend (Ollama)
	Generation GenerationConfig `yaml:"generation"`

	// Memory subsystems (summaries, semantic memory, profiles)
	Memory MemoryConfig `yaml:"memory"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Ingest pipeline scheduling
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PipelineConfig configures the scheduled ingest cycle.
type PipelineConfig struct {
	// Cron spec for the per-owner summary cycle (default: hourly)
	Schedule string `yaml:"schedule"`

	// Owner keys to run cycles for. A cluster owner groups several
	// sources under one history stream.
	Owners []OwnerConfig `yaml:"owners"`

	// Per-tier retrieval timeout during assembly
	TierTimeout time.Duration `yaml:"tier_timeout"`
}

// OwnerConfig names one logical history stream.
type OwnerConfig struct {
	Key     string   `yaml:"key"`
	Tone    string   `yaml:"tone"`    // flavor hint prepended by the assembler
	Members []string `yaml:"members"` // non-empty for cluster owners
}

// Default returns a Config with sensible defaults for every subsystem.
func Default() *Config {
	return &Config{
		Name:       "arklore",
		Version:    "0.1.0",
		Generation: DefaultGenerationConfig(),
		Memory:     DefaultMemoryConfig(),
		Embedding:  DefaultEmbeddingConfig(),
		Pipeline: PipelineConfig{
			Schedule:    "@hourly",
			TierTimeout: 5 * time.Second,
		},
		Logging: DefaultLoggingConfig(),
	}
}

// Load reads configuration from a YAML file, layering it over defaults and
// then applying environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file: defaults + env only.
			applyEnvOverrides(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks invariants that would otherwise surface as runtime bugs.
func (c *Config) Validate() error {
	if c.Generation.ContextWindow <= 0 {
		return fmt.Errorf("generation.context_window must be positive, got %d", c.Generation.ContextWindow)
	}
	if c.Generation.MinOutputTokens > c.Generation.MaxOutputTokens {
		return fmt.Errorf("generation.min_output_tokens (%d) exceeds max_output_tokens (%d)",
			c.Generation.MinOutputTokens, c.Generation.MaxOutputTokens)
	}
	if w := c.Memory.ConversationWeight; w < 0 || w > 1 {
		return fmt.Errorf("memory.conversation_weight must be in [0,1], got %f", w)
	}
	if t := c.Memory.RelevanceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("memory.relevance_threshold must be in [0,1], got %f", t)
	}
	return nil
}

// applyEnvOverrides maps ARKLORE_* environment variables onto the config.
// Only operationally useful knobs are exposed this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARKLORE_DB_PATH"); v != "" {
		cfg.Memory.DatabasePath = v
	}
	if v := os.Getenv("ARKLORE_OLLAMA_URL"); v != "" {
		cfg.Generation.URL = v
	}
	if v := os.Getenv("ARKLORE_OLLAMA_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("ARKLORE_EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("ARKLORE_CONTEXT_WINDOW"); v != "" {
		// Out-of-range values are caught by Validate, not dropped here.
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.ContextWindow = n
		}
	}
	if v := os.Getenv("ARKLORE_SEMANTIC_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Memory.SemanticEnabled = b
		}
	}
	if v := os.Getenv("ARKLORE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
}
