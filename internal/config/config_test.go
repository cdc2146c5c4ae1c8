package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "arklore", cfg.Name)
	assert.Equal(t, 4096, cfg.Generation.ContextWindow)
	assert.Equal(t, 48, cfg.Generation.SafetyBuffer)
	assert.Equal(t, 64, cfg.Generation.MinOutputTokens)
	assert.Equal(t, 512, cfg.Generation.MaxOutputTokens)
	assert.Equal(t, 0.3, cfg.Memory.ConversationWeight)
	assert.Equal(t, 0.7, cfg.Memory.RelevanceThreshold)
	assert.Equal(t, 3, cfg.Memory.TopK)
	assert.Equal(t, time.Hour, cfg.Memory.ProfileCacheTTL)
	assert.Equal(t, "@hourly", cfg.Pipeline.Schedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)

		if diff := cmp.Diff(Default(), cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file layers over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arklore.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
generation:
  model: mistral
  context_window: 8192
memory:
  top_k: 5
pipeline:
  schedule: "@every 30m"
  owners:
    - key: island
      tone: "Be dramatic."
    - key: cluster-a
      members: [island, ragnarok]
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "mistral", cfg.Generation.Model)
		assert.Equal(t, 8192, cfg.Generation.ContextWindow)
		assert.Equal(t, 5, cfg.Memory.TopK)
		// untouched values keep their defaults
		assert.Equal(t, 48, cfg.Generation.SafetyBuffer)

		require.Len(t, cfg.Pipeline.Owners, 2)
		assert.Equal(t, "Be dramatic.", cfg.Pipeline.Owners[0].Tone)
		assert.Equal(t, []string{"island", "ragnarok"}, cfg.Pipeline.Owners[1].Members)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("generation: ["), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("generation:\n  context_window: -1\n"), 0644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "context_window")
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARKLORE_OLLAMA_MODEL", "phi3")
	t.Setenv("ARKLORE_CONTEXT_WINDOW", "2048")
	t.Setenv("ARKLORE_SEMANTIC_MEMORY", "false")
	t.Setenv("ARKLORE_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "phi3", cfg.Generation.Model)
	assert.Equal(t, 2048, cfg.Generation.ContextWindow)
	assert.False(t, cfg.Memory.SemanticEnabled)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestEnvOverridesAreValidated(t *testing.T) {
	t.Setenv("ARKLORE_CONTEXT_WINDOW", "-1")

	// The missing-file path validates just like the file path does.
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "context_window")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"min above max output", func(c *Config) {
			c.Generation.MinOutputTokens = 600
			c.Generation.MaxOutputTokens = 128
		}, "min_output_tokens"},
		{"conversation weight above one", func(c *Config) {
			c.Memory.ConversationWeight = 1.5
		}, "conversation_weight"},
		{"negative relevance threshold", func(c *Config) {
			c.Memory.RelevanceThreshold = -0.1
		}, "relevance_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errSub)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "arklore.yaml")

	original := Default()
	original.Generation.Model = "custom-model"
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
