package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arklore/internal/config"
)

func TestNewEngine(t *testing.T) {
	t.Run("ollama provider", func(t *testing.T) {
		engine, err := NewEngine(config.EmbeddingConfig{Provider: "ollama"})
		require.NoError(t, err)
		assert.IsType(t, &OllamaEngine{}, engine)
	})

	t.Run("disabled provider", func(t *testing.T) {
		engine, err := NewEngine(config.EmbeddingConfig{Provider: "disabled"})
		require.NoError(t, err)
		assert.IsType(t, Disabled{}, engine)
	})

	t.Run("empty provider means disabled", func(t *testing.T) {
		engine, err := NewEngine(config.EmbeddingConfig{})
		require.NoError(t, err)
		assert.IsType(t, Disabled{}, engine)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := NewEngine(config.EmbeddingConfig{Provider: "openai"})
		assert.Error(t, err)
	})
}

func TestDisabledEngine(t *testing.T) {
	d := Disabled{}

	_, err := d.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = d.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrDisabled)

	assert.Zero(t, d.Dimensions())
	assert.Equal(t, "disabled", d.Name())
}

func TestOllamaEngineEmbed(t *testing.T) {
	t.Run("returns embedding and records dimensions", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)

			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			assert.Equal(t, "hello", req.Prompt)

			json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
		}))
		defer srv.Close()

		engine := NewOllamaEngine(srv.URL, "nomic-embed-text", 0)
		vec, err := engine.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Len(t, vec, 3)
		assert.Equal(t, 3, engine.Dimensions())
	})

	t.Run("server error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		engine := NewOllamaEngine(srv.URL, "missing", 0)
		_, err := engine.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "404")
	})

	t.Run("empty embedding is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ollamaEmbedResponse{})
		}))
		defer srv.Close()

		engine := NewOllamaEngine(srv.URL, "m", 0)
		_, err := engine.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "empty embedding")
	})
}

func TestOllamaEngineEmbedBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1}})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "m", 0)
	vecs, err := engine.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 3, calls)
}
