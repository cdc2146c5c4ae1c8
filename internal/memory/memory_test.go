package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arklore/internal/config"
	"arklore/internal/embedding"
	"arklore/internal/store"
)

// fakeEngine returns fixed vectors per keyword so similarity is fully
// deterministic without a backend.
type fakeEngine struct {
	vectors map[string][]float32
	base    []float32
	fail    bool
	calls   int
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("backend down")
	}
	for keyword, vec := range f.vectors {
		if strings.Contains(text, keyword) {
			return vec, nil
		}
	}
	return f.base, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return len(f.base) }
func (f *fakeEngine) Name() string    { return "fake" }

func testSemantic(t *testing.T, engine embedding.Engine) *Semantic {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(st, engine, config.DefaultMemoryConfig())
}

func defaultFake() *fakeEngine {
	return &fakeEngine{
		base: []float32{0, 0, 1},
		vectors: map[string][]float32{
			"rex":     {1, 0, 0},
			"rampage": {0.95, 0.05, 0},
			"fishing": {0, 1, 0},
		},
	}
}

func TestStoreAndSearch(t *testing.T) {
	m := testSemantic(t, defaultFake())
	ctx := context.Background()

	require.True(t, m.Store(ctx, "island", "the rex went wild", "rex attack log", nil))
	require.True(t, m.Store(ctx, "island", "calm fishing day", "fishing log", nil))

	t.Run("relevant memory found above threshold", func(t *testing.T) {
		got := m.Search(ctx, "rampage downtown", "island")
		require.Len(t, got, 1)
		assert.Equal(t, "the rex went wild", got[0])
	})

	t.Run("irrelevant query finds nothing", func(t *testing.T) {
		// base vector is orthogonal to every stored memory
		assert.Empty(t, m.Search(ctx, "totally unrelated", "island"))
	})

	t.Run("owner scoping", func(t *testing.T) {
		assert.Empty(t, m.Search(ctx, "rampage downtown", "ragnarok"))
	})

	t.Run("empty query finds nothing", func(t *testing.T) {
		assert.Empty(t, m.Search(ctx, "", "island"))
	})
}

func TestStoreDeduplication(t *testing.T) {
	m := testSemantic(t, defaultFake())
	ctx := context.Background()

	assert.True(t, m.Store(ctx, "island", "the rex went wild", "rex attack log", nil))

	t.Run("identical pair is a no-op", func(t *testing.T) {
		assert.False(t, m.Store(ctx, "island", "the rex went wild", "rex attack log", nil))
	})

	t.Run("different source text is a new memory", func(t *testing.T) {
		assert.True(t, m.Store(ctx, "island", "the rex went wild", "rex second sighting", nil))
	})

	t.Run("empty response is rejected", func(t *testing.T) {
		assert.False(t, m.Store(ctx, "island", "", "some log", nil))
	})
}

func TestSearchTopK(t *testing.T) {
	engine := defaultFake()
	m := testSemantic(t, engine)
	ctx := context.Background()

	// Five near-identical memories; topK default is 3.
	for i := 0; i < 5; i++ {
		require.True(t, m.Store(ctx, "island", fmt.Sprintf("rex response %d", i), fmt.Sprintf("rex log %d", i), nil))
	}

	got := m.Search(ctx, "rex again", "island")
	assert.Len(t, got, 3)
}

func TestDisabledMode(t *testing.T) {
	m := testSemantic(t, embedding.Disabled{})
	ctx := context.Background()

	assert.False(t, m.Enabled())
	assert.False(t, m.Store(ctx, "island", "resp", "src", nil))
	assert.Empty(t, m.Search(ctx, "query", "island"))

	_, err := m.ExplainSimilarity(ctx, "a", "b")
	assert.Error(t, err)
}

func TestDisabledByConfig(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultMemoryConfig()
	cfg.SemanticEnabled = false
	engine := defaultFake()
	m := New(st, engine, cfg)

	assert.False(t, m.Enabled())
	assert.False(t, m.Store(context.Background(), "island", "resp", "src", nil))
	assert.Zero(t, engine.calls, "disabled tier must never call the engine")
}

func TestEmbeddingFailureLatches(t *testing.T) {
	engine := defaultFake()
	m := testSemantic(t, engine)
	ctx := context.Background()

	require.True(t, m.Store(ctx, "island", "the rex went wild", "rex log", nil))

	engine.fail = true
	assert.Empty(t, m.Search(ctx, "rex again", "island"))
	assert.False(t, m.Enabled())

	// Backend recovery does not un-latch within the process.
	engine.fail = false
	assert.False(t, m.Store(ctx, "island", "another", "log", nil))
	assert.Empty(t, m.Search(ctx, "rex again", "island"))
}

func TestExplainSimilarity(t *testing.T) {
	m := testSemantic(t, defaultFake())

	expl, err := m.ExplainSimilarity(context.Background(), "rex one", "rex two")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, expl.Cosine, 1e-9)
	assert.Equal(t, "nearly identical semantic meaning", expl.Interpretation)
}

func TestStatistics(t *testing.T) {
	m := testSemantic(t, defaultFake())
	require.True(t, m.Store(context.Background(), "island", "the rex went wild", "rex log", nil))

	stats, err := m.Statistics()
	require.NoError(t, err)
	assert.True(t, stats.Enabled)
	assert.Equal(t, "fake", stats.Engine)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.PerOwner["island"])
	assert.Equal(t, 3, stats.Dimensions)
}

func TestCleanupValidation(t *testing.T) {
	m := testSemantic(t, defaultFake())
	_, err := m.CleanupOlderThan(-1)
	assert.Error(t, err)
}
