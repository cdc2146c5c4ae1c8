package profile

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arklore/internal/cache"
	"arklore/internal/config"
	"arklore/internal/store"
)

func testProfiles(t *testing.T, c cache.Cache[*State]) (*Profiles, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewProfiles(st, c, config.DefaultMemoryConfig()), st
}

func TestProcessLogs(t *testing.T) {
	p, st := testProfiles(t, cache.NewNop[*State]())

	lines := []string{
		"Bobby tamed a Rex level 50",
		"Bobby tamed a Rex level 20",
		"Alice placed Foundation near the beach",
		"server weather changed",
	}
	entities := p.ProcessLogs(lines, "island")
	assert.ElementsMatch(t, []string{"Bobby", "Alice"}, entities)

	t.Run("profiles persisted", func(t *testing.T) {
		ctx := p.Context("Bobby")
		assert.True(t, ctx.Known)
		assert.Equal(t, "dinosaur enthusiast", ctx.Personality)
	})

	t.Run("events appended", func(t *testing.T) {
		active, err := st.ActiveEntities("island", 10)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "Bobby", active[0].EntityName)
		assert.Equal(t, 2, active[0].EventCount)
	})

	t.Run("no entities is a no-op", func(t *testing.T) {
		assert.Empty(t, p.ProcessLogs([]string{"server restarted"}, "island"))
	})
}

func TestUpdateAccumulatesAcrossCalls(t *testing.T) {
	p, _ := testProfiles(t, cache.NewNop[*State]())

	require.NoError(t, p.Update("Bobby", "island", []Event{tamingEvent("Rex")}))
	require.NoError(t, p.Update("Bobby", "island", []Event{tamingEvent("Rex")}))

	ctx := p.Context("Bobby")
	require.True(t, ctx.Known)
	// two updates of +0.1 tamer, still below the 0.3 personality bar
	assert.Equal(t, "casual player", ctx.Personality)
}

func TestContextUnknownEntity(t *testing.T) {
	p, _ := testProfiles(t, cache.NewNop[*State]())

	ctx := p.Context("Stranger")
	assert.False(t, ctx.Known)
	assert.Equal(t, "Stranger is a new or occasional player", ctx.Summary)
}

func TestContextSummaries(t *testing.T) {
	p, _ := testProfiles(t, cache.NewNop[*State]())
	require.NoError(t, p.Update("Bobby", "island", []Event{tamingEvent("Rex")}))

	t.Run("known and unknown entities render differently", func(t *testing.T) {
		out := p.ContextSummaries([]string{"Bobby", "Stranger"})
		assert.Contains(t, out, "Bobby is a")
		assert.Contains(t, out, "Stranger (new player)")
	})

	t.Run("entity count is capped", func(t *testing.T) {
		names := []string{"E1", "E2", "E3", "E4", "E5", "E6", "E7"}
		out := p.ContextSummaries(names)
		assert.Equal(t, 5, len(strings.Split(out, "\n")))
		assert.NotContains(t, out, "E6")
	})

	t.Run("character cap truncates with ellipsis", func(t *testing.T) {
		long := make([]string, 5)
		for i := range long {
			long[i] = strings.Repeat("N", 200) + string(rune('A'+i))
		}
		out := p.ContextSummaries(long)
		assert.LessOrEqual(t, len(out), 500)
		assert.True(t, strings.HasSuffix(out, "..."))
	})

	t.Run("truncation keeps multi-byte names valid", func(t *testing.T) {
		names := []string{
			strings.Repeat("Ø", 150),
			strings.Repeat("Ø", 150),
			strings.Repeat("Ø", 150),
		}
		out := p.ContextSummaries(names)
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.True(t, utf8.ValidString(out))
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, p.ContextSummaries(nil))
	})
}

func TestProfileCache(t *testing.T) {
	p, _ := testProfiles(t, cache.NewTTL[*State](0, time.Hour))
	require.NoError(t, p.Update("Bobby", "island", []Event{tamingEvent("Rex")}))

	t.Run("writes populate the cache", func(t *testing.T) {
		state, ok := p.cache.Get("Bobby")
		require.True(t, ok)
		assert.Equal(t, 1, state.TamingCount)
	})

	t.Run("reads populate the cache after a miss", func(t *testing.T) {
		p.cache.Purge()
		ctx := p.Context("Bobby")
		require.True(t, ctx.Known)

		_, ok := p.cache.Get("Bobby")
		assert.True(t, ok)
	})
}

func TestMostActive(t *testing.T) {
	p, _ := testProfiles(t, cache.NewNop[*State]())
	require.NoError(t, p.Update("Bobby", "island", []Event{tamingEvent("Rex"), tamingEvent("Dodo")}))
	require.NoError(t, p.Update("Alice", "island", []Event{{Type: EventBuilding}}))

	active, err := p.MostActive("island", 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Bobby", active[0].Name)
	assert.Equal(t, 2, active[0].EventCount)
	assert.NotEmpty(t, active[0].Summary)
}

func TestCleanupValidation(t *testing.T) {
	p, _ := testProfiles(t, cache.NewNop[*State]())
	_, err := p.CleanupOlderThan(0)
	assert.Error(t, err)
}
