// Package memory implements the semantic memory tier: embedded
// response/context pairs persisted in SQLite and retrieved by cosine
// relevance. The tier is best-effort end to end; when the embedding
// backend is unavailable it degrades to a silent no-op rather than
// failing the assembly cycle.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arklore/internal/config"
	"arklore/internal/embedding"
	"arklore/internal/logging"
	"arklore/internal/store"
)

// Semantic stores and retrieves embedded memories for owner keys.
type Semantic struct {
	store  *store.Store
	engine embedding.Engine

	relevanceThreshold float64
	topK               int
	enabled            bool

	// latched true after the first embedding failure; the tier stays
	// disabled for the rest of the process lifetime
	mu          sync.Mutex
	unavailable bool
	latchOnce   sync.Once
}

// New creates a semantic memory tier over the given store and engine.
func New(st *store.Store, engine embedding.Engine, cfg config.MemoryConfig) *Semantic {
	enabled := cfg.SemanticEnabled
	if _, isDisabled := engine.(embedding.Disabled); isDisabled {
		enabled = false
	}
	return &Semantic{
		store:              st,
		engine:             engine,
		relevanceThreshold: cfg.RelevanceThreshold,
		topK:               cfg.TopK,
		enabled:            enabled,
	}
}

// Enabled reports whether the tier can currently accept writes.
func (m *Semantic) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled && !m.unavailable
}

// Store embeds and persists a response paired with the source text that
// prompted it. Returns true only when a new memory was written: duplicates
// of an already-stored pair and every failure mode return false.
func (m *Semantic) Store(ctx context.Context, ownerKey, responseText, sourceText string, metadata map[string]string) bool {
	if !m.Enabled() {
		return false
	}
	if responseText == "" {
		return false
	}

	combined := combineTexts(responseText, sourceText)

	vec, err := m.engine.Embed(ctx, combined)
	if err != nil {
		m.markUnavailable(err)
		return false
	}

	rec := store.MemoryRecord{
		ID:           uuid.NewString(),
		OwnerKey:     ownerKey,
		ResponseText: responseText,
		SourceText:   sourceText,
		Embedding:    vec,
		Metadata:     metadata,
	}
	inserted, err := m.store.InsertMemory(rec, contentHash(combined))
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("failed to store memory for %s: %v", ownerKey, err)
		return false
	}
	if !inserted {
		logging.MemoryDebug("duplicate memory skipped owner=%s", ownerKey)
		return false
	}
	logging.Memory("stored memory owner=%s id=%s", ownerKey, rec.ID)
	return true
}

// Search returns the response texts of the stored memories most relevant
// to the query, best first. At most topK results, each with cosine
// similarity at or above the relevance threshold. A disabled tier and a
// query with no relevant matches are indistinguishable: both return an
// empty slice.
func (m *Semantic) Search(ctx context.Context, queryText, ownerKey string) []string {
	if !m.Enabled() || queryText == "" {
		return nil
	}

	query, err := m.engine.Embed(ctx, queryText)
	if err != nil {
		m.markUnavailable(err)
		return nil
	}

	if m.store.VectorSearchAvailable() {
		if results := m.searchANN(ownerKey, query); results != nil {
			return results
		}
		// fall through to the exhaustive path on ANN failure
	}
	return m.searchExhaustive(ownerKey, query)
}

// searchANN ranks via the sqlite-vec index. Returns nil when the index
// query fails so the caller can fall back.
func (m *Semantic) searchANN(ownerKey string, query []float32) []string {
	matches, err := m.store.SearchMemoriesANN(ownerKey, query, m.topK)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("ANN search failed, falling back to cosine scan: %v", err)
		return nil
	}

	out := []string{}
	for _, match := range matches {
		// vec0 cosine distance is 1 - similarity
		similarity := 1.0 - match.Distance
		if similarity < m.relevanceThreshold {
			continue
		}
		out = append(out, match.Record.ResponseText)
	}
	logging.MemoryDebug("ANN search owner=%s candidates=%d relevant=%d", ownerKey, len(matches), len(out))
	return out
}

// searchExhaustive ranks every stored memory for the owner by cosine
// similarity in process.
func (m *Semantic) searchExhaustive(ownerKey string, query []float32) []string {
	records, err := m.store.MemoriesByOwner(ownerKey)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("failed to load memories for %s: %v", ownerKey, err)
		return nil
	}

	type scored struct {
		text       string
		similarity float64
	}
	var candidates []scored
	for _, rec := range records {
		sim, err := embedding.CosineSimilarity(query, rec.Embedding)
		if err != nil {
			continue
		}
		if sim >= m.relevanceThreshold {
			candidates = append(candidates, scored{text: rec.ResponseText, similarity: sim})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	if len(candidates) > m.topK {
		candidates = candidates[:m.topK]
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.text)
	}
	logging.MemoryDebug("cosine scan owner=%s records=%d relevant=%d", ownerKey, len(records), len(out))
	return out
}

// ExplainSimilarity embeds two texts and reports the full similarity
// breakdown between them. Diagnostic surface for threshold tuning.
func (m *Semantic) ExplainSimilarity(ctx context.Context, a, b string) (embedding.Explanation, error) {
	if !m.Enabled() {
		return embedding.Explanation{}, fmt.Errorf("semantic memory is disabled")
	}
	vecs, err := m.engine.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		m.markUnavailable(err)
		return embedding.Explanation{}, fmt.Errorf("failed to embed texts: %w", err)
	}
	return embedding.Explain(vecs[0], vecs[1])
}

// Stats reports the state of the semantic memory tier.
type Stats struct {
	Enabled    bool
	Engine     string
	Total      int
	PerOwner   map[string]int
	Dimensions int
}

// Statistics summarizes the tier for the stats surface.
func (m *Semantic) Statistics() (Stats, error) {
	st, err := m.store.MemoryStatistics()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Enabled:    m.Enabled(),
		Engine:     m.engine.Name(),
		Total:      st.Total,
		PerOwner:   st.PerOwner,
		Dimensions: st.Dimensions,
	}, nil
}

// CleanupOlderThan removes memories older than the given number of days.
func (m *Semantic) CleanupOlderThan(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return m.store.DeleteMemoriesOlderThan(cutoff)
}

// markUnavailable latches the tier off after an embedding failure. The
// condition is logged once; later calls degrade silently.
func (m *Semantic) markUnavailable(err error) {
	m.mu.Lock()
	m.unavailable = true
	m.mu.Unlock()
	m.latchOnce.Do(func() {
		logging.Get(logging.CategoryMemory).Warn("embedding backend unavailable, semantic memory disabled for this run: %v", err)
	})
}

// combineTexts joins a response with the context that prompted it into the
// single document that gets embedded and hashed.
func combineTexts(responseText, sourceText string) string {
	return fmt.Sprintf("Response: %s\n\nContext: %s", responseText, sourceText)
}

// contentHash fingerprints a combined document for de-duplication.
func contentHash(combined string) string {
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
