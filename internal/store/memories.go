package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"arklore/internal/logging"
)

// InsertMemory persists an embedded response/context pair. Returns false
// when an identical (owner, content) pair already exists; the duplicate
// write is a no-op, not an error. A record whose embedding length differs
// from the deployment's fixed dimensionality is rejected.
func (s *Store) InsertMemory(rec MemoryRecord, contentHash string) (bool, error) {
	if len(rec.Embedding) == 0 {
		return false, fmt.Errorf("memory embedding must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vecDims == 0 {
		s.vecDims = len(rec.Embedding)
	} else if len(rec.Embedding) != s.vecDims {
		return false, fmt.Errorf("embedding dimension mismatch: got %d, deployment uses %d",
			len(rec.Embedding), s.vecDims)
	}

	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return false, fmt.Errorf("failed to serialize embedding: %w", err)
	}
	metaJSON, _ := json.Marshal(rec.Metadata)

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO memories
		 (id, owner_key, response_text, source_text, embedding, content_hash, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerKey, rec.ResponseText, rec.SourceText,
		string(embeddingJSON), contentHash, string(metaJSON),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert memory: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		logging.StoreDebug("duplicate memory ignored owner=%s hash=%s", rec.OwnerKey, contentHash)
		return false, nil
	}

	if s.vectorExt {
		if err := s.indexMemoryVec(rec.ID, rec.Embedding); err != nil {
			// ANN index is an accelerator; the canonical row is already
			// durable, so log and continue.
			logging.Get(logging.CategoryStore).Warn("failed to index memory in vec table: %v", err)
		}
	}

	logging.StoreDebug("stored memory id=%s owner=%s dims=%d", rec.ID, rec.OwnerKey, len(rec.Embedding))
	return true, nil
}

// MemoriesByOwner loads all memories for an owner, newest first.
func (s *Store) MemoriesByOwner(ownerKey string) ([]MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, owner_key, response_text, source_text, embedding, created_at, metadata
		 FROM memories WHERE owner_key = ? ORDER BY created_at DESC`,
		ownerKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var embeddingJSON, metaJSON string
		if err := rows.Scan(&rec.ID, &rec.OwnerKey, &rec.ResponseText, &rec.SourceText,
			&embeddingJSON, &rec.Timestamp, &metaJSON); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping unreadable memory row: %v", err)
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &rec.Embedding); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping memory %s with corrupt embedding: %v", rec.ID, err)
			continue
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &rec.Metadata)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MemoryMatch pairs a memory with its query distance from the ANN index.
type MemoryMatch struct {
	Record   MemoryRecord
	Distance float64
}

// SearchMemoriesANN runs a K-nearest-neighbor query against the sqlite-vec
// index, scoped to one owner. Only valid when VectorSearchAvailable.
func (s *Store) SearchMemoriesANN(ownerKey string, query []float32, k int) ([]MemoryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.vectorExt {
		return nil, fmt.Errorf("vector extension not available")
	}
	if k <= 0 {
		k = 10
	}

	// Over-fetch because the vec table is not owner-partitioned.
	rows, err := s.db.Query(
		`SELECT m.id, m.owner_key, m.response_text, m.source_text, m.embedding, m.created_at, m.metadata, v.distance
		 FROM vec_memories v
		 JOIN memories m ON m.id = v.memory_id
		 WHERE v.embedding MATCH ? AND v.k = ?
		 ORDER BY v.distance`,
		serializeFloat32(query), k*4,
	)
	if err != nil {
		return nil, fmt.Errorf("ANN query failed: %w", err)
	}
	defer rows.Close()

	var out []MemoryMatch
	for rows.Next() {
		var m MemoryMatch
		var embeddingJSON, metaJSON string
		if err := rows.Scan(&m.Record.ID, &m.Record.OwnerKey, &m.Record.ResponseText,
			&m.Record.SourceText, &embeddingJSON, &m.Record.Timestamp, &metaJSON, &m.Distance); err != nil {
			continue
		}
		if m.Record.OwnerKey != ownerKey {
			continue
		}
		_ = json.Unmarshal([]byte(embeddingJSON), &m.Record.Embedding)
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &m.Record.Metadata)
		}
		out = append(out, m)
		if len(out) >= k {
			break
		}
	}
	return out, rows.Err()
}

// indexMemoryVec mirrors a memory embedding into the vec0 virtual table.
// Caller holds s.mu.
func (s *Store) indexMemoryVec(id string, embedding []float32) error {
	ddl := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(memory_id TEXT, embedding float[%d] distance_metric=cosine)",
		len(embedding),
	)
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT INTO vec_memories (memory_id, embedding) VALUES (?, ?)",
		id, serializeFloat32(embedding),
	)
	return err
}

// serializeFloat32 encodes a vector in the little-endian float32 layout
// sqlite-vec expects for blob parameters.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// MemoryStats summarizes the semantic memory table.
type MemoryStats struct {
	Total       int
	PerOwner    map[string]int
	Dimensions  int
	DBSizeBytes int64
}

// MemoryStatistics reports memory counts per owner and the index size.
func (s *Store) MemoryStatistics() (MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := MemoryStats{PerOwner: make(map[string]int), Dimensions: s.vecDims}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count memories: %w", err)
	}

	rows, err := s.db.Query("SELECT owner_key, COUNT(*) FROM memories GROUP BY owner_key")
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var owner string
		var n int
		if err := rows.Scan(&owner, &n); err == nil {
			stats.PerOwner[owner] = n
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DBSizeBytes = pageCount * pageSize
		}
	}
	return stats, rows.Err()
}

// DeleteMemoriesOlderThan removes memories past the retention window.
// Returns the number of rows deleted.
func (s *Store) DeleteMemoriesOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM memories WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old memories: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("retention sweep removed %d memories older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
