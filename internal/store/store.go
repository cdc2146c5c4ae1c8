// Package store provides SQLite persistence for summaries, semantic
// memories, entity profiles, and the entity event log. One store instance
// is shared by all tiers; connections are short-lived per operation and no
// transaction is ever held across tiers.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"arklore/internal/logging"
)

// Store wraps the SQLite database shared by every memory tier.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// sqlite-vec extension available; enables the ANN search path
	vectorExt bool

	// embedding dimensionality, fixed for the lifetime of the database:
	// seeded from existing rows on open, or at the first memory write
	vecDims int
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.seedVecDims()

	s.detectVecExtension()
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected; ANN search enabled")
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec extension not available; memory search uses in-process cosine ranking")
	}

	logging.Store("store initialized at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := []string{
		// Summaries: one row per generated commentary, compressed text.
		`CREATE TABLE IF NOT EXISTS summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_key TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			summary BLOB NOT NULL,
			token_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_owner ON summaries(owner_key, id)`,

		// Semantic memories: embedded response/context pairs.
		// content_hash de-duplicates identical writes per owner.
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			owner_key TEXT NOT NULL,
			response_text TEXT NOT NULL,
			source_text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_dedup ON memories(owner_key, content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_owner_time ON memories(owner_key, created_at)`,

		// Entity profiles: identity columns plus a JSON state blob.
		`CREATE TABLE IF NOT EXISTS entity_profiles (
			entity_name TEXT PRIMARY KEY,
			first_seen DATETIME,
			last_seen DATETIME,
			state TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Entity events: append-only audit log behind the profile cache.
		`CREATE TABLE IF NOT EXISTS entity_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_name TEXT NOT NULL,
			event_type TEXT NOT NULL,
			details TEXT,
			owner_key TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_events_name ON entity_events(entity_name)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_events_owner ON entity_events(owner_key, created_at)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// seedVecDims recovers the embedding dimensionality from an existing memory
// row so the write-time dimension check holds across restarts, not just
// within the process that performed the first write.
func (s *Store) seedVecDims() {
	var embeddingJSON string
	if err := s.db.QueryRow("SELECT embedding FROM memories LIMIT 1").Scan(&embeddingJSON); err != nil {
		return
	}
	var v []float32
	if err := json.Unmarshal([]byte(embeddingJSON), &v); err != nil || len(v) == 0 {
		return
	}
	s.vecDims = len(v)
	logging.StoreDebug("embedding dimensionality restored from existing rows: %d", s.vecDims)
}

// detectVecExtension probes for the sqlite-vec vec0 virtual table module.
func (s *Store) detectVecExtension() {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// VectorSearchAvailable reports whether the ANN search path can be used.
func (s *Store) VectorSearchAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorExt
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
