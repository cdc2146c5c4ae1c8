package store

import "time"

// Summary is one generated commentary persisted for a history stream.
// Summaries are immutable once written and pruned only by retention sweeps.
type Summary struct {
	ID         int64
	OwnerKey   string
	Timestamp  time.Time
	Text       string
	TokenCount int
}

// MemoryRecord is one embedded response/context pair for semantic recall.
type MemoryRecord struct {
	ID           string
	OwnerKey     string
	ResponseText string
	SourceText   string
	Embedding    []float32
	Timestamp    time.Time
	Metadata     map[string]string
}

// EntityEvent is one classified event appended to the audit log.
type EntityEvent struct {
	EntityName string
	EventType  string
	Details    map[string]string
	OwnerKey   string
	Timestamp  time.Time
}

// ProfileRow is the persisted form of an entity profile: identity columns
// plus a JSON-encoded state blob owned by the profile package.
type ProfileRow struct {
	EntityName string
	FirstSeen  time.Time
	LastSeen   time.Time
	State      []byte
}

// ActiveEntity pairs an entity with its recorded event volume.
type ActiveEntity struct {
	EntityName string
	EventCount int
	State      []byte
}
