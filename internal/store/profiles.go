package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"arklore/internal/logging"
)

// LoadProfile returns the persisted profile row for an entity, or
// (nil, nil) when the entity has never been seen.
func (s *Store) LoadProfile(entityName string) (*ProfileRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row ProfileRow
	err := s.db.QueryRow(
		"SELECT entity_name, first_seen, last_seen, state FROM entity_profiles WHERE entity_name = ?",
		entityName,
	).Scan(&row.EntityName, &row.FirstSeen, &row.LastSeen, &row.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", entityName, err)
	}
	return &row, nil
}

// UpsertProfile creates or replaces an entity's profile state. first_seen
// is preserved on update; last_seen always advances to now.
func (s *Store) UpsertProfile(entityName string, state []byte) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO entity_profiles (entity_name, first_seen, last_seen, state, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(entity_name) DO UPDATE SET
		   last_seen = excluded.last_seen,
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		entityName, now, now, state, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile for %s: %w", entityName, err)
	}
	logging.ProfileDebug("upserted profile for %s (%d bytes of state)", entityName, len(state))
	return nil
}

// AppendEntityEvents records classified events in the append-only log.
// The log is an audit trail; profile correctness does not depend on it.
func (s *Store) AppendEntityEvents(events []EntityEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin event append: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO entity_events (entity_name, event_type, details, owner_key) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		detailsJSON, _ := json.Marshal(ev.Details)
		if _, err := stmt.Exec(ev.EntityName, ev.EventType, string(detailsJSON), ev.OwnerKey); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to append event for %s: %w", ev.EntityName, err)
		}
	}
	return tx.Commit()
}

// ActiveEntities returns the entities with the most recorded events for an
// owner, most active first.
func (s *Store) ActiveEntities(ownerKey string, limit int) ([]ActiveEntity, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(
		`SELECT p.entity_name, COUNT(e.id) AS event_count, p.state
		 FROM entity_profiles p
		 LEFT JOIN entity_events e ON e.entity_name = p.entity_name AND e.owner_key = ?
		 GROUP BY p.entity_name
		 ORDER BY event_count DESC, p.last_seen DESC
		 LIMIT ?`,
		ownerKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active entities: %w", err)
	}
	defer rows.Close()

	var out []ActiveEntity
	for rows.Next() {
		var e ActiveEntity
		if err := rows.Scan(&e.EntityName, &e.EventCount, &e.State); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntityEventsOlderThan prunes the event log past the retention
// window. Profiles themselves are kept; they are the authoritative cache.
func (s *Store) DeleteEntityEventsOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entity_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entity events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("retention sweep removed %d entity events older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
