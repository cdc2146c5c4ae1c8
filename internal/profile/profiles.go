// Package profile tracks entity behavior from raw log lines: it extracts
// entity names, classifies what happened to them, folds the events into a
// persistent per-entity profile, and renders short context blurbs for
// prompt assembly. Profile state is JSON at rest with a TTL cache in front
// of the store.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"arklore/internal/cache"
	"arklore/internal/config"
	"arklore/internal/logging"
	"arklore/internal/store"
)

// Profiles is the entity behavior profile store.
type Profiles struct {
	store *store.Store
	cache cache.Cache[*State]

	blurbCharLimit   int
	maxBlurbEntities int
}

// NewProfiles creates a profile store over the shared database. The cache
// keeps hot profiles out of SQLite between assembly cycles.
func NewProfiles(st *store.Store, c cache.Cache[*State], cfg config.MemoryConfig) *Profiles {
	return &Profiles{
		store:            st,
		cache:            c,
		blurbCharLimit:   cfg.BlurbCharLimit,
		maxBlurbEntities: cfg.MaxBlurbEntities,
	}
}

// ProcessLogs extracts entities from raw log lines and updates each
// entity's profile from the lines that mention it. Returns the extracted
// entity names. Failures affect only the entity they occurred on.
func (p *Profiles) ProcessLogs(lines []string, ownerKey string) []string {
	timer := logging.StartTimer(logging.CategoryProfile, "profile.ProcessLogs")
	defer timer.Stop()

	entities := ExtractEntities(lines)
	if len(entities) == 0 {
		return nil
	}

	for _, entity := range entities {
		var events []Event
		needle := strings.ToLower(entity)
		for _, line := range lines {
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			if ev, ok := ClassifyLine(line); ok {
				events = append(events, ev)
			}
		}
		if len(events) == 0 {
			continue
		}
		if err := p.Update(entity, ownerKey, events); err != nil {
			logging.Get(logging.CategoryProfile).Warn("failed to update profile for %s: %v", entity, err)
		}
	}

	logging.Profile("processed %d lines into %d entity profiles owner=%s", len(lines), len(entities), ownerKey)
	return entities
}

// Update folds events into an entity's profile, persists the new state,
// and appends the events to the audit log.
func (p *Profiles) Update(entityName, ownerKey string, events []Event) error {
	state, err := p.load(entityName)
	if err != nil {
		return err
	}
	if state == nil {
		state = NewState()
	}

	for _, ev := range events {
		state.Apply(ev)
	}

	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode profile state: %w", err)
	}
	if err := p.store.UpsertProfile(entityName, blob); err != nil {
		return err
	}

	records := make([]store.EntityEvent, len(events))
	for i, ev := range events {
		records[i] = store.EntityEvent{
			EntityName: entityName,
			EventType:  ev.Type,
			Details:    ev.Details,
			OwnerKey:   ownerKey,
		}
	}
	if err := p.store.AppendEntityEvents(records); err != nil {
		logging.Get(logging.CategoryProfile).Warn("failed to append events for %s: %v", entityName, err)
	}

	p.cache.Set(entityName, state)
	logging.ProfileDebug("updated %s with %d events", entityName, len(events))
	return nil
}

// EntityContext is the profile view handed to prompt assembly.
type EntityContext struct {
	Name        string
	Known       bool
	Personality string
	Summary     string
	Activities  []string
	Stats       []string
}

// Context returns the assembled context for one entity. Unknown entities
// get a minimal placeholder rather than an error.
func (p *Profiles) Context(entityName string) EntityContext {
	state, err := p.load(entityName)
	if err != nil {
		logging.Get(logging.CategoryProfile).Warn("failed to load profile for %s: %v", entityName, err)
	}
	if state == nil {
		return EntityContext{
			Name:    entityName,
			Known:   false,
			Summary: fmt.Sprintf("%s is a new or occasional player", entityName),
		}
	}
	return EntityContext{
		Name:        entityName,
		Known:       true,
		Personality: state.Personality(),
		Summary:     state.Blurb(entityName),
		Activities:  state.FavoriteActivities(),
		Stats:       state.NotableStats(),
	}
}

// ContextSummaries renders blurbs for a set of entities, capped in both
// entity count and total characters so the profile tier can never crowd
// out history in the prompt.
func (p *Profiles) ContextSummaries(entities []string) string {
	if len(entities) == 0 {
		return ""
	}

	limit := p.maxBlurbEntities
	if limit <= 0 {
		limit = 5
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}

	var blurbs []string
	for _, entity := range entities {
		ctx := p.Context(entity)
		if ctx.Known {
			blurbs = append(blurbs, ctx.Summary)
		} else {
			blurbs = append(blurbs, fmt.Sprintf("%s (new player)", entity))
		}
	}

	full := strings.Join(blurbs, "\n")
	if p.blurbCharLimit > 3 && len(full) > p.blurbCharLimit {
		cut := p.blurbCharLimit - 3
		// Back off to a rune boundary so a multi-byte name is never split
		// into invalid UTF-8.
		for cut > 0 && !utf8.RuneStart(full[cut]) {
			cut--
		}
		full = full[:cut] + "..."
	}
	return full
}

// ActiveSummary describes one of the most active entities for an owner.
type ActiveSummary struct {
	Name        string
	EventCount  int
	Personality string
	Summary     string
}

// MostActive reports the entities with the most recorded events for an
// owner, most active first.
func (p *Profiles) MostActive(ownerKey string, limit int) ([]ActiveSummary, error) {
	rows, err := p.store.ActiveEntities(ownerKey, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ActiveSummary, 0, len(rows))
	for _, row := range rows {
		state := NewState()
		if len(row.State) > 0 {
			if err := json.Unmarshal(row.State, state); err != nil {
				logging.Get(logging.CategoryProfile).Warn("corrupt state for %s: %v", row.EntityName, err)
				state = NewState()
			}
			state.normalize()
		}
		out = append(out, ActiveSummary{
			Name:        row.EntityName,
			EventCount:  row.EventCount,
			Personality: state.Personality(),
			Summary:     state.Blurb(row.EntityName),
		})
	}
	return out, nil
}

// CleanupOlderThan prunes entity events past the retention window.
func (p *Profiles) CleanupOlderThan(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return p.store.DeleteEntityEventsOlderThan(cutoff)
}

// load returns the entity state from cache or store, nil when the entity
// has never been seen.
func (p *Profiles) load(entityName string) (*State, error) {
	if state, ok := p.cache.Get(entityName); ok {
		return state, nil
	}

	row, err := p.store.LoadProfile(entityName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	state := &State{}
	if err := json.Unmarshal(row.State, state); err != nil {
		return nil, fmt.Errorf("corrupt profile state for %s: %w", entityName, err)
	}
	state.normalize()
	p.cache.Set(entityName, state)
	return state, nil
}
