// Package history selects which past summaries accompany a new prompt.
// The budget splits into a conversation portion (the freshest flow) and a
// historical portion (older context), both filled greedily newest-first
// and emitted in chronological order.
package history

import (
	"context"

	"arklore/internal/config"
	"arklore/internal/logging"
	"arklore/internal/store"
)

// Manager selects summaries for prompt assembly.
type Manager struct {
	store *store.Store

	conversationWeight float64
	conversationDepth  int
	threadThreshold    float64
}

// NewManager creates a history manager over the shared store.
func NewManager(st *store.Store, cfg config.MemoryConfig) *Manager {
	return &Manager{
		store:              st,
		conversationWeight: cfg.ConversationWeight,
		conversationDepth:  cfg.ConversationDepth,
		threadThreshold:    cfg.ThreadThreshold,
	}
}

// Context is the selected history for one assembly, already ordered for
// concatenation: historical first, conversation last so the freshest flow
// sits closest to the new events.
type Context struct {
	Historical   []store.Summary
	Conversation []store.Summary
}

// All returns every selected summary in prompt order.
func (c Context) All() []store.Summary {
	out := make([]store.Summary, 0, len(c.Historical)+len(c.Conversation))
	out = append(out, c.Historical...)
	out = append(out, c.Conversation...)
	return out
}

// TokenCount sums the stored token counts of every selected summary.
func (c Context) TokenCount() int {
	total := 0
	for _, s := range c.All() {
		total += s.TokenCount
	}
	return total
}

// ContextualHistory selects summaries for an owner within totalBudget
// tokens. Storage failures yield empty portions, never an error: a prompt
// with no history is still a valid prompt.
func (m *Manager) ContextualHistory(ctx context.Context, ownerKey string, totalBudget int) Context {
	timer := logging.StartTimer(logging.CategoryHistory, "history.ContextualHistory")
	defer timer.Stop()

	if totalBudget <= 0 {
		return Context{}
	}

	conversationBudget := int(float64(totalBudget) * m.conversationWeight)
	historicalBudget := totalBudget - conversationBudget

	conversation := m.conversationPortion(ownerKey, conversationBudget)
	historical := m.historicalPortion(ownerKey, historicalBudget, conversation)

	logging.History("selected history owner=%s historical=%d conversation=%d budget=%d",
		ownerKey, len(historical), len(conversation), totalBudget)
	return Context{Historical: historical, Conversation: conversation}
}

// conversationPortion takes the most recent summaries, greedily accepted
// newest-first within the budget, then re-reversed to chronological order.
func (m *Manager) conversationPortion(ownerKey string, budget int) []store.Summary {
	if budget <= 0 {
		return nil
	}

	recent, err := m.store.RecentSummaries(ownerKey, m.conversationDepth)
	if err != nil {
		logging.Get(logging.CategoryHistory).Warn("conversation portion unavailable for %s: %v", ownerKey, err)
		return nil
	}

	// recent is newest-first; accept greedily then prepend so the result
	// reads oldest to newest.
	var selected []store.Summary
	total := 0
	for _, rec := range recent {
		if total+rec.TokenCount > budget {
			break
		}
		selected = append([]store.Summary{rec}, selected...)
		total += rec.TokenCount
	}
	return selected
}

// historicalPortion fills the remaining budget with older summaries,
// dropping any whose text already appears in the conversation portion.
func (m *Manager) historicalPortion(ownerKey string, budget int, conversation []store.Summary) []store.Summary {
	if budget <= 0 {
		return nil
	}

	candidates, err := m.store.SummariesUpToTokenLimit(ownerKey, budget)
	if err != nil {
		logging.Get(logging.CategoryHistory).Warn("historical portion unavailable for %s: %v", ownerKey, err)
		return nil
	}

	seen := make(map[string]struct{}, len(conversation))
	for _, rec := range conversation {
		seen[rec.Text] = struct{}{}
	}

	var out []store.Summary
	for _, rec := range candidates {
		if _, dup := seen[rec.Text]; dup {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Statistics reports how much history exists for an owner.
func (m *Manager) Statistics(ownerKey string) (store.SummaryStats, error) {
	return m.store.SummaryStatistics(ownerKey)
}
