// Package assembler composes the memory tiers into one bounded prompt.
// Per request: update entity profiles from the new lines, gather the three
// context tiers in parallel, concatenate in a fixed order, and compute the
// generation allowance for the result. A failed or slow tier contributes
// nothing; assembly only fails outright when there is no material to build
// any prompt from.
package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"arklore/internal/history"
	"arklore/internal/logging"
	"arklore/internal/memory"
	"arklore/internal/profile"
	"arklore/internal/tokens"
)

// TierStatus describes how a context tier contributed to an assembly.
type TierStatus string

const (
	// TierOK: the tier returned content.
	TierOK TierStatus = "ok"

	// TierEmpty: the tier ran cleanly but had nothing relevant.
	TierEmpty TierStatus = "empty"

	// TierDegraded: the tier failed or timed out; its contribution was
	// replaced with nothing.
	TierDegraded TierStatus = "degraded"
)

// Tier names reported in Result.Tiers.
const (
	TierHistory = "history"
	TierMemory  = "memory"
	TierProfile = "profile"
)

// TierResult records one tier's outcome for observability and tests.
type TierResult struct {
	Name   string
	Status TierStatus
	Detail string
}

// Request is one assembly job.
type Request struct {
	OwnerKey string

	// Tone is an optional flavor instruction prepended to the prompt.
	Tone string

	// EventLines are the new, already-sanitized log lines to comment on.
	EventLines []string

	// TotalBudget is the token budget for retrieved context.
	TotalBudget int
}

// Result is an assembled prompt ready for generation.
type Result struct {
	Prompt     string
	Entities   []string
	NumPredict int
	Tiers      []TierResult
}

// Assembler orchestrates the context tiers.
type Assembler struct {
	history   *history.Manager
	memory    *memory.Semantic
	profiles  *profile.Profiles
	allocator *tokens.Allocator

	tierTimeout time.Duration
}

// New creates an assembler over the four collaborators.
func New(h *history.Manager, m *memory.Semantic, p *profile.Profiles, alloc *tokens.Allocator, tierTimeout time.Duration) *Assembler {
	if tierTimeout <= 0 {
		tierTimeout = 5 * time.Second
	}
	return &Assembler{
		history:     h,
		memory:      m,
		profiles:    p,
		allocator:   alloc,
		tierTimeout: tierTimeout,
	}
}

// Assemble builds the prompt for a request. It returns an error only when
// the owner has no history at all and no event lines were supplied; every
// tier-level failure degrades to an empty contribution instead.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryAssembler, "assembler.Assemble")
	defer timer.StopWithThreshold(10 * time.Second)

	if len(req.EventLines) == 0 {
		stats, err := a.history.Statistics(req.OwnerKey)
		if err != nil || stats.Total == 0 {
			return nil, fmt.Errorf("nothing to assemble: owner %q has no history and no event lines were supplied", req.OwnerKey)
		}
	}

	// Step 1: profile update is a deliberate side effect and runs before
	// the profile tier reads blurbs back.
	entities := a.profiles.ProcessLogs(req.EventLines, req.OwnerKey)

	// Step 2: gather the tiers in parallel.
	var (
		historyText string
		memoryText  string
		profileText string

		historyResult TierResult
		memoryResult  TierResult
		profileResult TierResult
	)
	eventsText := strings.Join(req.EventLines, "\n")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		historyText, historyResult = a.runTier(gctx, TierHistory, func(tctx context.Context) string {
			return a.historySection(tctx, req.OwnerKey, req.TotalBudget)
		})
		return nil
	})
	g.Go(func() error {
		memoryText, memoryResult = a.runTier(gctx, TierMemory, func(tctx context.Context) string {
			return a.memorySection(tctx, eventsText, req.OwnerKey)
		})
		return nil
	})
	g.Go(func() error {
		profileText, profileResult = a.runTier(gctx, TierProfile, func(context.Context) string {
			return a.profileSection(entities)
		})
		return nil
	})
	_ = g.Wait() // tiers never return errors; failures are in the results

	// Step 3: fixed concatenation order, oldest context first, new events
	// last and clearly delimited.
	prompt := a.merge(req.Tone, historyText, memoryText, profileText, req.EventLines)

	// Step 4: budget the generation against the final prompt.
	numPredict := a.allocator.NumPredict(prompt)

	logging.Assembler("assembled prompt owner=%s entities=%d num_predict=%d tiers=[%s %s %s]",
		req.OwnerKey, len(entities), numPredict,
		historyResult.Status, memoryResult.Status, profileResult.Status)

	return &Result{
		Prompt:     prompt,
		Entities:   entities,
		NumPredict: numPredict,
		Tiers:      []TierResult{historyResult, memoryResult, profileResult},
	}, nil
}

// runTier executes one tier under the per-tier timeout. A tier that does
// not finish in time is reported degraded and its late result discarded.
func (a *Assembler) runTier(ctx context.Context, name string, fn func(context.Context) string) (string, TierResult) {
	tctx, cancel := context.WithTimeout(ctx, a.tierTimeout)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Get(logging.CategoryAssembler).Error("tier %s panicked: %v", name, r)
				done <- ""
			}
		}()
		done <- fn(tctx)
	}()

	select {
	case text := <-done:
		if text == "" {
			return "", TierResult{Name: name, Status: TierEmpty}
		}
		return text, TierResult{Name: name, Status: TierOK}
	case <-tctx.Done():
		logging.Get(logging.CategoryAssembler).Warn("tier %s timed out after %v", name, a.tierTimeout)
		return "", TierResult{Name: name, Status: TierDegraded, Detail: tctx.Err().Error()}
	}
}

// historySection renders the selected summaries, oldest first, closed by a
// marker telling the model these were its own prior responses.
func (a *Assembler) historySection(ctx context.Context, ownerKey string, budget int) string {
	selected := a.history.ContextualHistory(ctx, ownerKey, budget)
	all := selected.All()
	if len(all) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range all {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nAbove are my previous responses for this stream.")
	return b.String()
}

// memorySection renders semantically relevant past responses.
func (a *Assembler) memorySection(ctx context.Context, query, ownerKey string) string {
	matches := a.memory.Search(ctx, query, ownerKey)
	if len(matches) == 0 {
		return ""
	}
	return "Relevant moments from further back:\n" + strings.Join(matches, "\n")
}

// profileSection renders the capped entity blurbs.
func (a *Assembler) profileSection(entities []string) string {
	blurbs := a.profiles.ContextSummaries(entities)
	if blurbs == "" {
		return ""
	}
	return "Player context:\n" + blurbs
}

const nonRepetitionInstruction = "Do not repeat jokes, phrasing, or observations from your previous responses."

// merge concatenates the prompt sections in their fixed order.
func (a *Assembler) merge(tone, historyText, memoryText, profileText string, eventLines []string) string {
	var sections []string
	if tone != "" {
		sections = append(sections, tone)
	}
	if historyText != "" {
		sections = append(sections, historyText)
	}
	if memoryText != "" {
		sections = append(sections, memoryText)
	}
	if profileText != "" {
		sections = append(sections, profileText)
	}
	sections = append(sections, nonRepetitionInstruction)

	var b strings.Builder
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\n=== NEW EVENTS ===\n")
	b.WriteString(strings.Join(eventLines, "\n"))
	b.WriteString("\n=== END NEW EVENTS ===\n")
	return b.String()
}
