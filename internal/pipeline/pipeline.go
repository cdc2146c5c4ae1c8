// Package pipeline runs the scheduled commentary cycle: pull new log
// lines per owner, assemble a bounded prompt, generate, persist the result
// into the history and semantic memory tiers, and hand the text to the
// deliverer. One failing owner never aborts the cycle for the others.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"arklore/internal/assembler"
	"arklore/internal/config"
	"arklore/internal/generation"
	"arklore/internal/logging"
	"arklore/internal/memory"
	"arklore/internal/profile"
	"arklore/internal/store"
	"arklore/internal/tokens"
)

// LogSource supplies the new, already-sanitized event lines for an owner
// key on each cycle.
type LogSource interface {
	Lines(ctx context.Context, ownerKey string) ([]string, error)
}

// Deliverer receives finished commentary for outbound notification.
type Deliverer interface {
	Deliver(ctx context.Context, ownerKey, text string) error
}

// Runner schedules and executes per-owner commentary cycles.
type Runner struct {
	owners        []config.OwnerConfig
	schedule      string
	retentionDays int

	assembler *assembler.Assembler
	generator generation.Generator
	memory    *memory.Semantic
	profiles  *profile.Profiles
	store     *store.Store
	counter   *tokens.Counter
	allocator *tokens.Allocator

	source  LogSource
	deliver Deliverer

	cron *cron.Cron
}

// Deps bundles the collaborators a Runner wires together.
type Deps struct {
	Assembler *assembler.Assembler
	Generator generation.Generator
	Memory    *memory.Semantic
	Profiles  *profile.Profiles
	Store     *store.Store
	Counter   *tokens.Counter
	Allocator *tokens.Allocator
	Source    LogSource
	Deliver   Deliverer
}

// NewRunner creates a pipeline runner from configuration and collaborators.
func NewRunner(cfg config.PipelineConfig, retentionDays int, deps Deps) *Runner {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Runner{
		owners:        cfg.Owners,
		schedule:      schedule,
		retentionDays: retentionDays,
		assembler:     deps.Assembler,
		generator:     deps.Generator,
		memory:        deps.Memory,
		profiles:      deps.Profiles,
		store:         deps.Store,
		counter:       deps.Counter,
		allocator:     deps.Allocator,
		source:        deps.Source,
		deliver:       deps.Deliver,
	}
}

// Start registers the cycle and retention schedules and starts the cron
// loop. Cancel ctx to stop cycles mid-flight; Stop halts the scheduler.
func (r *Runner) Start(ctx context.Context) error {
	r.cron = cron.New()

	if _, err := r.cron.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", r.schedule, err)
	}
	if r.retentionDays > 0 {
		if _, err := r.cron.AddFunc("@daily", func() { r.retentionSweep() }); err != nil {
			return fmt.Errorf("failed to register retention sweep: %w", err)
		}
	}

	r.cron.Start()
	logging.Pipeline("pipeline started schedule=%q owners=%d retention_days=%d",
		r.schedule, len(r.owners), r.retentionDays)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	logging.Pipeline("pipeline stopped")
}

// RunOnce executes one cycle for every configured owner.
func (r *Runner) RunOnce(ctx context.Context) {
	cycleID := uuid.NewString()
	timer := logging.StartTimer(logging.CategoryPipeline, "pipeline.RunOnce")
	defer timer.Stop()

	logging.Pipeline("cycle %s starting for %d owners", cycleID, len(r.owners))
	for _, owner := range r.owners {
		if ctx.Err() != nil {
			logging.Pipeline("cycle %s cancelled", cycleID)
			return
		}
		if err := r.runOwner(ctx, cycleID, owner); err != nil {
			logging.Get(logging.CategoryPipeline).Error("cycle %s owner=%s failed: %v", cycleID, owner.Key, err)
		}
	}
	logging.Pipeline("cycle %s finished", cycleID)
}

// runOwner executes one owner's cycle end to end.
func (r *Runner) runOwner(ctx context.Context, cycleID string, owner config.OwnerConfig) error {
	lines, err := r.collectLines(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to collect lines: %w", err)
	}
	if len(lines) == 0 {
		logging.PipelineDebug("owner=%s has no new events, skipping", owner.Key)
		return nil
	}

	result, err := r.assembler.Assemble(ctx, assembler.Request{
		OwnerKey:    owner.Key,
		Tone:        owner.Tone,
		EventLines:  lines,
		TotalBudget: r.allocator.PromptBudget(),
	})
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	text, err := r.generator.Generate(ctx, result.Prompt, result.NumPredict)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	// Persist the summary before the semantic memory so the history tier
	// never references a response the memory tier has but history lacks.
	tokenCount := r.counter.Count(text)
	if tokenCount < 1 {
		tokenCount = 1
	}
	if _, err := r.store.SaveSummary(owner.Key, text, tokenCount); err != nil {
		return fmt.Errorf("failed to persist summary: %w", err)
	}
	r.memory.Store(ctx, owner.Key, text, strings.Join(lines, "\n"), map[string]string{
		"cycle_id": cycleID,
		"entities": strings.Join(result.Entities, ","),
	})

	if r.deliver != nil {
		if err := r.deliver.Deliver(ctx, owner.Key, text); err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
	}

	logging.Pipeline("owner=%s cycle=%s delivered %d chars (entities=%d)",
		owner.Key, cycleID, len(text), len(result.Entities))
	return nil
}

// collectLines pulls lines for an owner. A cluster owner aggregates its
// members' lines, each prefixed with the member key so the commentary can
// tell the sources apart.
func (r *Runner) collectLines(ctx context.Context, owner config.OwnerConfig) ([]string, error) {
	if len(owner.Members) == 0 {
		return r.source.Lines(ctx, owner.Key)
	}

	var out []string
	for _, member := range owner.Members {
		lines, err := r.source.Lines(ctx, member)
		if err != nil {
			logging.Get(logging.CategoryPipeline).Warn("cluster member %s unavailable: %v", member, err)
			continue
		}
		for _, line := range lines {
			out = append(out, fmt.Sprintf("[%s] %s", member, line))
		}
	}
	return out, nil
}

// retentionSweep prunes memories and entity events past the retention
// window.
func (r *Runner) retentionSweep() {
	start := time.Now()
	memories, err := r.memory.CleanupOlderThan(r.retentionDays)
	if err != nil {
		logging.Get(logging.CategoryPipeline).Warn("memory retention sweep failed: %v", err)
	}
	events, err := r.profiles.CleanupOlderThan(r.retentionDays)
	if err != nil {
		logging.Get(logging.CategoryPipeline).Warn("event retention sweep failed: %v", err)
	}
	logging.Pipeline("retention sweep removed %d memories and %d events in %v",
		memories, events, time.Since(start))
}
