// Package etl drives the sync pipeline: it sequences the source adapters,
// normalization, reconciliation and the store writer for every configured
// source, aggregates per-source outcomes into a SyncRun and hands the
// finalized summary to the report hook.
package etl

import (
	"context"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/source"
	"github.com/ledgersync/backend/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds the run-level settings of the orchestrator.
type Config struct {
	// Concurrency bounds how many sources are processed in parallel.
	Concurrency int `mapstructure:"concurrency"`
	// Timeout aborts in-flight fetches; sources that already finished
	// fetching still commit their batch.
	Timeout time.Duration `mapstructure:"timeout"`
	// LookbackDays is the fetch watermark window. Re-fetching the same
	// window is safe because loading is idempotent.
	LookbackDays int `mapstructure:"lookback_days"`
}

// Orchestrator runs the full multi-source pipeline.
type Orchestrator struct {
	store   *store.Store
	sources []source.Config
	cfg     Config
	report  ReportFunc
}

type Option func(*Orchestrator)

// WithReportFunc sets the hook that receives the finalized run summary.
func WithReportFunc(fn ReportFunc) Option {
	return func(o *Orchestrator) {
		o.report = fn
	}
}

func New(st *store.Store, sources []source.Config, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	o := &Orchestrator{
		store:   st,
		sources: sources,
		cfg:     cfg,
		report:  LogReport,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes one sync across all configured sources. Sources run
// concurrently and fail independently; the run itself only errors when its
// own state cannot be persisted.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncRun, error) {
	run := &models.SyncRun{
		Status:    models.RunPending,
		StartedAt: time.Now().In(time.UTC),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	run.Status = models.RunRunning
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	log.Info().Str("run", run.ID.String()).Int("sources", len(o.sources)).Msg("sync run started")

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	var since time.Time
	if o.cfg.LookbackDays > 0 {
		since = time.Now().In(time.UTC).AddDate(0, 0, -o.cfg.LookbackDays)
	}

	results := make([]models.SourceResult, len(o.sources))

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, cfg := range o.sources {
		g.Go(func() error {
			results[i] = o.runSource(runCtx, run, cfg, since)
			return nil
		})
	}
	// The goroutines never return errors, per-source failures live in the
	// results.
	_ = g.Wait()

	finished := time.Now().In(time.UTC)
	run.FinishedAt = &finished
	run.Status = runStatus(results)

	// Finalize even when the run context timed out.
	if err := o.store.FinalizeRun(context.WithoutCancel(ctx), run, results); err != nil {
		return nil, err
	}

	summary := newSummary(*run)
	o.report(summary)

	return run, nil
}

// runStatus aggregates per-source outcomes into the overall run status.
func runStatus(results []models.SourceResult) models.RunStatus {
	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Status == models.SourceFailed {
			failed++
		} else {
			succeeded++
		}
	}

	switch {
	case failed == 0:
		return models.RunSucceeded
	case succeeded == 0:
		return models.RunFailed
	default:
		return models.RunPartiallyFailed
	}
}
