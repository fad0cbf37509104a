package etl

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgersync/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// Summary is the finalized outcome of a sync run. It is handed to the
// report hook; rendering and delivery (dashboards, chat notifications) are
// external collaborators.
type Summary struct {
	RunID      uuid.UUID             `json:"runId"`
	Status     models.RunStatus      `json:"status"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Sources    []models.SourceResult `json:"sources"`
}

// ReportFunc receives the summary of every finished run, regardless of its
// outcome.
type ReportFunc func(Summary)

func newSummary(run models.SyncRun) Summary {
	summary := Summary{
		RunID:     run.ID,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		Sources:   run.Results,
	}
	if run.FinishedAt != nil {
		summary.FinishedAt = *run.FinishedAt
	}
	return summary
}

// LogReport is the default report hook. It writes the run summary to the
// log.
func LogReport(summary Summary) {
	event := log.Info()
	if summary.Status == models.RunFailed {
		event = log.Error()
	}

	inserted, updated, skipped, conflicted, failed := 0, 0, 0, 0, 0
	for _, result := range summary.Sources {
		inserted += result.Inserted
		updated += result.Updated
		skipped += result.Skipped
		conflicted += result.Conflicted
		failed += result.Failed
	}

	event.
		Str("run", summary.RunID.String()).
		Str("status", string(summary.Status)).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Int("inserted", inserted).
		Int("updated", updated).
		Int("skipped", skipped).
		Int("conflicted", conflicted).
		Int("failed", failed).
		Msg("sync run finished")
}
