package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus is the state of a sync run.
type RunStatus string

const (
	RunPending         RunStatus = "Pending"
	RunRunning         RunStatus = "Running"
	RunSucceeded       RunStatus = "Succeeded"
	RunPartiallyFailed RunStatus = "PartiallyFailed"
	RunFailed          RunStatus = "Failed"
)

// SourceStatus is the outcome for a single source within a run.
type SourceStatus string

const (
	SourceSucceeded SourceStatus = "Succeeded"
	SourceFailed    SourceStatus = "Failed"
)

// SyncRun represents one execution of the orchestrator. It is created when
// the run starts and finalized when the run ends, regardless of per-source
// failures.
type SyncRun struct {
	DefaultModel
	Status     RunStatus      `json:"status" example:"Succeeded"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt"`
	Results    []SourceResult `json:"results" gorm:"foreignKey:SyncRunID"`
}

func (r *SyncRun) AfterFind(tx *gorm.DB) error {
	_ = r.DefaultModel.AfterFind(tx)

	r.StartedAt = r.StartedAt.In(time.UTC)
	if r.FinishedAt != nil {
		finished := r.FinishedAt.In(time.UTC)
		r.FinishedAt = &finished
	}

	return nil
}

// SourceResult holds the per-source outcome and record counts of a run.
type SourceResult struct {
	DefaultModel
	SyncRunID  uuid.UUID    `json:"syncRunId"`
	Source     string       `json:"source" example:"quickbooks-csv"`
	Status     SourceStatus `json:"status" example:"Succeeded"`
	Fetched    int          `json:"fetched"`
	Inserted   int          `json:"inserted"`
	Updated    int          `json:"updated"`
	Skipped    int          `json:"skipped"`
	Conflicted int          `json:"conflicted"`
	Failed     int          `json:"failed"`
	// Reason is the human readable explanation for a failed source.
	Reason string `json:"reason,omitempty"`
}
