package models

import (
	"github.com/google/uuid"
)

// ReviewReason classifies why a record was routed to the review queue.
type ReviewReason string

const (
	ReviewConflict   ReviewReason = "conflict"
	ReviewValidation ReviewReason = "validation"
	ReviewFetch      ReviewReason = "fetch"
)

// ReviewItem is a record that could not be applied automatically. Conflicted
// and invalid records are queued here instead of being silently dropped.
type ReviewItem struct {
	DefaultModel
	SyncRunID  uuid.UUID    `json:"syncRunId"`
	Source     string       `json:"source"`
	Entity     EntityKind   `json:"entity" example:"invoice"`
	NaturalKey string       `json:"naturalKey" example:"INV-001"`
	Reason     ReviewReason `json:"reason" example:"conflict"`
	Detail     string       `json:"detail"`
	// Payload is the raw record as JSON, kept for manual review.
	Payload  string `json:"payload"`
	Resolved bool   `json:"resolved"`
}
