package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityKind identifies the canonical entity a record belongs to.
type EntityKind string

const (
	KindInvoice     EntityKind = "invoice"
	KindPayment     EntityKind = "payment"
	KindTransaction EntityKind = "transaction"
)

// Record is implemented by all canonical entities that are loaded through
// the pipeline.
type Record interface {
	Kind() EntityKind
	SourceName() string
	// NaturalKey is the domain identifier that is unique within a source.
	NaturalKey() string
}

// DefaultModel is the base model for all models.
type DefaultModel struct {
	ID uuid.UUID `json:"id" example:"65392deb-5e92-4268-b114-297faad6cdce"`
	Timestamps
}

// Timestamps contains the timestamps that gorm sets automatically.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" example:"2022-04-02T19:28:44.491514Z"`
	UpdatedAt time.Time `json:"updatedAt" example:"2022-04-17T20:14:01.048145Z"`
}

// AfterFind updates the timestamps to use UTC as
// timezone, not +0000. Yes, this is different.
//
// We already store them in UTC, but somehow reading
// them from the database returns them as +0000.
func (m *DefaultModel) AfterFind(_ *gorm.DB) (err error) {
	m.CreatedAt = m.CreatedAt.In(time.UTC)
	m.UpdatedAt = m.UpdatedAt.In(time.UTC)

	return nil
}

// BeforeCreate is set to generate a UUID for the resource.
func (m *DefaultModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
