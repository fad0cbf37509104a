package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankTransaction is the canonical representation of a posted bank
// transaction. The natural key is (Source, ExternalID). The amount is
// signed: positive for money coming in, negative for money going out.
type BankTransaction struct {
	DefaultModel
	Source      string          `json:"source" gorm:"uniqueIndex:bank_transaction_source_external_id"`
	ExternalID  string          `json:"externalId" gorm:"uniqueIndex:bank_transaction_source_external_id"`
	AccountID   string          `json:"accountId"`
	PostedDate  time.Time       `json:"postedDate"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:DECIMAL(20,8)" example:"-149.99"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	SyncedAt    time.Time       `json:"syncedAt"`
}

func (t BankTransaction) Kind() EntityKind {
	return KindTransaction
}

func (t BankTransaction) SourceName() string {
	return t.Source
}

func (t BankTransaction) NaturalKey() string {
	return t.ExternalID
}

func (t *BankTransaction) BeforeSave(_ *gorm.DB) error {
	t.ExternalID = strings.TrimSpace(t.ExternalID)
	t.Description = strings.TrimSpace(t.Description)
	t.PostedDate = t.PostedDate.In(time.UTC)

	return nil
}

func (t *BankTransaction) AfterFind(tx *gorm.DB) error {
	_ = t.DefaultModel.AfterFind(tx)

	t.PostedDate = t.PostedDate.In(time.UTC)
	t.SyncedAt = t.SyncedAt.In(time.UTC)

	return nil
}
