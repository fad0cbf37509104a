package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPaymentAmountNotPositive = errors.New("payment amounts must be larger than zero")

// Payment is the canonical representation of a received customer payment.
// The natural key is (Source, PaymentNumber).
type Payment struct {
	DefaultModel
	Source        string          `json:"source" gorm:"uniqueIndex:payment_source_number"`
	PaymentNumber string          `json:"paymentNumber" gorm:"uniqueIndex:payment_source_number"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:DECIMAL(20,8)" example:"1250.00"`
	PaymentMethod string          `json:"paymentMethod" example:"Bank Transfer"`
	SyncedAt      time.Time       `json:"syncedAt"`
}

func (p Payment) Kind() EntityKind {
	return KindPayment
}

func (p Payment) SourceName() string {
	return p.Source
}

func (p Payment) NaturalKey() string {
	return p.PaymentNumber
}

func (p *Payment) BeforeSave(_ *gorm.DB) error {
	p.PaymentNumber = strings.TrimSpace(p.PaymentNumber)
	p.CustomerName = strings.TrimSpace(p.CustomerName)

	if p.PaymentMethod == "" {
		p.PaymentMethod = "Unknown"
	}

	if !p.Amount.IsPositive() {
		return ErrPaymentAmountNotPositive
	}

	p.PaymentDate = p.PaymentDate.In(time.UTC)

	return nil
}

func (p *Payment) AfterFind(tx *gorm.DB) error {
	_ = p.DefaultModel.AfterFind(tx)

	p.PaymentDate = p.PaymentDate.In(time.UTC)
	p.SyncedAt = p.SyncedAt.In(time.UTC)

	return nil
}
