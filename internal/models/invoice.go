package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusPaid          InvoiceStatus = "Paid"
	StatusUnpaid        InvoiceStatus = "Unpaid"
	StatusPartiallyPaid InvoiceStatus = "PartiallyPaid"
	StatusVoid          InvoiceStatus = "Void"
	StatusUnknown       InvoiceStatus = "Unknown"
)

// ParseInvoiceStatus maps a source-native status string to the canonical
// status. The second return value reports whether the input was recognized;
// unrecognized values map to StatusUnknown.
func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return StatusPaid, true
	case "unpaid", "open", "overdue":
		// The QuickBooks export derives "Overdue" from the due date, it is
		// still an unpaid invoice.
		return StatusUnpaid, true
	case "partiallypaid", "partially paid", "partial":
		return StatusPartiallyPaid, true
	case "void", "voided":
		return StatusVoid, true
	default:
		return StatusUnknown, false
	}
}

var (
	ErrInvoiceTotalNegative       = errors.New("invoice total amount must not be negative")
	ErrInvoiceBalanceNegative     = errors.New("invoice balance must not be negative")
	ErrInvoiceBalanceExceedsTotal = errors.New("invoice balance must not exceed the total amount")
)

// Invoice is the canonical representation of a customer invoice.
// The natural key is (Source, InvoiceNumber).
type Invoice struct {
	DefaultModel
	Source        string          `json:"source" gorm:"uniqueIndex:invoice_source_number"`
	InvoiceNumber string          `json:"invoiceNumber" gorm:"uniqueIndex:invoice_source_number"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	DueDate       time.Time       `json:"dueDate"`
	TotalAmount   decimal.Decimal `json:"totalAmount" gorm:"type:DECIMAL(20,8)" example:"5000.00"`
	Balance       decimal.Decimal `json:"balance" gorm:"type:DECIMAL(20,8)" example:"0.00"`
	Status        InvoiceStatus   `json:"status" example:"Paid"`
	SyncedAt      time.Time       `json:"syncedAt"`
}

func (i Invoice) Kind() EntityKind {
	return KindInvoice
}

func (i Invoice) SourceName() string {
	return i.Source
}

func (i Invoice) NaturalKey() string {
	return i.InvoiceNumber
}

// BeforeSave enforces the invoice amount invariants and normalizes the
// timezone of the date fields.
func (i *Invoice) BeforeSave(_ *gorm.DB) error {
	i.InvoiceNumber = strings.TrimSpace(i.InvoiceNumber)
	i.CustomerName = strings.TrimSpace(i.CustomerName)

	if i.TotalAmount.IsNegative() {
		return ErrInvoiceTotalNegative
	}

	if i.Balance.IsNegative() {
		return ErrInvoiceBalanceNegative
	}

	if i.Balance.GreaterThan(i.TotalAmount) {
		return ErrInvoiceBalanceExceedsTotal
	}

	i.InvoiceDate = i.InvoiceDate.In(time.UTC)
	i.DueDate = i.DueDate.In(time.UTC)

	return nil
}

func (i *Invoice) AfterFind(tx *gorm.DB) error {
	_ = i.DefaultModel.AfterFind(tx)

	i.InvoiceDate = i.InvoiceDate.In(time.UTC)
	i.DueDate = i.DueDate.In(time.UTC)
	i.SyncedAt = i.SyncedAt.In(time.UTC)

	return nil
}
