// Package normalize maps raw source records onto the canonical entities,
// validating required fields, dates and monetary amounts. Validation
// failures are per record: the caller aggregates them and keeps going, one
// bad invoice does not block the rest of the batch.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/source"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ValidationError describes why a single record could not be normalized.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Record normalizes a raw record into the canonical entity for its kind.
func Record(sourceName string, raw source.Raw) (models.Record, error) {
	switch raw.Entity {
	case models.KindInvoice:
		return Invoice(sourceName, raw.Fields)
	case models.KindPayment:
		return Payment(sourceName, raw.Fields)
	case models.KindTransaction:
		return Transaction(sourceName, raw.Fields)
	default:
		return nil, ValidationError{Field: "entity", Reason: fmt.Sprintf("unknown entity kind %q", raw.Entity)}
	}
}

// Invoice validates and converts raw invoice fields.
func Invoice(sourceName string, fields map[string]string) (models.Invoice, error) {
	number, err := require(fields, "invoice_number")
	if err != nil {
		return models.Invoice{}, err
	}

	customerName, err := require(fields, "customer_name")
	if err != nil {
		return models.Invoice{}, err
	}

	invoiceDate, err := date(fields, "invoice_date")
	if err != nil {
		return models.Invoice{}, err
	}

	dueDate, err := date(fields, "due_date")
	if err != nil {
		return models.Invoice{}, err
	}

	total, err := amount(fields, "total_amount")
	if err != nil {
		return models.Invoice{}, err
	}
	if total.IsNegative() {
		return models.Invoice{}, ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}

	balance, err := amount(fields, "balance")
	if err != nil {
		return models.Invoice{}, err
	}
	if balance.IsNegative() {
		return models.Invoice{}, ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	if balance.GreaterThan(total) {
		return models.Invoice{}, ValidationError{Field: "balance", Reason: "must not exceed the total amount"}
	}

	status, known := models.ParseInvoiceStatus(fields["status"])
	if !known {
		// Unknown enum values fall back, they do not fail the record.
		log.Warn().
			Str("source", sourceName).
			Str("invoiceNumber", number).
			Str("status", fields["status"]).
			Msg("unknown invoice status, falling back to Unknown")
	}

	return models.Invoice{
		Source:        sourceName,
		InvoiceNumber: number,
		CustomerID:    strings.TrimSpace(fields["customer_id"]),
		CustomerName:  customerName,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		TotalAmount:   total,
		Balance:       balance,
		Status:        status,
	}, nil
}

// Payment validates and converts raw payment fields.
func Payment(sourceName string, fields map[string]string) (models.Payment, error) {
	number, err := require(fields, "payment_number")
	if err != nil {
		return models.Payment{}, err
	}

	customerName, err := require(fields, "customer_name")
	if err != nil {
		return models.Payment{}, err
	}

	paymentDate, err := date(fields, "payment_date")
	if err != nil {
		return models.Payment{}, err
	}

	paid, err := amount(fields, "amount")
	if err != nil {
		return models.Payment{}, err
	}
	if !paid.IsPositive() {
		return models.Payment{}, ValidationError{Field: "amount", Reason: "must be larger than zero"}
	}

	method := strings.TrimSpace(fields["payment_method"])
	if method == "" {
		method = "Unknown"
	}

	return models.Payment{
		Source:        sourceName,
		PaymentNumber: number,
		CustomerID:    strings.TrimSpace(fields["customer_id"]),
		CustomerName:  customerName,
		PaymentDate:   paymentDate,
		Amount:        paid,
		PaymentMethod: method,
	}, nil
}

// Transaction validates and converts raw bank transaction fields. The
// amount is signed, debits are negative.
func Transaction(sourceName string, fields map[string]string) (models.BankTransaction, error) {
	externalID, err := require(fields, "external_transaction_id")
	if err != nil {
		return models.BankTransaction{}, err
	}

	accountID, err := require(fields, "account_id")
	if err != nil {
		return models.BankTransaction{}, err
	}

	postedDate, err := date(fields, "posted_date")
	if err != nil {
		return models.BankTransaction{}, err
	}

	signed, err := amount(fields, "amount")
	if err != nil {
		return models.BankTransaction{}, err
	}

	description, err := require(fields, "description")
	if err != nil {
		return models.BankTransaction{}, err
	}

	return models.BankTransaction{
		Source:      sourceName,
		ExternalID:  externalID,
		AccountID:   accountID,
		PostedDate:  postedDate,
		Amount:      signed,
		Description: description,
		Category:    strings.TrimSpace(fields["category"]),
	}, nil
}

func require(fields map[string]string, name string) (string, error) {
	value := strings.TrimSpace(fields[name])
	if value == "" {
		return "", ValidationError{Field: name, Reason: "required field is missing"}
	}
	return value, nil
}

func date(fields map[string]string, name string) (time.Time, error) {
	value, err := require(fields, name)
	if err != nil {
		return time.Time{}, err
	}

	parsed, err := source.ParseDate(value)
	if err != nil {
		return time.Time{}, ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid date", value)}
	}
	return parsed, nil
}

func amount(fields map[string]string, name string) (decimal.Decimal, error) {
	value, err := require(fields, name)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// Exports sometimes format amounts with thousands separators.
	value = strings.ReplaceAll(value, ",", "")

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid decimal", value)}
	}
	return parsed, nil
}
