// Package reconcile decides what to do with an incoming canonical record
// given the currently stored state: insert it, update the stored row, skip
// it as unchanged, or flag it as a conflict for manual review.
package reconcile

import (
	"fmt"

	"github.com/ledgersync/backend/internal/models"
)

// Op is the upsert operation chosen for a record.
type Op string

const (
	Insert          Op = "Insert"
	UpdateIfChanged Op = "UpdateIfChanged"
	SkipUnchanged   Op = "SkipUnchanged"
	Conflict        Op = "Conflict"
)

// FieldChange is one differing comparable field between the candidate and
// the stored record.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, c.From, c.To)
}

// Decision is the outcome of reconciling one candidate record.
type Decision struct {
	Op      Op
	Changes []FieldChange
	// Reason explains a Conflict decision.
	Reason string
}

// Invoice reconciles a candidate invoice against the stored one. existing
// is nil when no record with the same natural key is stored yet.
//
// Invoices are treated as monotonically non-increasing in outstanding
// amounts after creation: a balance decrease is a payment being applied and
// auto-applies, while an increase of the total amount or of the balance
// points at a malformed re-export and is flagged as a conflict instead of
// silently overwriting financial data.
func Invoice(candidate models.Invoice, existing *models.Invoice) Decision {
	if existing == nil {
		return Decision{Op: Insert}
	}

	if candidate.TotalAmount.GreaterThan(existing.TotalAmount) {
		return Decision{
			Op: Conflict,
			Reason: fmt.Sprintf("total amount increased from %s to %s after creation",
				existing.TotalAmount, candidate.TotalAmount),
		}
	}

	if candidate.Balance.GreaterThan(existing.Balance) {
		return Decision{
			Op: Conflict,
			Reason: fmt.Sprintf("balance increased from %s to %s after creation",
				existing.Balance, candidate.Balance),
		}
	}

	var changes []FieldChange
	changes = appendChange(changes, "customer_id", existing.CustomerID, candidate.CustomerID)
	changes = appendChange(changes, "customer_name", existing.CustomerName, candidate.CustomerName)
	changes = appendDateChange(changes, "invoice_date", existing.InvoiceDate, candidate.InvoiceDate)
	changes = appendDateChange(changes, "due_date", existing.DueDate, candidate.DueDate)
	changes = appendDecimalChange(changes, "total_amount", existing.TotalAmount, candidate.TotalAmount)
	changes = appendDecimalChange(changes, "balance", existing.Balance, candidate.Balance)
	changes = appendChange(changes, "status", string(existing.Status), string(candidate.Status))

	return decide(changes)
}

// Payment reconciles a candidate payment against the stored one.
func Payment(candidate models.Payment, existing *models.Payment) Decision {
	if existing == nil {
		return Decision{Op: Insert}
	}

	var changes []FieldChange
	changes = appendChange(changes, "customer_id", existing.CustomerID, candidate.CustomerID)
	changes = appendChange(changes, "customer_name", existing.CustomerName, candidate.CustomerName)
	changes = appendDateChange(changes, "payment_date", existing.PaymentDate, candidate.PaymentDate)
	changes = appendDecimalChange(changes, "amount", existing.Amount, candidate.Amount)
	changes = appendChange(changes, "payment_method", existing.PaymentMethod, candidate.PaymentMethod)

	return decide(changes)
}

// Transaction reconciles a candidate bank transaction against the stored
// one.
func Transaction(candidate models.BankTransaction, existing *models.BankTransaction) Decision {
	if existing == nil {
		return Decision{Op: Insert}
	}

	var changes []FieldChange
	changes = appendChange(changes, "account_id", existing.AccountID, candidate.AccountID)
	changes = appendDateChange(changes, "posted_date", existing.PostedDate, candidate.PostedDate)
	changes = appendDecimalChange(changes, "amount", existing.Amount, candidate.Amount)
	changes = appendChange(changes, "description", existing.Description, candidate.Description)
	changes = appendChange(changes, "category", existing.Category, candidate.Category)

	return decide(changes)
}

func decide(changes []FieldChange) Decision {
	if len(changes) == 0 {
		return Decision{Op: SkipUnchanged}
	}
	return Decision{Op: UpdateIfChanged, Changes: changes}
}

func appendChange(changes []FieldChange, field, from, to string) []FieldChange {
	if from == to {
		return changes
	}
	return append(changes, FieldChange{Field: field, From: from, To: to})
}
