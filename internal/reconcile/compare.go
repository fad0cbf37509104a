package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

func appendDecimalChange(changes []FieldChange, field string, from, to decimal.Decimal) []FieldChange {
	// Compare values, not representations: 0.00 and 0 are the same amount.
	if from.Equal(to) {
		return changes
	}
	return append(changes, FieldChange{Field: field, From: from.String(), To: to.String()})
}

func appendDateChange(changes []FieldChange, field string, from, to time.Time) []FieldChange {
	if from.In(time.UTC).Equal(to.In(time.UTC)) {
		return changes
	}
	return append(changes, FieldChange{
		Field: field,
		From:  from.In(time.UTC).Format(time.RFC3339),
		To:    to.In(time.UTC).Format(time.RFC3339),
	})
}
