package models_test

import (
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestInvoiceCreate() {
	invoice := suite.createTestInvoice(models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-001",
		CustomerName:  "Acme Corp",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   decimal.NewFromFloat(5000),
		Balance:       decimal.Zero,
		Status:        models.StatusPaid,
	})

	suite.Assert().NotZero(invoice.ID)

	var dbInvoice models.Invoice
	err := models.DB.First(&dbInvoice, "id = ?", invoice.ID).Error
	suite.Require().NoError(err)

	suite.Assert().True(dbInvoice.TotalAmount.Equal(decimal.NewFromFloat(5000)))
	suite.Assert().Equal(time.UTC, dbInvoice.InvoiceDate.Location())
}

func (suite *TestSuiteStandard) TestInvoiceNaturalKeyUnique() {
	_ = suite.createTestInvoice(models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-001",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(5000),
		Status:        models.StatusUnpaid,
	})

	err := models.DB.Create(&models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-001",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(5000),
		Status:        models.StatusUnpaid,
	}).Error
	suite.Assert().Error(err, "The same natural key must not be insertable twice for one source")

	err = models.DB.Create(&models.Invoice{
		Source:        "quickbooks-api",
		InvoiceNumber: "INV-001",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(5000),
		Status:        models.StatusUnpaid,
	}).Error
	suite.Assert().NoError(err, "The same natural key must be insertable for another source")
}

func (suite *TestSuiteStandard) TestInvoiceBalanceExceedsTotal() {
	err := models.DB.Create(&models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-002",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(100),
		Balance:       decimal.NewFromFloat(150),
		Status:        models.StatusUnpaid,
	}).Error

	suite.Assert().ErrorIs(err, models.ErrInvoiceBalanceExceedsTotal)
}

func (suite *TestSuiteStandard) TestInvoiceNegativeAmounts() {
	err := models.DB.Create(&models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-003",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(-1),
		Status:        models.StatusUnpaid,
	}).Error
	suite.Assert().ErrorIs(err, models.ErrInvoiceTotalNegative)

	err = models.DB.Create(&models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: "INV-004",
		CustomerName:  "Acme Corp",
		TotalAmount:   decimal.NewFromFloat(10),
		Balance:       decimal.NewFromFloat(-1),
		Status:        models.StatusUnpaid,
	}).Error
	suite.Assert().ErrorIs(err, models.ErrInvoiceBalanceNegative)
}

func (suite *TestSuiteStandard) TestParseInvoiceStatus() {
	tests := []struct {
		input  string
		status models.InvoiceStatus
		known  bool
	}{
		{"Paid", models.StatusPaid, true},
		{"paid", models.StatusPaid, true},
		{"Overdue", models.StatusUnpaid, true},
		{"open", models.StatusUnpaid, true},
		{"Partially Paid", models.StatusPartiallyPaid, true},
		{"void", models.StatusVoid, true},
		{"Draft-ish", models.StatusUnknown, false},
		{"", models.StatusUnknown, false},
	}

	for _, tt := range tests {
		status, known := models.ParseInvoiceStatus(tt.input)
		suite.Assert().Equal(tt.status, status, "input: %q", tt.input)
		suite.Assert().Equal(tt.known, known, "input: %q", tt.input)
	}
}
