package models_test

import (
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestPaymentCreate() {
	payment := suite.createTestPayment(models.Payment{
		Source:        "quickbooks-csv",
		PaymentNumber: "PMT-100",
		CustomerName:  "Acme Corp",
		PaymentDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromFloat(1250),
	})

	suite.Assert().NotZero(payment.ID)
	suite.Assert().Equal("Unknown", payment.PaymentMethod, "An empty payment method must default to Unknown")
}

func (suite *TestSuiteStandard) TestPaymentAmountPositive() {
	err := models.DB.Create(&models.Payment{
		Source:        "quickbooks-csv",
		PaymentNumber: "PMT-101",
		CustomerName:  "Acme Corp",
		Amount:        decimal.Zero,
	}).Error

	suite.Assert().ErrorIs(err, models.ErrPaymentAmountNotPositive)
}

func (suite *TestSuiteStandard) TestPaymentNaturalKeyUnique() {
	_ = suite.createTestPayment(models.Payment{
		Source:        "quickbooks-csv",
		PaymentNumber: "PMT-102",
		CustomerName:  "Acme Corp",
		Amount:        decimal.NewFromFloat(10),
	})

	err := models.DB.Create(&models.Payment{
		Source:        "quickbooks-csv",
		PaymentNumber: "PMT-102",
		CustomerName:  "Acme Corp",
		Amount:        decimal.NewFromFloat(10),
	}).Error
	suite.Assert().Error(err)
}

func (suite *TestSuiteStandard) TestBankTransactionCreate() {
	transaction := suite.createTestTransaction(models.BankTransaction{
		Source:      "mercury",
		ExternalID:  "merc_txn_00001",
		AccountID:   "merc_acc_001",
		PostedDate:  time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromFloat(-149.99),
		Description: "AWS Services",
	})

	suite.Assert().NotZero(transaction.ID)
	suite.Assert().True(transaction.Amount.IsNegative(), "Signed amounts must survive the round trip")
}

func (suite *TestSuiteStandard) TestCategoryRuleValidation() {
	err := models.DB.Create(&models.CategoryRule{Match: "AWS*"}).Error
	suite.Assert().ErrorIs(err, models.ErrCategoryRuleInvalid)

	err = models.DB.Create(&models.CategoryRule{Match: "AWS*", Category: "Infrastructure"}).Error
	suite.Assert().NoError(err)
}
