package store_test

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/reconcile"
	"github.com/ledgersync/backend/internal/store"
	"github.com/ledgersync/backend/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TestSuiteStandard struct {
	suite.Suite
	store *store.Store
}

func TestSuite(t *testing.T) {
	suite.Run(t, new(TestSuiteStandard))
}

func (suite *TestSuiteStandard) SetupTest() {
	err := models.Connect(test.TmpFile(suite.T()))
	if err != nil {
		log.Fatalf("Database connection failed with: %#v", err)
	}

	suite.store = store.New(models.DB)
}

func (suite *TestSuiteStandard) TearDownTest() {
	sqlDB, _ := models.DB.DB()
	sqlDB.Close()
}

func invoice(number string) *models.Invoice {
	return &models.Invoice{
		Source:        "quickbooks-csv",
		InvoiceNumber: number,
		CustomerName:  "Acme Corp",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   decimal.NewFromInt(5000),
		Balance:       decimal.NewFromInt(5000),
		Status:        models.StatusUnpaid,
	}
}

func (suite *TestSuiteStandard) TestApplyInserts() {
	result, err := suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.Insert, Record: invoice("INV-001")},
		{Op: reconcile.Insert, Record: invoice("INV-002")},
	})
	suite.Require().NoError(err)
	suite.Assert().Equal(2, result.Inserted)
	suite.Assert().Equal(0, result.Updated)

	var count int64
	models.DB.Model(&models.Invoice{}).Count(&count)
	suite.Assert().Equal(int64(2), count)
}

func (suite *TestSuiteStandard) TestApplyUpdateReplacesRow() {
	_, err := suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.Insert, Record: invoice("INV-001")},
	})
	suite.Require().NoError(err)

	existing, err := suite.store.FindInvoice(context.Background(), "quickbooks-csv", "INV-001")
	suite.Require().NoError(err)
	suite.Require().NotNil(existing)

	updated := invoice("INV-001")
	updated.DefaultModel = existing.DefaultModel
	updated.Balance = decimal.NewFromInt(2500)
	updated.Status = models.StatusPartiallyPaid

	result, err := suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.UpdateIfChanged, Record: updated},
	})
	suite.Require().NoError(err)
	suite.Assert().Equal(1, result.Updated)

	var count int64
	models.DB.Model(&models.Invoice{}).Count(&count)
	suite.Assert().Equal(int64(1), count, "An update must replace the row, not insert a sibling")

	dbInvoice, err := suite.store.FindInvoice(context.Background(), "quickbooks-csv", "INV-001")
	suite.Require().NoError(err)
	suite.Assert().True(dbInvoice.Balance.Equal(decimal.NewFromInt(2500)))
	suite.Assert().Equal(models.StatusPartiallyPaid, dbInvoice.Status)
}

// TestApplyAtomicity checks that a failing batch leaves no partial subset
// in the store.
func (suite *TestSuiteStandard) TestApplyAtomicity() {
	_, err := suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.Insert, Record: invoice("INV-001")},
		{Op: reconcile.Insert, Record: invoice("INV-002")},
		// Same natural key again, violates the unique index and fails the
		// batch.
		{Op: reconcile.Insert, Record: invoice("INV-001")},
	})
	suite.Require().Error(err)

	var count int64
	models.DB.Model(&models.Invoice{}).Count(&count)
	suite.Assert().Equal(int64(0), count, "A failed batch must not leave partial rows behind")
}

func (suite *TestSuiteStandard) TestApplyRejectsUnsupportedOps() {
	_, err := suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.SkipUnchanged, Record: invoice("INV-001")},
	})
	suite.Assert().ErrorIs(err, store.ErrUnsupportedOp)
}

func (suite *TestSuiteStandard) TestApplyEmptyBatch() {
	result, err := suite.store.Apply(context.Background(), nil)
	suite.Require().NoError(err)
	suite.Assert().Zero(result.Inserted)
	suite.Assert().Zero(result.Updated)
}

func (suite *TestSuiteStandard) TestFindReturnsNilWhenMissing() {
	found, err := suite.store.FindInvoice(context.Background(), "quickbooks-csv", "INV-404")
	suite.Require().NoError(err)
	suite.Assert().Nil(found)

	payment, err := suite.store.FindPayment(context.Background(), "quickbooks-csv", "PMT-404")
	suite.Require().NoError(err)
	suite.Assert().Nil(payment)

	transaction, err := suite.store.FindTransaction(context.Background(), "mercury", "txn-404")
	suite.Require().NoError(err)
	suite.Assert().Nil(transaction)
}

func (suite *TestSuiteStandard) TestQueueReviewSurvivesBatchRollback() {
	err := suite.store.QueueReview(context.Background(), &models.ReviewItem{
		Source:     "quickbooks-csv",
		Entity:     models.KindInvoice,
		NaturalKey: "INV-001",
		Reason:     models.ReviewConflict,
		Detail:     "total amount increased from 5000 to 5500 after creation",
	})
	suite.Require().NoError(err)

	_, err = suite.store.Apply(context.Background(), []store.Item{
		{Op: reconcile.Insert, Record: invoice("INV-002")},
		{Op: reconcile.Insert, Record: invoice("INV-002")},
	})
	suite.Require().Error(err)

	var count int64
	models.DB.Model(&models.ReviewItem{}).Count(&count)
	suite.Assert().Equal(int64(1), count, "Review items are not part of the write batch")
}

func (suite *TestSuiteStandard) TestCategoryRulesOrderedByPriority() {
	suite.Require().NoError(models.DB.Create(&models.CategoryRule{Priority: 2, Match: "*", Category: "Other"}).Error)
	suite.Require().NoError(models.DB.Create(&models.CategoryRule{Priority: 1, Match: "AWS*", Category: "Infrastructure"}).Error)

	rules, err := suite.store.CategoryRules(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(rules, 2)
	suite.Assert().Equal("Infrastructure", rules[0].Category)
}

func (suite *TestSuiteStandard) TestRunLifecycle() {
	run := &models.SyncRun{Status: models.RunPending, StartedAt: time.Now().In(time.UTC)}
	suite.Require().NoError(suite.store.CreateRun(context.Background(), run))

	run.Status = models.RunRunning
	suite.Require().NoError(suite.store.UpdateRun(context.Background(), run))

	finished := time.Now().In(time.UTC)
	run.FinishedAt = &finished
	run.Status = models.RunSucceeded
	suite.Require().NoError(suite.store.FinalizeRun(context.Background(), run, []models.SourceResult{
		{Source: "quickbooks-csv", Status: models.SourceSucceeded, Inserted: 3},
	}))

	var dbRun models.SyncRun
	suite.Require().NoError(models.DB.Preload("Results").First(&dbRun, "id = ?", run.ID).Error)
	suite.Assert().Equal(models.RunSucceeded, dbRun.Status)
	suite.Require().Len(dbRun.Results, 1)
	suite.Assert().Equal(run.ID, dbRun.Results[0].SyncRunID)
}
