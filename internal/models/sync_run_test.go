package models_test

import (
	"time"

	"github.com/ledgersync/backend/internal/models"
)

func (suite *TestSuiteStandard) TestSyncRunWithResults() {
	run := models.SyncRun{
		Status:    models.RunRunning,
		StartedAt: time.Now().In(time.UTC),
	}
	suite.Require().NoError(models.DB.Create(&run).Error)

	finished := time.Now().In(time.UTC)
	run.FinishedAt = &finished
	run.Status = models.RunPartiallyFailed
	suite.Require().NoError(models.DB.Omit("Results").Save(&run).Error)

	results := []models.SourceResult{
		{SyncRunID: run.ID, Source: "quickbooks-csv", Status: models.SourceSucceeded, Inserted: 10},
		{SyncRunID: run.ID, Source: "mercury", Status: models.SourceFailed, Reason: "fetch failed: giving up after 5 attempts"},
	}
	for i := range results {
		suite.Require().NoError(models.DB.Create(&results[i]).Error)
	}

	var dbRun models.SyncRun
	suite.Require().NoError(models.DB.Preload("Results").First(&dbRun, "id = ?", run.ID).Error)

	suite.Assert().Equal(models.RunPartiallyFailed, dbRun.Status)
	suite.Assert().Len(dbRun.Results, 2)
	suite.Assert().NotNil(dbRun.FinishedAt)
}

func (suite *TestSuiteStandard) TestReviewItemDefaultsUnresolved() {
	item := models.ReviewItem{
		Source:     "quickbooks-csv",
		Entity:     models.KindInvoice,
		NaturalKey: "INV-001",
		Reason:     models.ReviewConflict,
		Detail:     "total amount increased from 5000 to 5500 after creation",
	}
	suite.Require().NoError(models.DB.Create(&item).Error)

	var dbItem models.ReviewItem
	suite.Require().NoError(models.DB.First(&dbItem, "id = ?", item.ID).Error)
	suite.Assert().False(dbItem.Resolved)
}
