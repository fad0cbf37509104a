package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgersync/backend/internal/etl"
	"github.com/ledgersync/backend/internal/models"
	"gorm.io/gorm"
)

// RegisterSyncRoutes registers the routes for sync runs with the
// RouterGroup that is passed.
func RegisterSyncRoutes(r *gin.RouterGroup, orchestrator *etl.Orchestrator) {
	r.POST("", CreateSync(orchestrator))
	r.GET("", GetSyncs)
	r.GET("/:id", GetSync)
}

// CreateSync triggers a sync run across all configured sources and returns
// the finalized run.
func CreateSync(orchestrator *etl.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := orchestrator.Run(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
			return
		}

		c.JSON(http.StatusCreated, run)
	}
}

// GetSyncs returns all sync runs, newest first.
func GetSyncs(c *gin.Context) {
	var runs []models.SyncRun
	err := models.DB.Preload("Results").Order("started_at DESC").Find(&runs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, runs)
}

// GetSync returns one sync run with its per-source results.
func GetSync(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: "the ID is not a valid UUID"})
		return
	}

	var run models.SyncRun
	err = models.DB.Preload("Results").First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, httpError{Error: "there is no sync run with this ID"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}
