package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgersync/backend/internal/models"
	"gorm.io/gorm"
)

// RegisterReviewRoutes registers the routes for the review queue with the
// RouterGroup that is passed.
func RegisterReviewRoutes(r *gin.RouterGroup) {
	r.GET("", GetReviewItems)
	r.PATCH("/:id", ResolveReviewItem)
}

// GetReviewItems returns review queue entries. By default only unresolved
// items are returned; pass ?resolved=true for the others.
func GetReviewItems(c *gin.Context) {
	resolved := false
	if value, ok := c.GetQuery("resolved"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpError{Error: "resolved must be a boolean"})
			return
		}
		resolved = parsed
	}

	var items []models.ReviewItem
	query := models.DB.Where("resolved = ?", resolved).Order("created_at ASC")
	if source, ok := c.GetQuery("source"); ok {
		query = query.Where("source = ?", source)
	}

	if err := query.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, items)
}

// ResolveReviewItem marks a review queue entry as resolved. The underlying
// record stays untouched, corrections happen in the source system and
// arrive with the next sync.
func ResolveReviewItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: "the ID is not a valid UUID"})
		return
	}

	var item models.ReviewItem
	err = models.DB.First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, httpError{Error: "there is no review item with this ID"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	item.Resolved = true
	if err := models.DB.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}
