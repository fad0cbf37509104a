package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgersync/backend/internal/models"
)

// RegisterCategoryRuleRoutes registers the routes for category rules with
// the RouterGroup that is passed.
func RegisterCategoryRuleRoutes(r *gin.RouterGroup) {
	r.GET("", GetCategoryRules)
	r.POST("", CreateCategoryRule)
}

// CategoryRuleEditable are the fields of a category rule that clients set.
type CategoryRuleEditable struct {
	Priority uint   `json:"priority" example:"1"`
	Match    string `json:"match" binding:"required" example:"AWS*"`
	Category string `json:"category" binding:"required" example:"Infrastructure"`
}

// GetCategoryRules returns all category rules in priority order.
func GetCategoryRules(c *gin.Context) {
	var rules []models.CategoryRule
	if err := models.DB.Order("priority ASC").Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, rules)
}

// CreateCategoryRule creates a new category rule. Rules apply to future
// syncs, already categorized transactions are not rewritten.
func CreateCategoryRule(c *gin.Context) {
	var editable CategoryRuleEditable
	if err := c.ShouldBindJSON(&editable); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	rule := models.CategoryRule{
		Priority: editable.Priority,
		Match:    editable.Match,
		Category: editable.Category,
	}

	if err := models.DB.Create(&rule).Error; err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}
