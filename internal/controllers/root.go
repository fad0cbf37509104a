package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// httpError is the API error response body.
type httpError struct {
	Error string `json:"error"`
}

// GetRoot returns the entry points of the API.
func GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"links": gin.H{
			"healthz":       "/healthz",
			"metrics":       "/metrics",
			"syncs":         "/v1/syncs",
			"review":        "/v1/review",
			"categoryRules": "/v1/category-rules",
		},
	})
}
