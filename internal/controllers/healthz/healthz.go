package healthz

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgersync/backend/internal/models"
)

func RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", Get)
}

// Get returns the application health and, if not healthy, an error.
func Get(c *gin.Context) {
	sqlDB, err := models.DB.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
