package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/contactly/contactly/pkg/response"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := gin.H{"status": "ok"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: status})
		return
	}

	status["database"] = "ok"
	response.Success(c, http.StatusOK, status)
}
