package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hookfleet/internal/fleet"
	"hookfleet/pkg/logger"
)

// FleetHandler exposes the controller's operational surface: fleet counts
// and a manual rotation trigger. The business APIs of consuming systems
// live elsewhere.
type FleetHandler struct {
	manager *fleet.Manager
}

// NewFleetHandler creates fleet handler
func NewFleetHandler(manager *fleet.Manager) *FleetHandler {
	return &FleetHandler{manager: manager}
}

// Status returns current fleet counts per table
func (h *FleetHandler) Status(c *gin.Context) {
	status, err := h.manager.Status(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to read fleet status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read fleet status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Rotate triggers a rotation cycle outside the normal schedule
func (h *FleetHandler) Rotate(c *gin.Context) {
	if err := h.manager.Rotate(c.Request.Context()); err != nil {
		logger.ErrorCtx(c.Request.Context(), "manual rotation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rotation completed"})
}

// HealthCheck triggers a health-check cycle outside the normal schedule
func (h *FleetHandler) HealthCheck(c *gin.Context) {
	if err := h.manager.HealthCheck(c.Request.Context()); err != nil {
		logger.ErrorCtx(c.Request.Context(), "manual health check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "health check completed"})
}
