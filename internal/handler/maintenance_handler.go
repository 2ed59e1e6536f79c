package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/internal/service"
	"github.com/noah-isme/session-api/pkg/config"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
	"github.com/noah-isme/session-api/pkg/response"
)

// auditReader serves audit trail lookups. The production implementation
// is repository.AuditRepository.
type auditReader interface {
	ListEventsBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error)
}

// MaintenanceHandler exposes the operator surface: the manual cleanup
// trigger and audit trail inspection. The same sweep also runs on the
// background ticker.
type MaintenanceHandler struct {
	cleanup *service.CleanupService
	audit   auditReader
	cfg     config.CleanupConfig
}

// NewMaintenanceHandler creates a new handler.
func NewMaintenanceHandler(cleanup *service.CleanupService, audit auditReader, cfg config.CleanupConfig) *MaintenanceHandler {
	return &MaintenanceHandler{cleanup: cleanup, audit: audit, cfg: cfg}
}

// Cleanup godoc
// @Summary Sweep terminal sessions
// @Description Delete expired and long-revoked session records
// @Tags Admin
// @Produce json
// @Param revoked_retention query string false "Retention window override, e.g. 720h"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /internal/cleanup [post]
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	retention := h.cfg.RevokedRetention
	if raw := c.Query("revoked_retention"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid revoked_retention"))
			return
		}
		retention = parsed
	}

	now := time.Now().UTC()
	result, err := h.cleanup.Cleanup(c.Request.Context(), now, now.Add(-retention))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result)
}

// AuditTrail godoc
// @Summary List session audit events
// @Description Return the lifecycle event trail for one session, oldest first
// @Tags Admin
// @Produce json
// @Param session_id path string true "Session identifier"
// @Param limit query int false "Maximum events to return"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /internal/sessions/{session_id}/events [get]
func (h *MaintenanceHandler) AuditTrail(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid limit"))
			return
		}
		limit = parsed
	}

	events, err := h.audit.ListEventsBySession(c.Request.Context(), c.Param("session_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, events)
}
