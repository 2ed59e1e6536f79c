package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/internal/service"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
	"github.com/noah-isme/session-api/pkg/response"
)

// SessionHandler wires HTTP endpoints to the session service.
type SessionHandler struct {
	service *service.SessionService
	logger  *zap.Logger
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc *service.SessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{service: svc, logger: logger}
}

// rotationFailure collapses every lifecycle rejection into one generic
// 401 so the response never doubles as a session-enumeration oracle.
// The precise reason goes to the logs and the audit trail only.
func (h *SessionHandler) rotationFailure(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrSessionNotFound.Code,
		appErrors.ErrSessionInactive.Code,
		appErrors.ErrSessionRevoked.Code,
		appErrors.ErrRefreshExpired.Code,
		appErrors.ErrMaxRotations.Code:
		h.logger.Info("rotation rejected",
			zap.String("code", appErr.Code),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "please sign in again"))
	default:
		response.Error(c, err)
	}
}

// Create godoc
// @Summary Create session
// @Description Open a new session for a principal and issue a token pair
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Create payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid create payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Rotate godoc
// @Summary Rotate session token
// @Description Exchange a refresh token for a fresh session token
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.RotateRequest true "Rotate payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /sessions/rotate [post]
func (h *SessionHandler) Rotate(c *gin.Context) {
	var req models.RotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rotate payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Rotate(c.Request.Context(), req)
	if err != nil {
		h.rotationFailure(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Validate godoc
// @Summary Validate session token
// @Description Check a session token on behalf of a resource server
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions/validate [get]
func (h *SessionHandler) Validate(c *gin.Context) {
	result, err := h.service.Validate(c.Request.Context(), bearerToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	// Validation outcomes are values: the response is 200 either way.
	response.JSON(c, http.StatusOK, result)
}

// ListActive godoc
// @Summary List active sessions
// @Description List the caller's active sessions; token values are never included
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) ListActive(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	infos, err := h.service.GetActiveSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, infos)
}

// Revoke godoc
// @Summary Revoke session
// @Description Revoke one of the caller's sessions; defaults to the current one
// @Tags Sessions
// @Accept json
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sessions [delete]
func (h *SessionHandler) Revoke(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RevokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revoke payload"))
			return
		}
	}
	if req.SessionToken == "" {
		// No explicit target: revoke the session making the request.
		req.SessionToken = bearerToken(c)
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	if err := h.service.Revoke(c.Request.Context(), req, principal.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RevokeAll godoc
// @Summary Revoke all sessions
// @Description Log the caller out everywhere
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /sessions/all [delete]
func (h *SessionHandler) RevokeAll(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.service.RevokeAll(c.Request.Context(), principal.UserID, principal.UserID, false)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, models.RevokeAllResponse{SessionsRevoked: count})
}

// AdminRevokeAll godoc
// @Summary Revoke all sessions for a user
// @Description Administrative account lockout
// @Tags Admin
// @Produce json
// @Param user_id path string true "Target user"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /internal/users/{user_id}/sessions [delete]
func (h *SessionHandler) AdminRevokeAll(c *gin.Context) {
	targetUserID := c.Param("user_id")

	count, err := h.service.RevokeAll(c.Request.Context(), targetUserID, "", true)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, models.RevokeAllResponse{SessionsRevoked: count})
}
