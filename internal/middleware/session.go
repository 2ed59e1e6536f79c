package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-api/internal/service"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
	"github.com/noah-isme/session-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the validated
// session principal.
const ContextPrincipalKey = "currentSession"

// Principal identifies the session behind an authenticated request.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RequireSession protects routes by requiring a valid session token. The
// rejection reason is never exposed to the client; the validation result
// only drives logs and metrics.
func RequireSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		result, err := sessions.Validate(c.Request.Context(), tok)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !result.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "please sign in again"))
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, Principal{
			UserID:    result.UserID,
			SessionID: result.SessionID,
			ExpiresAt: result.ExpiresAt,
		})
		c.Next()
	}
}

// OptionalSession attaches a principal when a valid token is present but
// does not block.
func OptionalSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.Next()
			return
		}

		result, err := sessions.Validate(c.Request.Context(), tok)
		if err != nil || !result.Valid {
			c.Next()
			return
		}

		c.Set(ContextPrincipalKey, Principal{
			UserID:    result.UserID,
			SessionID: result.SessionID,
			ExpiresAt: result.ExpiresAt,
		})
		c.Next()
	}
}

// RequireAdmin gates administrative endpoints behind a shared deployment
// token conveyed in X-Admin-Token. An empty configured token disables
// the surface entirely.
func RequireAdmin(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || c.GetHeader("X-Admin-Token") != adminToken {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
