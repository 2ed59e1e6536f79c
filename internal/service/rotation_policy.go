package service

import (
	"time"

	"github.com/noah-isme/session-api/internal/models"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
)

// rotationAction enumerates what Rotate must do with a session after
// policy evaluation.
type rotationAction int

const (
	// rotationNoop returns the current token unchanged.
	rotationNoop rotationAction = iota
	// rotationRotate mints a new session token.
	rotationRotate
	// rotationRevoke marks the session revoked, then fails.
	rotationRevoke
)

// rotationDecision is the outcome of the pure rotation policy.
type rotationDecision struct {
	Action       rotationAction
	RevokeReason string
	Err          *appErrors.Error
}

// decideRotation evaluates the rotation policy for a session at the
// given instant. The checks run in a fixed order; which failure a caller
// sees is part of the contract. The function is pure — the one mutating
// consequence (revoking on a dead refresh token or an exhausted rotation
// budget) is described in the decision and applied by the manager.
func decideRotation(session *models.Session, now time.Time, interval time.Duration, maxRotations int) rotationDecision {
	if session == nil {
		return rotationDecision{Err: appErrors.ErrSessionNotFound}
	}
	// A revoked session always has IsActive false, so the inactive
	// check only catches rows deactivated without a revocation record.
	if !session.IsActive && session.RevokedAt == nil {
		return rotationDecision{Err: appErrors.ErrSessionInactive}
	}
	if session.RevokedAt != nil {
		return rotationDecision{Err: appErrors.ErrSessionRevoked}
	}
	if session.RefreshExpiresAt.Before(now) {
		return rotationDecision{
			Action:       rotationRevoke,
			RevokeReason: models.RevokeReasonRefreshExpired,
			Err:          appErrors.ErrRefreshExpired,
		}
	}
	if session.RotationCount >= maxRotations {
		return rotationDecision{
			Action:       rotationRevoke,
			RevokeReason: models.RevokeReasonMaxRotations,
			Err:          appErrors.ErrMaxRotations,
		}
	}

	// Rotate when the token is close to expiry or the interval has
	// elapsed since the last rotation. A polling client always gets a
	// fresh token before expiry; a client hammering Rotate inside the
	// interval gets an idempotent no-op instead of token churn.
	timeUntilExpiry := session.ExpiresAt.Sub(now)
	timeSinceLastRotation := now.Sub(session.LastRotatedAt)
	if timeUntilExpiry < interval || timeSinceLastRotation >= interval {
		return rotationDecision{Action: rotationRotate}
	}

	return rotationDecision{Action: rotationNoop}
}
