package models

import "time"

// CreateSessionRequest opens a new session for a principal.
type CreateSessionRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// CreateSessionResponse returns the freshly issued credentials. This is
// the only place the refresh token ever leaves the service.
type CreateSessionResponse struct {
	SessionID    string    `json:"session_id"`
	SessionToken string    `json:"session_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RotateRequest exchanges a refresh token for a fresh session token.
type RotateRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RotateResponse returns the current session token after a rotation
// decision. On an in-interval no-op the token is unchanged.
type RotateResponse struct {
	SessionToken  string    `json:"session_token"`
	ExpiresAt     time.Time `json:"expires_at"`
	RotationCount int       `json:"rotation_count"`
}

// Validation reasons reported when a session token is rejected.
const (
	ReasonSessionNotFound = "session_not_found"
	ReasonSessionInactive = "session_inactive"
	ReasonSessionRevoked  = "session_revoked"
	ReasonSessionExpired  = "session_expired"
)

// ValidationResult is the outcome of ValidateSession. Negative outcomes
// are values, not errors.
type ValidationResult struct {
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
	SessionID string    `json:"-"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// RevokeRequest terminates a single session owned by the caller.
type RevokeRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	Reason       string `json:"reason"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RevokeAllResponse reports how many sessions a bulk revocation touched.
type RevokeAllResponse struct {
	SessionsRevoked int64 `json:"sessions_revoked"`
}

// CleanupResult reports the record counts removed by a sweep.
type CleanupResult struct {
	ExpiredDeleted int64 `json:"expired_deleted"`
	RevokedDeleted int64 `json:"revoked_deleted"`
	TotalDeleted   int64 `json:"total_deleted"`
}
