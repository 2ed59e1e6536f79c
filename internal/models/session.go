package models

import "time"

// Revocation reasons recorded on the session row. Once set they are
// never cleared.
const (
	RevokeReasonUserLogout     = "user_logout"
	RevokeReasonAllRevoked     = "all_sessions_revoked"
	RevokeReasonRefreshExpired = "refresh_token_expired"
	RevokeReasonMaxRotations   = "max_rotations_reached"
)

// Session is the persisted authentication session. The session token is
// replaced on every rotation; the refresh token is fixed for the life of
// the record.
type Session struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	SessionToken     string     `db:"session_token" json:"-"`
	RefreshToken     string     `db:"refresh_token" json:"-"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	RefreshExpiresAt time.Time  `db:"refresh_expires_at" json:"refresh_expires_at"`
	LastRotatedAt    time.Time  `db:"last_rotated_at" json:"last_rotated_at"`
	RotationCount    int        `db:"rotation_count" json:"rotation_count"`
	IPAddress        string     `db:"ip_address" json:"ip_address"`
	UserAgent        string     `db:"user_agent" json:"user_agent"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedReason    *string    `db:"revoked_reason" json:"revoked_reason,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// SessionInfo is the caller-facing view of a session. It never carries
// token values.
type SessionInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastRotatedAt time.Time `json:"last_rotated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	RotationCount int       `json:"rotation_count"`
}

// Info projects the session into its caller-facing view.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		LastRotatedAt: s.LastRotatedAt,
		ExpiresAt:     s.ExpiresAt,
		IPAddress:     s.IPAddress,
		UserAgent:     s.UserAgent,
		RotationCount: s.RotationCount,
	}
}
