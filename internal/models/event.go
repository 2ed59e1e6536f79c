package models

import "time"

// Audit actions emitted by the session lifecycle.
const (
	EventSessionCreated     = "session_created"
	EventSessionRotated     = "session_token_rotated"
	EventSessionRevoked     = "session_revoked"
	EventAllSessionsRevoked = "all_sessions_revoked"
	EventRefreshExpired     = "session_expired_revoked"
	EventMaxRotations       = "max_rotations_revoked"
	EventSessionsSwept      = "sessions_swept"
)

// SessionEvent is the structured record handed to the audit sink.
type SessionEvent struct {
	ID        string    `db:"id" json:"id"`
	SessionID *string   `db:"session_id" json:"session_id,omitempty"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Detail    []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
