package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/session-api/internal/models"
)

const sessionColumns = `id, user_id, session_token, refresh_token, expires_at, refresh_expires_at, last_rotated_at, rotation_count, ip_address, user_agent, is_active, revoked_at, revoked_reason, created_at, updated_at`

// SessionRepository provides database access for session records.
//
// Required schema: unique indexes on session_token and refresh_token,
// secondary indexes on user_id, expires_at, refresh_expires_at and
// is_active.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Used by the manager to regenerate colliding tokens.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Insert persists a freshly created session.
func (r *SessionRepository) Insert(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, user_id, session_token, refresh_token, expires_at, refresh_expires_at, last_rotated_at, rotation_count, ip_address, user_agent, is_active, revoked_at, revoked_reason, created_at, updated_at)
        VALUES (:id, :user_id, :session_token, :refresh_token, :expires_at, :refresh_expires_at, :last_rotated_at, :rotation_count, :ip_address, :user_agent, :is_active, :revoked_at, :revoked_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// FindBySessionToken returns a session by its bearer session token.
func (r *SessionRepository) FindBySessionToken(ctx context.Context, token string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE session_token = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	return &session, nil
}

// FindByRefreshToken returns a session by its refresh token.
func (r *SessionRepository) FindByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by refresh token: %w", err)
	}
	return &session, nil
}

// ListActiveByUser returns all currently active sessions for a user,
// newest first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// RotateCAS applies a token rotation as a compare-and-set on
// (refresh_token, rotation_count). It returns false when another caller
// already applied the transition, without touching the row.
func (r *SessionRepository) RotateCAS(ctx context.Context, refreshToken string, expectedCount int, newToken string, expiresAt, rotatedAt time.Time) (bool, error) {
	const query = `UPDATE sessions
        SET session_token = $1, expires_at = $2, last_rotated_at = $3, rotation_count = rotation_count + 1, updated_at = $3
        WHERE refresh_token = $4 AND rotation_count = $5 AND is_active = TRUE AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, newToken, expiresAt, rotatedAt, refreshToken, expectedCount)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, err
		}
		return false, fmt.Errorf("rotate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate session rows affected: %w", err)
	}
	return affected == 1, nil
}

// Revoke marks a session revoked exactly once. A session that is already
// revoked is left untouched and reported as not applied.
func (r *SessionRepository) Revoke(ctx context.Context, id string, revokedAt time.Time, reason string) (bool, error) {
	const query = `UPDATE sessions
        SET is_active = FALSE, revoked_at = $2, revoked_reason = $3, updated_at = $2
        WHERE id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt, reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session rows affected: %w", err)
	}
	return affected == 1, nil
}

// RevokeAllForUser marks every active session for a user as revoked and
// returns the session tokens it touched. Returning the tokens from the
// UPDATE itself means cache invalidation covers exactly the revoked set,
// including sessions created while the bulk revoke was in flight.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, reason string) ([]string, error) {
	const query = `UPDATE sessions
        SET is_active = FALSE, revoked_at = $2, revoked_reason = $3, updated_at = $2
        WHERE user_id = $1 AND is_active = TRUE AND revoked_at IS NULL
        RETURNING session_token`
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, query, userID, revokedAt, reason); err != nil {
		return nil, fmt.Errorf("revoke user sessions: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes up to limit sessions whose access and refresh
// windows have both lapsed. Either window alone is not enough: a valid
// refresh token must always be able to rotate, and a rotation late in
// the refresh window pushes expires_at past refresh_expires_at, leaving
// a live session token after the refresh window closes.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	const query = `DELETE FROM sessions WHERE id IN (
        SELECT id FROM sessions WHERE refresh_expires_at < $1 AND expires_at < $1 LIMIT $2)`
	res, err := r.db.ExecContext(ctx, query, now, limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return affected, nil
}

// DeleteRevoked removes up to limit sessions revoked before the
// retention cutoff. Sessions already past their refresh window are
// excluded so the sweep counts never overlap with DeleteExpired.
func (r *SessionRepository) DeleteRevoked(ctx context.Context, revokeBefore, now time.Time, limit int) (int64, error) {
	const query = `DELETE FROM sessions WHERE id IN (
        SELECT id FROM sessions WHERE is_active = FALSE AND revoked_at < $1 AND refresh_expires_at >= $2 LIMIT $3)`
	res, err := r.db.ExecContext(ctx, query, revokeBefore, now, limit)
	if err != nil {
		return 0, fmt.Errorf("delete revoked sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete revoked rows affected: %w", err)
	}
	return affected, nil
}
