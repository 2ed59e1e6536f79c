package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/session-api/internal/models"
)

// AuditRepository stores session lifecycle events.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertEvent stores a session event record.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *models.SessionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_events (id, session_id, user_id, action, detail, ip_address, user_agent, created_at)
        VALUES (:id, :session_id, :user_id, :action, :detail, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListEventsBySession returns the audit trail for one session, oldest
// first.
func (r *AuditRepository) ListEventsBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, session_id, user_id, action, detail, ip_address, user_agent, created_at
        FROM audit_events WHERE session_id = $1 ORDER BY created_at ASC LIMIT $2`
	var events []models.SessionEvent
	if err := r.db.SelectContext(ctx, &events, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
