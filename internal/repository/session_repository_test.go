package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows(s *models.Session) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "session_token", "refresh_token", "expires_at", "refresh_expires_at",
		"last_rotated_at", "rotation_count", "ip_address", "user_agent", "is_active",
		"revoked_at", "revoked_reason", "created_at", "updated_at",
	}).AddRow(
		s.ID, s.UserID, s.SessionToken, s.RefreshToken, s.ExpiresAt, s.RefreshExpiresAt,
		s.LastRotatedAt, s.RotationCount, s.IPAddress, s.UserAgent, s.IsActive,
		s.RevokedAt, s.RevokedReason, s.CreatedAt, s.UpdatedAt,
	)
}

func TestSessionRepositoryInsertAndFind(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := &models.Session{
		UserID:           "user-1",
		SessionToken:     "st-1",
		RefreshToken:     "rt-1",
		ExpiresAt:        now.Add(24 * time.Hour),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		LastRotatedAt:    now,
		IsActive:         true,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Insert(context.Background(), session))
	require.NotEmpty(t, session.ID, "insert assigns an identifier")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, session_token")).
		WithArgs("st-1").
		WillReturnRows(sessionRows(session))
	found, err := repo.FindBySessionToken(context.Background(), "st-1")
	require.NoError(t, err)
	require.Equal(t, session.ID, found.ID)
	require.Equal(t, "user-1", found.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInsertUniqueViolationPassesThrough(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), &models.Session{UserID: "user-1", SessionToken: "st", RefreshToken: "rt"})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindUnknownReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, session_token")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByRefreshToken(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryRotateCAS(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("st-new", expiresAt, now, "rt-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	applied, err := repo.RotateCAS(context.Background(), "rt-1", 3, "st-new", expiresAt, now)
	require.NoError(t, err)
	require.True(t, applied)

	// Stale rotation count matches no row: the loser is told so without
	// an error.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("st-other", expiresAt, now, "rt-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	applied, err = repo.RotateCAS(context.Background(), "rt-1", 3, "st-other", expiresAt, now)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryRevokeOnlyOnce(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("sess-1", now, models.RevokeReasonUserLogout).
		WillReturnResult(sqlmock.NewResult(0, 1))
	applied, err := repo.Revoke(context.Background(), "sess-1", now, models.RevokeReasonUserLogout)
	require.NoError(t, err)
	require.True(t, applied)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("sess-1", now, models.RevokeReasonUserLogout).
		WillReturnResult(sqlmock.NewResult(0, 0))
	applied, err = repo.Revoke(context.Background(), "sess-1", now, models.RevokeReasonUserLogout)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryRevokeAllForUser(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("RETURNING session_token")).
		WithArgs("user-1", now, models.RevokeReasonAllRevoked).
		WillReturnRows(sqlmock.NewRows([]string{"session_token"}).
			AddRow("st-1").AddRow("st-2").AddRow("st-3"))
	tokens, err := repo.RevokeAllForUser(context.Background(), "user-1", now, models.RevokeReasonAllRevoked)
	require.NoError(t, err)
	require.Equal(t, []string{"st-1", "st-2", "st-3"}, tokens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteBatches(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * 24 * time.Hour)

	// Both windows must appear in the criterion: a session rotated late
	// in its refresh window still has a valid session token afterwards.
	mock.ExpectExec(regexp.QuoteMeta("refresh_expires_at < $1 AND expires_at < $1")).
		WithArgs(now, 500).
		WillReturnResult(sqlmock.NewResult(0, 42))
	deleted, err := repo.DeleteExpired(context.Background(), now, 500)
	require.NoError(t, err)
	require.Equal(t, int64(42), deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions")).
		WithArgs(cutoff, now, 500).
		WillReturnResult(sqlmock.NewResult(0, 7))
	deleted, err = repo.DeleteRevoked(context.Background(), cutoff, now, 500)
	require.NoError(t, err)
	require.Equal(t, int64(7), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListActiveByUser(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := &models.Session{
		ID:               "sess-1",
		UserID:           "user-1",
		SessionToken:     "st-1",
		RefreshToken:     "rt-1",
		ExpiresAt:        now.Add(24 * time.Hour),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		LastRotatedAt:    now,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, session_token")).
		WithArgs("user-1").
		WillReturnRows(sessionRows(session))
	sessions, err := repo.ListActiveByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess-1", sessions[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
