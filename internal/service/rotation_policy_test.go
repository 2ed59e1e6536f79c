package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/session-api/internal/models"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
)

func policySession(now time.Time) *models.Session {
	return &models.Session{
		ID:               "s1",
		UserID:           "u1",
		SessionToken:     "tok",
		RefreshToken:     "ref",
		ExpiresAt:        now.Add(24 * time.Hour),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		LastRotatedAt:    now,
		RotationCount:    0,
		IsActive:         true,
		CreatedAt:        now,
	}
}

func TestDecideRotation(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	interval := time.Hour
	maxRotations := 100
	revokedAt := t0.Add(time.Minute)

	tests := []struct {
		name       string
		mutate     func(*models.Session)
		now        time.Time
		wantAction rotationAction
		wantReason string
		wantErr    *appErrors.Error
	}{
		{
			name:       "nil session fails not found",
			mutate:     nil,
			now:        t0,
			wantAction: rotationNoop,
			wantErr:    appErrors.ErrSessionNotFound,
		},
		{
			name:       "inactive without revocation fails inactive",
			mutate:     func(s *models.Session) { s.IsActive = false },
			now:        t0.Add(2 * time.Hour),
			wantAction: rotationNoop,
			wantErr:    appErrors.ErrSessionInactive,
		},
		{
			name: "revoked fails revoked",
			mutate: func(s *models.Session) {
				s.IsActive = false
				s.RevokedAt = &revokedAt
			},
			now:        t0.Add(2 * time.Hour),
			wantAction: rotationNoop,
			wantErr:    appErrors.ErrSessionRevoked,
		},
		{
			name:       "dead refresh window revokes",
			mutate:     nil,
			now:        t0.Add(8 * 24 * time.Hour),
			wantAction: rotationRevoke,
			wantReason: models.RevokeReasonRefreshExpired,
			wantErr:    appErrors.ErrRefreshExpired,
		},
		{
			name:       "rotation budget exhausted revokes",
			mutate:     func(s *models.Session) { s.RotationCount = maxRotations },
			now:        t0.Add(2 * time.Hour),
			wantAction: rotationRevoke,
			wantReason: models.RevokeReasonMaxRotations,
			wantErr:    appErrors.ErrMaxRotations,
		},
		{
			name:       "refresh expiry outranks rotation ceiling",
			mutate:     func(s *models.Session) { s.RotationCount = maxRotations },
			now:        t0.Add(8 * 24 * time.Hour),
			wantAction: rotationRevoke,
			wantReason: models.RevokeReasonRefreshExpired,
			wantErr:    appErrors.ErrRefreshExpired,
		},
		{
			name:       "inside interval with plenty of runway is a noop",
			mutate:     nil,
			now:        t0.Add(30 * time.Minute),
			wantAction: rotationNoop,
		},
		{
			name:       "interval elapsed rotates",
			mutate:     nil,
			now:        t0.Add(time.Hour),
			wantAction: rotationRotate,
		},
		{
			name: "near expiry rotates even inside interval",
			mutate: func(s *models.Session) {
				// Last rotation just happened but the token dies in 30m.
				s.LastRotatedAt = t0.Add(23*time.Hour + 20*time.Minute)
			},
			now:        t0.Add(23*time.Hour + 30*time.Minute),
			wantAction: rotationRotate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var session *models.Session
			if tt.name != "nil session fails not found" {
				session = policySession(t0)
				if tt.mutate != nil {
					tt.mutate(session)
				}
			}

			decision := decideRotation(session, tt.now, interval, maxRotations)
			assert.Equal(t, tt.wantAction, decision.Action)
			assert.Equal(t, tt.wantReason, decision.RevokeReason)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr.Code, decision.Err.Code)
			} else {
				assert.Nil(t, decision.Err)
			}
		})
	}
}

func TestDecideRotationIsPure(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := policySession(t0)
	before := *session

	_ = decideRotation(session, t0.Add(8*24*time.Hour), time.Hour, 100)

	assert.Equal(t, before, *session, "policy must not mutate the session")
}
