package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/internal/repository"
	"github.com/noah-isme/session-api/pkg/config"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
	"github.com/noah-isme/session-api/pkg/token"
)

// sessionStore is the persistence contract the manager needs. The
// production implementation is repository.SessionRepository; tests use
// an in-memory fake.
type sessionStore interface {
	Insert(ctx context.Context, session *models.Session) error
	FindBySessionToken(ctx context.Context, token string) (*models.Session, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error)
	RotateCAS(ctx context.Context, refreshToken string, expectedCount int, newToken string, expiresAt, rotatedAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time, reason string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, reason string) ([]string, error)
}

// validationCache caches positive validation results. A disabled cache
// reports ErrCacheMiss on every lookup.
type validationCache interface {
	GetValidation(ctx context.Context, sessionToken string) (*models.ValidationResult, error)
	SetValidation(ctx context.Context, sessionToken string, result models.ValidationResult, ttl time.Duration) error
	InvalidateToken(ctx context.Context, sessionToken string) error
}

// SessionService orchestrates the session lifecycle: creation, token
// rotation, validation, and revocation. All read-then-write transitions
// go through a compare-and-set on (refresh_token, rotation_count) so
// concurrent rotations cannot double-apply.
type SessionService struct {
	store     sessionStore
	cache     validationCache
	sink      AuditSink
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       config.SessionConfig

	now func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(store sessionStore, cache validationCache, sink AuditSink, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg config.SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if sink == nil {
		sink = NopAuditSink{}
	}
	if cache == nil {
		cache = repository.NewCacheRepository(nil, logger)
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 24 * time.Hour
	}
	if cfg.RefreshDuration <= 0 {
		cfg.RefreshDuration = 7 * 24 * time.Hour
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = time.Hour
	}
	if cfg.MaxRotationCount <= 0 {
		cfg.MaxRotationCount = 100
	}
	return &SessionService{
		store:     store,
		cache:     cache,
		sink:      sink,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session for a principal and returns the issued
// credential pair. The refresh window strictly outlives the access
// window. A token uniqueness collision is retried once with fresh
// tokens.
func (s *SessionService) Create(ctx context.Context, req models.CreateSessionRequest) (*models.CreateSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create session payload")
	}

	for attempt := 0; attempt < 2; attempt++ {
		sessionToken, err := token.New()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session token")
		}
		refreshToken, err := token.New()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate refresh token")
		}

		now := s.now()
		session := &models.Session{
			UserID:           req.UserID,
			SessionToken:     sessionToken,
			RefreshToken:     refreshToken,
			ExpiresAt:        now.Add(s.cfg.Duration),
			RefreshExpiresAt: now.Add(s.cfg.RefreshDuration),
			LastRotatedAt:    now,
			RotationCount:    0,
			IPAddress:        req.IP,
			UserAgent:        req.UserAgent,
			IsActive:         true,
			CreatedAt:        now,
		}

		if err := s.store.Insert(ctx, session); err != nil {
			if repository.IsUniqueViolation(err) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to persist session")
		}

		s.metrics.IncSessionCreated()
		s.record(ctx, session, models.EventSessionCreated, nil, req.IP, req.UserAgent)

		return &models.CreateSessionResponse{
			SessionID:    session.ID,
			SessionToken: session.SessionToken,
			RefreshToken: session.RefreshToken,
			ExpiresAt:    session.ExpiresAt,
		}, nil
	}

	return nil, appErrors.Clone(appErrors.ErrStoreTransient, "token collision persisted across retries")
}

// Rotate exchanges a refresh token for a fresh session token according
// to the rotation policy. Inside the rotation interval the call is an
// idempotent no-op returning the current token. A lost CAS race is
// resolved by re-reading the row, so the loser observes the winner's
// token instead of an error.
func (s *SessionService) Rotate(ctx context.Context, req models.RotateRequest) (*models.RotateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rotate payload")
	}

	for attempt := 0; attempt < 3; attempt++ {
		session, err := s.store.FindByRefreshToken(ctx, req.RefreshToken)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.metrics.IncRotation("denied")
				return nil, appErrors.ErrSessionNotFound
			}
			return nil, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to load session")
		}

		now := s.now()
		decision := decideRotation(session, now, s.cfg.RotationInterval, s.cfg.MaxRotationCount)

		switch decision.Action {
		case rotationRevoke:
			s.revokeForPolicy(ctx, session, now, decision.RevokeReason, req)
			s.metrics.IncRotation("denied")
			return nil, decision.Err

		case rotationNoop:
			if decision.Err != nil {
				s.metrics.IncRotation("denied")
				return nil, decision.Err
			}
			s.metrics.IncRotation("noop")
			return &models.RotateResponse{
				SessionToken:  session.SessionToken,
				ExpiresAt:     session.ExpiresAt,
				RotationCount: session.RotationCount,
			}, nil

		case rotationRotate:
			newToken, err := token.New()
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session token")
			}

			expiresAt := now.Add(s.cfg.Duration)
			applied, err := s.store.RotateCAS(ctx, req.RefreshToken, session.RotationCount, newToken, expiresAt, now)
			if err != nil {
				if repository.IsUniqueViolation(err) {
					continue
				}
				return nil, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to rotate session")
			}
			if !applied {
				// Lost the race. Re-read; the policy will usually
				// report an in-interval no-op carrying the winner's
				// token.
				s.metrics.IncRotation("conflict")
				continue
			}

			if err := s.cache.InvalidateToken(ctx, session.SessionToken); err != nil {
				s.logger.Warn("failed to invalidate rotated token", zap.Error(err))
			}

			newCount := session.RotationCount + 1
			detail, _ := json.Marshal(map[string]interface{}{"rotation_count": newCount})
			s.record(ctx, session, models.EventSessionRotated, detail, req.IP, req.UserAgent)
			s.metrics.IncRotation("rotated")

			return &models.RotateResponse{
				SessionToken:  newToken,
				ExpiresAt:     expiresAt,
				RotationCount: newCount,
			}, nil
		}
	}

	return nil, appErrors.Clone(appErrors.ErrStoreTransient, "rotation contention persisted across retries")
}

// Validate checks a session token. Negative outcomes are encoded in the
// result, never in the error; the error is reserved for infrastructure
// failure. The path is read-only and served from cache when possible.
func (s *SessionService) Validate(ctx context.Context, sessionToken string) (models.ValidationResult, error) {
	if sessionToken == "" {
		s.metrics.IncValidation(models.ReasonSessionNotFound)
		return models.ValidationResult{Reason: models.ReasonSessionNotFound}, nil
	}

	if cached, err := s.cache.GetValidation(ctx, sessionToken); err == nil && cached != nil {
		if cached.Valid && cached.ExpiresAt.After(s.now()) {
			s.metrics.IncCacheHit()
			s.metrics.IncValidation("valid")
			return *cached, nil
		}
	} else if appErrors.HasCode(err, appErrors.ErrCacheMiss) {
		s.metrics.IncCacheMiss()
	} else if err != nil {
		s.logger.Warn("validation cache lookup failed", zap.Error(err))
	}

	session, err := s.store.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncValidation(models.ReasonSessionNotFound)
			return models.ValidationResult{Reason: models.ReasonSessionNotFound}, nil
		}
		return models.ValidationResult{}, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to load session")
	}

	result := validateSession(session, s.now())
	if result.Valid {
		if err := s.cache.SetValidation(ctx, sessionToken, result, s.cfg.ValidationCacheTTL); err != nil {
			s.logger.Warn("failed to cache validation result", zap.Error(err))
		}
		s.metrics.IncValidation("valid")
	} else {
		s.metrics.IncValidation(result.Reason)
	}
	return result, nil
}

// validateSession applies the read-only validity checks in their
// contractual order.
func validateSession(session *models.Session, now time.Time) models.ValidationResult {
	switch {
	case session == nil:
		return models.ValidationResult{Reason: models.ReasonSessionNotFound}
	case !session.IsActive && session.RevokedAt == nil:
		return models.ValidationResult{Reason: models.ReasonSessionInactive}
	case session.RevokedAt != nil:
		return models.ValidationResult{Reason: models.ReasonSessionRevoked}
	case session.ExpiresAt.Before(now):
		return models.ValidationResult{Reason: models.ReasonSessionExpired}
	default:
		return models.ValidationResult{
			Valid:     true,
			SessionID: session.ID,
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
		}
	}
}

// Revoke terminates a single session owned by the caller. Ownership is
// checked before mutating; a cross-user attempt is an authorization
// failure, never a not-found. Revoking an already revoked session is a
// no-op success so repeated logouts stay idempotent.
func (s *SessionService) Revoke(ctx context.Context, req models.RevokeRequest, callerUserID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revoke payload")
	}

	session, err := s.store.FindBySessionToken(ctx, req.SessionToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to load session")
	}

	if session.UserID != callerUserID {
		return appErrors.Clone(appErrors.ErrForbidden, "session does not belong to caller")
	}

	reason := req.Reason
	if reason == "" {
		reason = models.RevokeReasonUserLogout
	}

	applied, err := s.store.Revoke(ctx, session.ID, s.now(), reason)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to revoke session")
	}

	if err := s.cache.InvalidateToken(ctx, session.SessionToken); err != nil {
		s.logger.Warn("failed to invalidate revoked token", zap.Error(err))
	}

	if applied {
		s.metrics.IncRevocation(reason)
		detail, _ := json.Marshal(map[string]interface{}{"reason": reason})
		s.record(ctx, session, models.EventSessionRevoked, detail, req.IP, req.UserAgent)
	}

	return nil
}

// RevokeAll marks every active session for the target user as revoked
// and returns the count. Only the owning user or an administrative
// caller may do this.
func (s *SessionService) RevokeAll(ctx context.Context, targetUserID, callerUserID string, asAdmin bool) (int64, error) {
	if targetUserID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "target user required")
	}
	if !asAdmin && callerUserID != targetUserID {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "cannot revoke another user's sessions")
	}

	// The store reports back exactly which tokens the bulk update
	// revoked, so cached positives are dropped for every one of them,
	// including sessions created while the revoke was in flight.
	tokens, err := s.store.RevokeAllForUser(ctx, targetUserID, s.now(), models.RevokeReasonAllRevoked)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to revoke sessions")
	}

	for _, tok := range tokens {
		if err := s.cache.InvalidateToken(ctx, tok); err != nil {
			s.logger.Warn("failed to invalidate revoked token", zap.Error(err))
		}
	}
	count := int64(len(tokens))

	if count > 0 {
		s.metrics.IncRevocation(models.RevokeReasonAllRevoked)
		detail, _ := json.Marshal(map[string]interface{}{"sessions_revoked": count, "as_admin": asAdmin})
		s.sink.Record(ctx, models.SessionEvent{
			UserID: &targetUserID,
			Action: models.EventAllSessionsRevoked,
			Detail: detail,
		})
	}

	return count, nil
}

// GetActiveSessions lists the caller's active sessions without exposing
// token values.
func (s *SessionService) GetActiveSessions(ctx context.Context, callerUserID string) ([]models.SessionInfo, error) {
	if callerUserID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "caller required")
	}

	sessions, err := s.store.ListActiveByUser(ctx, callerUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to list sessions")
	}

	infos := make([]models.SessionInfo, 0, len(sessions))
	for i := range sessions {
		infos = append(infos, sessions[i].Info())
	}
	return infos, nil
}

// revokeForPolicy applies the one mutating side effect the rotation
// policy can demand: a dead refresh token or an exhausted rotation
// budget permanently retires the session before the call fails.
func (s *SessionService) revokeForPolicy(ctx context.Context, session *models.Session, now time.Time, reason string, req models.RotateRequest) {
	applied, err := s.store.Revoke(ctx, session.ID, now, reason)
	if err != nil {
		s.logger.Error("failed to revoke session for policy", zap.String("session_id", session.ID), zap.String("reason", reason), zap.Error(err))
		return
	}
	if err := s.cache.InvalidateToken(ctx, session.SessionToken); err != nil {
		s.logger.Warn("failed to invalidate revoked token", zap.Error(err))
	}
	if !applied {
		return
	}

	s.metrics.IncRevocation(reason)
	action := models.EventRefreshExpired
	if reason == models.RevokeReasonMaxRotations {
		action = models.EventMaxRotations
	}
	detail, _ := json.Marshal(map[string]interface{}{"reason": reason, "rotation_count": session.RotationCount})
	s.record(ctx, session, action, detail, req.IP, req.UserAgent)
}

func (s *SessionService) record(ctx context.Context, session *models.Session, action string, detail []byte, ip, userAgent string) {
	sessionID := session.ID
	userID := session.UserID
	s.sink.Record(ctx, models.SessionEvent{
		SessionID: &sessionID,
		UserID:    &userID,
		Action:    action,
		Detail:    detail,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// String renders the effective lifecycle constants, useful at startup.
func (s *SessionService) String() string {
	return fmt.Sprintf("session lifecycle: duration=%s refresh=%s interval=%s max_rotations=%d",
		s.cfg.Duration, s.cfg.RefreshDuration, s.cfg.RotationInterval, s.cfg.MaxRotationCount)
}
