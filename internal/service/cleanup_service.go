package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/pkg/config"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
)

// cleanupStore is the slice of the session store the sweeper needs.
type cleanupStore interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
	DeleteRevoked(ctx context.Context, revokeBefore, now time.Time, limit int) (int64, error)
}

// CleanupService deletes session records that are provably terminal:
// both token windows have lapsed, or the session was revoked long
// enough ago that the audit retention no longer needs the row. It is the
// only component that deletes, it works in bounded batches, and re-runs
// with overlapping windows are harmless.
type CleanupService struct {
	store   cleanupStore
	sink    AuditSink
	logger  *zap.Logger
	metrics *MetricsService
	cfg     config.CleanupConfig
}

// NewCleanupService constructs the sweeper.
func NewCleanupService(store cleanupStore, sink AuditSink, logger *zap.Logger, metrics *MetricsService, cfg config.CleanupConfig) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NopAuditSink{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.RevokedRetention <= 0 {
		cfg.RevokedRetention = 30 * 24 * time.Hour
	}
	return &CleanupService{store: store, sink: sink, logger: logger, metrics: metrics, cfg: cfg}
}

// Cleanup removes terminal records in batches and reports how many rows
// each criterion deleted. Each batch re-queries from the live table, so
// an interrupted sweep resumes cleanly on the next invocation.
func (s *CleanupService) Cleanup(ctx context.Context, now, revokeBefore time.Time) (models.CleanupResult, error) {
	var result models.CleanupResult

	for {
		n, err := s.store.DeleteExpired(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to delete expired sessions")
		}
		result.ExpiredDeleted += n
		if n < int64(s.cfg.BatchSize) {
			break
		}
	}

	for {
		n, err := s.store.DeleteRevoked(ctx, revokeBefore, now, s.cfg.BatchSize)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrStoreTransient.Code, appErrors.ErrStoreTransient.Status, "failed to delete revoked sessions")
		}
		result.RevokedDeleted += n
		if n < int64(s.cfg.BatchSize) {
			break
		}
	}

	result.TotalDeleted = result.ExpiredDeleted + result.RevokedDeleted

	s.metrics.AddSweepDeleted("expired", result.ExpiredDeleted)
	s.metrics.AddSweepDeleted("revoked", result.RevokedDeleted)

	if result.TotalDeleted > 0 {
		detail, _ := json.Marshal(result)
		s.sink.Record(ctx, models.SessionEvent{Action: models.EventSessionsSwept, Detail: detail})
		s.logger.Sugar().Infow("session sweep finished",
			"expired_deleted", result.ExpiredDeleted,
			"revoked_deleted", result.RevokedDeleted,
			"total_deleted", result.TotalDeleted,
		)
	}

	return result, nil
}

// Start boots a goroutine that sweeps periodically until the context is
// cancelled.
func (s *CleanupService) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if _, err := s.Cleanup(ctx, now, now.Add(-s.cfg.RevokedRetention)); err != nil {
					s.logger.Sugar().Warnw("session sweep failed", "error", err)
				}
			}
		}
	}()
}
