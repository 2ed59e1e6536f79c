package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/pkg/config"
	"github.com/noah-isme/session-api/pkg/jobs"
)

// AuditSink receives structured session lifecycle events. Recording must
// never block or fail the session operation that produced the event;
// delivery problems are the sink's concern.
type AuditSink interface {
	Record(ctx context.Context, event models.SessionEvent)
}

// NopAuditSink discards all events.
type NopAuditSink struct{}

// Record implements AuditSink.
func (NopAuditSink) Record(context.Context, models.SessionEvent) {}

type auditWriter interface {
	InsertEvent(ctx context.Context, event *models.SessionEvent) error
}

// QueueAuditSink delivers events to durable storage through a background
// worker pool with retries. Events that exhaust their retries are
// dropped and counted; session correctness never depends on the trail.
type QueueAuditSink struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueAuditSink wires an audit sink on top of the in-process job
// queue.
func NewQueueAuditSink(writer auditWriter, logger *zap.Logger, cfg config.AuditConfig, metrics *MetricsService) *QueueAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.SessionEvent)
		if !ok {
			return nil
		}
		return writer.InsertEvent(ctx, &event)
	}

	queue := jobs.NewQueue("audit", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop: func(job jobs.Job, err error) {
			metrics.IncAuditDropped()
		},
	})

	return &QueueAuditSink{queue: queue, logger: logger}
}

// Start boots the delivery workers.
func (s *QueueAuditSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *QueueAuditSink) Stop() {
	s.queue.Stop()
}

// Record implements AuditSink. The enqueue never blocks: when the
// buffer is full the event is dropped and counted rather than stalling
// the session operation that produced it.
func (s *QueueAuditSink) Record(ctx context.Context, event models.SessionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: event.Action, Payload: event}); err != nil {
		s.logger.Warn("failed to enqueue audit event", zap.String("action", event.Action), zap.Error(err))
	}
}
