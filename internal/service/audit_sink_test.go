package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-api/internal/models"
	"github.com/noah-isme/session-api/pkg/config"
)

type fakeAuditWriter struct {
	mu       sync.Mutex
	events   []models.SessionEvent
	failures int
}

func (w *fakeAuditWriter) InsertEvent(ctx context.Context, event *models.SessionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("insert failed")
	}
	w.events = append(w.events, *event)
	return nil
}

func (w *fakeAuditWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQueueAuditSinkDelivers(t *testing.T) {
	writer := &fakeAuditWriter{}
	sink := NewQueueAuditSink(writer, nil, config.AuditConfig{Workers: 2, BufferSize: 16, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	sink.Start(context.Background())
	defer sink.Stop()

	for i := 0; i < 5; i++ {
		sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionCreated})
	}

	waitFor(t, func() bool { return writer.count() == 5 })
	writer.mu.Lock()
	defer writer.mu.Unlock()
	for _, e := range writer.events {
		assert.NotEmpty(t, e.ID, "sink assigns identifiers")
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestQueueAuditSinkRetriesTransientFailure(t *testing.T) {
	writer := &fakeAuditWriter{failures: 2}
	sink := NewQueueAuditSink(writer, nil, config.AuditConfig{Workers: 1, BufferSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	sink.Start(context.Background())
	defer sink.Stop()

	sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionRevoked})

	waitFor(t, func() bool { return writer.count() == 1 })
	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Equal(t, models.EventSessionRevoked, writer.events[0].Action)
}

// stuckWriter parks inside InsertEvent until released, simulating a
// slow or wedged audit store.
type stuckWriter struct {
	entered chan struct{}
	release chan struct{}

	mu        sync.Mutex
	delivered int
}

func (w *stuckWriter) InsertEvent(ctx context.Context, event *models.SessionEvent) error {
	w.entered <- struct{}{}
	<-w.release
	w.mu.Lock()
	w.delivered++
	w.mu.Unlock()
	return nil
}

func TestQueueAuditSinkFullBufferDropsInsteadOfBlocking(t *testing.T) {
	writer := &stuckWriter{entered: make(chan struct{}, 8), release: make(chan struct{})}
	sink := NewQueueAuditSink(writer, nil, config.AuditConfig{Workers: 1, BufferSize: 1, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
	sink.Start(context.Background())

	// First event occupies the worker, second fills the buffer.
	sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionCreated})
	<-writer.entered
	sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionCreated})

	// With the worker stuck and the buffer full, recording must return
	// immediately rather than stall the session operation.
	done := make(chan struct{})
	go func() {
		sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionRevoked})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("record blocked on a full audit buffer")
	}

	close(writer.release)
	<-writer.entered
	sink.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Equal(t, 2, writer.delivered, "the overflow event is dropped, the buffered ones deliver")
}

func TestQueueAuditSinkRecordBeforeStartDoesNotBlock(t *testing.T) {
	writer := &fakeAuditWriter{}
	sink := NewQueueAuditSink(writer, nil, config.AuditConfig{}, nil)

	done := make(chan struct{})
	go func() {
		sink.Record(context.Background(), models.SessionEvent{Action: models.EventSessionCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("record blocked on an unstarted sink")
	}
	assert.Equal(t, 0, writer.count())
}
