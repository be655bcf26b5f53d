package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// queueSize bounds the recorder's internal buffer. A slow sink never
// stalls arbitration; overflow drops the event and counts it.
const queueSize = 64

// Publisher mirrors persisted events to an external channel
// (the warden/audit MQTT topic in production).
type Publisher interface {
	PublishAudit(event Event) error
}

// Recorder is the fire-and-forget front of the audit sink.
//
// Record never blocks: events go into a bounded channel consumed by a
// single goroutine that persists to the repository and mirrors to the
// publisher. When the queue is full the event is dropped and the drop
// counter incremented.
type Recorder struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger

	queue   chan Event
	dropped atomic.Uint64
	done    chan struct{}
}

// NewRecorder creates a recorder. The publisher may be nil, in which
// case events are only persisted.
func NewRecorder(repo Repository, publisher Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the consumer goroutine. It runs until ctx is
// cancelled, then drains whatever is already queued.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for {
			select {
			case event := <-r.queue:
				r.sink(ctx, event)
			case <-ctx.Done():
				r.drain()
				return
			}
		}
	}()
}

// Record queues an event for persistence. Never blocks; drops on
// overflow.
func (r *Recorder) Record(event Event) {
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, event dropped",
			"kind", event.Kind,
			"dropped_total", r.dropped.Load(),
		)
	}
}

// Dropped returns how many events have been discarded due to overflow.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Wait blocks until the consumer goroutine has finished draining.
// Call after cancelling the Start context during shutdown.
func (r *Recorder) Wait() {
	<-r.done
}

// sink persists one event and mirrors it to the publisher. Failures
// are logged and swallowed; the audit trail is best-effort.
func (r *Recorder) sink(ctx context.Context, event Event) {
	if err := r.repo.Create(ctx, &event); err != nil {
		r.logger.Error("persisting audit event failed",
			"kind", event.Kind,
			"error", err,
		)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishAudit(event); err != nil {
			r.logger.Warn("publishing audit event failed",
				"kind", event.Kind,
				"error", err,
			)
		}
	}
}

// drain flushes queued events with a background context after the run
// context is cancelled.
func (r *Recorder) drain() {
	for {
		select {
		case event := <-r.queue:
			r.sink(context.Background(), event)
		default:
			return
		}
	}
}
