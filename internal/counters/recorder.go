package counters

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/resilience"
)

const publishTimeout = 5 * time.Second

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Recorder is an Incrementer that queues increments and publishes them as
// Events in the background, leaving the counter daemon to apply them.
//
// The publish loop runs until Close, not until the Start context ends, so
// increments accepted while the HTTP server drains are still published.
// Once Close has been called Increment fails with ErrUnavailable.
type Recorder struct {
	publisher Publisher
	retry     resilience.RetryConfig
	eventCh   chan Event
	logger    *slog.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	done    chan struct{}
}

func NewRecorder(publisher Publisher, retry resilience.RetryConfig, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Recorder{
		publisher: publisher,
		retry:     retry,
		eventCh:   make(chan Event, bufferSize),
		logger:    slog.Default().With("component", "counter-recorder"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. ctx supplies request-scoped values to the
// publisher; its cancellation does not stop the loop.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	base := context.WithoutCancel(ctx)
	go func() {
		defer close(r.done)
		for event := range r.eventCh {
			r.publish(base, event)
		}
	}()
	r.logger.Info("counter recorder started", "buffer_size", cap(r.eventCh))
}

// Increment queues an event. It fails with ErrUnavailable when the buffer is
// full or the recorder is closed.
func (r *Recorder) Increment(ctx context.Context, name string, delta int64, at time.Time) error {
	return r.IncrementAll(ctx, []string{name}, delta, at)
}

// IncrementAll queues one event per name, or none if they do not all fit.
func (r *Recorder) IncrementAll(ctx context.Context, names []string, delta int64, at time.Time) error {
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "counter recorder closed")
	}
	if cap(r.eventCh)-len(r.eventCh) < len(names) {
		r.logger.Warn("counter events rejected (buffer full)", "counters", len(names))
		return apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "counter buffer full")
	}
	for _, name := range names {
		r.eventCh <- Event{Name: name, Delta: delta, Timestamp: at.UTC()}
	}
	return nil
}

// Close stops accepting events and blocks until every queued event has been
// published or given up on. Without a prior Start it only closes the queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.eventCh)
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
		r.logger.Info("counter recorder drained")
	}
}

func (r *Recorder) publish(base context.Context, event Event) {
	ctx, cancel := context.WithTimeout(base, publishTimeout)
	defer cancel()
	err := resilience.Retry(ctx, "publish-counter-event", r.retry, func() error {
		return r.publisher.Publish(ctx, kafka.Event{Key: event.Name, Value: event})
	})
	if err != nil {
		r.logger.Error("failed to publish counter event", "counter", event.Name, "error", err)
	}
}
