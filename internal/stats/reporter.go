package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reporter hands outcomes to a background worker so that persistence never
// runs on a game goroutine.
type Reporter struct {
	store     Store
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger

	queue chan Outcome
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithPublisher also forwards every outcome to p.
func WithPublisher(p Publisher) ReporterOption {
	return func(r *Reporter) { r.publisher = p }
}

// WithTimeout bounds the work done for a single outcome.
func WithTimeout(d time.Duration) ReporterOption {
	return func(r *Reporter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBuffer sets how many outcomes may wait for the worker.
func WithBuffer(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.queue = make(chan Outcome, n)
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReporter starts the worker. store may be nil when only publishing.
func NewReporter(store Store, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		store:   store,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		queue:   make(chan Outcome, 64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "stats")
	go r.run()
	return r
}

// Report queues o without blocking. When the buffer is full the outcome is dropped.
func (r *Reporter) Report(o Outcome) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("reporter closed, outcome dropped", "match", o.MatchID)
		return
	}
	select {
	case r.queue <- o:
	default:
		r.logger.Warn("stats buffer full, outcome dropped", "match", o.MatchID)
	}
}

// Close stops accepting outcomes and waits until the queued ones are handled
// or ctx expires.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) run() {
	defer close(r.done)
	for o := range r.queue {
		r.handle(o)
	}
}

func (r *Reporter) handle(o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.store != nil {
		if err := Apply(ctx, r.store, o); err != nil {
			r.logger.Error("failed to record outcome", "match", o.MatchID, "error", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, o); err != nil {
			r.logger.Error("failed to publish outcome", "match", o.MatchID, "error", err)
		}
	}
	r.logger.Debug("outcome handled", "match", o.MatchID, "winner", o.Winner)
}
