package simulation

import (
	"context"
	"sync"
	"time"
)

// StepFunc advances one match. Returning false ends the loop.
type StepFunc func(now time.Time) bool

// Loop drives a StepFunc at a fixed rate from its own goroutine.
type Loop struct {
	interval time.Duration
	step     StepFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop configures a loop that targets the provided frequency.
func NewLoop(targetHz float64, step StepFunc) *Loop {
	if targetHz <= 0 {
		targetHz = 60
	}
	if step == nil {
		step = func(time.Time) bool { return true }
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{interval: interval, step: step}
}

// Start begins ticking until ctx is cancelled, Stop is called or the step
// function returns false. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			//1.- Stop as soon as the step reports the match is over.
			if !l.step(now) {
				return
			}
		}
	}
}

// Stop cancels the loop without waiting for it. It is safe to call from inside
// the step function and more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

// Wait blocks until the loop goroutine has exited. It returns immediately for a
// loop that was never started.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Interval exposes the configured tick period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}
