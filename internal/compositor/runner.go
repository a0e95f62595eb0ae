package compositor

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// Logger is the logging interface used by the compositor.
// It is satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventSink receives the events of each update. tick is the controller
// time the update ran at.
type EventSink interface {
	HandleEvent(tick uint64, evt content.Event)
	ObserveTick(stats TickStats)
}

// TickStats summarises one Controller.Update.
type TickStats struct {
	Tick     uint64
	Duration time.Duration
	Events   int
	Contents int
	Pending  int
	Err      error
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Interval between updates. Required.
	Interval time.Duration

	// Sink receives events and tick statistics. Optional.
	Sink EventSink

	// Logger is optional.
	Logger Logger

	// Clock returns the controller time in milliseconds. It must never go
	// backwards. Defaults to milliseconds elapsed since NewRunner, read from
	// the monotonic clock.
	Clock func() uint64
}

type request struct {
	fn   func(*content.Controller) error
	done chan error
}

// Runner confines a Controller to a single goroutine.
type Runner struct {
	ctrl     *content.Controller
	sink     EventSink
	logger   Logger
	interval time.Duration
	clock    func() uint64

	requests chan request
	stopped  chan struct{}
}

// NewRunner creates a runner for ctrl. Call Run to start ticking.
func NewRunner(ctrl *content.Controller, opts RunnerOptions) (*Runner, error) {
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Clock == nil {
		start := time.Now()
		opts.Clock = func() uint64 {
			return uint64(time.Since(start).Milliseconds()) //nolint:gosec // Elapsed time is never negative
		}
	}

	return &Runner{
		ctrl:     ctrl,
		sink:     opts.Sink,
		logger:   opts.Logger,
		interval: opts.Interval,
		clock:    opts.Clock,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}, nil
}

// Run ticks the controller until ctx is cancelled, serving Do requests
// between ticks. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("compositor runner started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("compositor runner stopped", "tick", r.ctrl.Now())
			return nil
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				r.logger.Error("controller update failed", "error", err)
			}
		case req := <-r.requests:
			req.done <- req.fn(r.ctrl)
		}
	}
}

// Tick runs one controller update at the current clock time.
//
// Only call Tick from the goroutine that owns the controller: the one
// running Run, or a test driving the runner by hand.
func (r *Runner) Tick() error {
	now := r.clock()
	started := time.Now()

	events := 0
	handler := content.EventFunc(func(evt content.Event) {
		events++
		if r.sink != nil {
			r.sink.HandleEvent(now, evt)
		}
	})

	err := r.ctrl.Update(now, handler)
	if err != nil {
		err = fmt.Errorf("update at %d: %w", now, err)
	}

	if r.sink != nil {
		contents, pending := r.ctrl.Counts()
		r.sink.ObserveTick(TickStats{
			Tick:     now,
			Duration: time.Since(started),
			Events:   events,
			Contents: contents,
			Pending:  pending,
			Err:      err,
		})
	}
	return err
}

// Do runs fn on the runner's goroutine and returns its error. It blocks
// until fn has run, ctx is done, or the runner has stopped.
//
// fn must not call Do.
func (r *Runner) Do(ctx context.Context, fn func(*content.Controller) error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case r.requests <- req:
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the request always completes.
	return <-req.done
}
