package compositor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

func TestNewRunner_InvalidInterval(t *testing.T) {
	f := newFixture(t)
	for _, interval := range []time.Duration{0, -time.Second} {
		if _, err := NewRunner(f.ctrl, RunnerOptions{Interval: interval}); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("NewRunner(%v) error = %v, want ErrInvalidInterval", interval, err)
		}
	}
}

func TestNewRunner_DefaultClockIsMonotonic(t *testing.T) {
	f := newFixture(t)
	r, err := NewRunner(f.ctrl, RunnerOptions{Interval: time.Second})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	first := r.clock()
	time.Sleep(2 * time.Millisecond)
	second := r.clock()
	if second < first || second == 0 {
		t.Errorf("clock went %d -> %d", first, second)
	}
}

// ─── Tick ──────────────────────────────────────────────────────────

func TestRunner_ContentLifecycle(t *testing.T) {
	f := newFixture(t)

	f.provider.offer(42, testCategory, testScene)
	f.tickAt(t, 10)
	assertEvents(t, f.sink.take(), []string{"10 state_changed 42 invalid->available ok"})

	if err := f.ctrl.RequestReady(42, 1000); err != nil {
		t.Fatalf("RequestReady() error = %v", err)
	}
	f.tickAt(t, 20)
	assertEvents(t, f.sink.take(), nil)

	f.provider.ready(42)
	f.tickAt(t, 30)
	assertEvents(t, f.sink.take(), []string{"30 state_changed 42 available->ready ok"})

	if err := f.ctrl.Show(42, content.Timing{Start: 40, Finish: 40}); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	f.tickAt(t, 40)
	f.tickAt(t, 50)
	assertEvents(t, f.sink.take(), []string{"50 state_changed 42 ready->shown ok"})

	if got := f.provider.states; len(got) != 2 || got[0] != "42 ready" || got[1] != "42 shown" {
		t.Errorf("provider states = %q", got)
	}
}

func TestRunner_TickStats(t *testing.T) {
	f := newFixture(t)

	f.provider.offer(42, testCategory, testScene)
	f.tickAt(t, 10)
	f.tickAt(t, 20)

	if len(f.sink.ticks) != 2 {
		t.Fatalf("observed %d ticks, want 2", len(f.sink.ticks))
	}
	first := f.sink.ticks[0]
	if first.Tick != 10 || first.Events != 1 || first.Contents != 1 || first.Err != nil {
		t.Errorf("first tick = %+v", first)
	}
	if f.sink.ticks[1].Events != 0 {
		t.Errorf("second tick events = %d, want 0", f.sink.ticks[1].Events)
	}
}

func TestRunner_ReadyTimeout(t *testing.T) {
	f := newFixture(t)

	f.provider.offer(43, testCategory, testScene)
	f.tickAt(t, 10)
	f.sink.take()

	if err := f.ctrl.RequestReady(43, 100); err != nil {
		t.Fatalf("RequestReady() error = %v", err)
	}
	f.tickAt(t, 110)
	assertEvents(t, f.sink.take(), nil)

	f.tickAt(t, 111)
	assertEvents(t, f.sink.take(), []string{"111 state_changed 43 ready->available timed_out"})
}

func TestRunner_TimestampRegression(t *testing.T) {
	f := newFixture(t)
	f.tickAt(t, 50)

	f.clock.set(40)
	err := f.runner.Tick()
	if !errors.Is(err, content.ErrTimestampRegressed) {
		t.Fatalf("Tick() error = %v, want ErrTimestampRegressed", err)
	}

	last := f.sink.ticks[len(f.sink.ticks)-1]
	if !errors.Is(last.Err, content.ErrTimestampRegressed) {
		t.Errorf("observed tick error = %v", last.Err)
	}
}

// ─── Run / Do ──────────────────────────────────────────────────────

func TestRunner_RunAndDo(t *testing.T) {
	f := newFixture(t)
	f.provider.offer(42, testCategory, testScene)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()

	// Wait for a tick to register the offered content.
	deadline := time.After(5 * time.Second)
	for {
		var n int
		err := f.runner.Do(context.Background(), func(c *content.Controller) error {
			n = len(c.Contents())
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("content never registered")
		case <-time.After(time.Millisecond):
		}
	}

	wantErr := errors.New("rejected")
	if err := f.runner.Do(context.Background(), func(*content.Controller) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop")
	}

	if err := f.runner.Do(context.Background(), func(*content.Controller) error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Do() after stop error = %v, want ErrNotRunning", err)
	}
}

func TestRunner_DoCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := f.runner.Do(ctx, func(*content.Controller) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran without a runner")
	}
}
