package compositor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/influxdb"
)

// fakeProvider implements content.ProtocolConsumer. Queued notifications
// are delivered on the next DispatchEvents.
type fakeProvider struct {
	queued []func(content.ProtocolEventHandler)
	states []string
}

func (p *fakeProvider) ContentStateChange(id content.ContentID, state content.OfferState, _ content.Timing) error {
	p.states = append(p.states, fmt.Sprintf("%d %s", id, state))
	return nil
}
func (p *fakeProvider) ContentSizeChange(content.ContentID, content.Size, content.Timing) error {
	return nil
}
func (p *fakeProvider) AcceptStopOffer(content.ContentID, content.Timing) error  { return nil }
func (p *fakeProvider) AssignToConsumer(content.ContentID, content.Size) error { return nil }

func (p *fakeProvider) DispatchEvents(h content.ProtocolEventHandler) error {
	queued := p.queued
	p.queued = nil
	for _, fn := range queued {
		fn(h)
	}
	return nil
}

func (p *fakeProvider) offer(id content.ContentID, category content.CategoryID, scene content.SceneID) {
	p.queued = append(p.queued,
		func(h content.ProtocolEventHandler) { h.ContentOffered(id, category) },
		func(h content.ProtocolEventHandler) { h.ContentDescription(id, content.ContentTypeScene, uint64(scene)) },
	)
}

func (p *fakeProvider) ready(id content.ContentID) {
	p.queued = append(p.queued, func(h content.ProtocolEventHandler) { h.ContentReady(id) })
}

// fakeRenderer implements content.SceneControl and acknowledges every
// requested scene state on the following dispatch.
type fakeRenderer struct {
	acks []func(content.SceneEventHandler)
}

func (r *fakeRenderer) SetSceneState(id content.SceneID, state content.SceneState) error {
	r.acks = append(r.acks, func(h content.SceneEventHandler) { h.SceneStateChanged(id, state) })
	return nil
}
func (r *fakeRenderer) SetSceneMapping(content.SceneID, content.DisplayID) error { return nil }
func (r *fakeRenderer) SetSceneDisplayBufferAssignment(content.SceneID, content.DisplayBufferID, int32) error {
	return nil
}
func (r *fakeRenderer) SetDisplayBufferClearColor(content.DisplayID, content.DisplayBufferID, content.Color) error {
	return nil
}
func (r *fakeRenderer) LinkOffscreenBuffer(content.DisplayBufferID, content.SceneID, content.DataConsumerID) error {
	return nil
}
func (r *fakeRenderer) LinkData(content.SceneID, content.DataProviderID, content.SceneID, content.DataConsumerID) error {
	return nil
}
func (r *fakeRenderer) Flush() error { return nil }

func (r *fakeRenderer) DispatchEvents(h content.SceneEventHandler) error {
	acks := r.acks
	r.acks = nil
	for _, fn := range acks {
		fn(h)
	}
	return nil
}

// recordingSink implements EventSink.
type recordingSink struct {
	mu     sync.Mutex
	events []string
	ticks  []TickStats
}

func (s *recordingSink) HandleEvent(tick uint64, evt content.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%d %s %d %s->%s %s", tick, evt.Type, evt.Content, evt.From, evt.To, evt.Result))
}

func (s *recordingSink) ObserveTick(stats TickStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, stats)
}

func (s *recordingSink) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// manualClock is a controllable millisecond clock.
type manualClock struct {
	mu  sync.Mutex
	now uint64
}

func (c *manualClock) read() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) set(now uint64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// mockPublisher implements Publisher.
type mockPublisher struct {
	topics   []string
	payloads []any
	err      error
}

func (p *mockPublisher) PublishJSON(topic string, v any) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, v)
	return p.err
}

// mockBroadcaster implements Broadcaster.
type mockBroadcaster struct {
	channels []string
}

func (b *mockBroadcaster) Broadcast(channel string, _ any) {
	b.channels = append(b.channels, channel)
}

// mockMetrics implements Metrics.
type mockMetrics struct {
	transitions []influxdb.ContentTransition
	ticks       []influxdb.TickStats
}

func (m *mockMetrics) WriteContentTransition(tr influxdb.ContentTransition) {
	m.transitions = append(m.transitions, tr)
}

func (m *mockMetrics) WriteTick(stats influxdb.TickStats) {
	m.ticks = append(m.ticks, stats)
}

// mockHistory implements HistoryRecorder.
type mockHistory struct {
	recorded []history.Transition
	err      error
}

func (h *mockHistory) RecordTransition(_ context.Context, tr *history.Transition) error {
	h.recorded = append(h.recorded, *tr)
	return h.err
}

// blockingHistory implements HistoryRecorder and holds every write until
// release is closed.
type blockingHistory struct {
	release  chan struct{}
	mu       sync.Mutex
	recorded int
}

func (h *blockingHistory) RecordTransition(_ context.Context, _ *history.Transition) error {
	<-h.release
	h.mu.Lock()
	h.recorded++
	h.mu.Unlock()
	return nil
}

func (h *blockingHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recorded
}

// countingLogger counts warnings.
type countingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *countingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

const (
	testCategory content.CategoryID = 1
	testScene    content.SceneID    = 20
)

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctrl     *content.Controller
	provider *fakeProvider
	renderer *fakeRenderer
	sink     *recordingSink
	clock    *manualClock
	runner   *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{},
		renderer: &fakeRenderer{},
		sink:     &recordingSink{},
		clock:    &manualClock{},
	}

	ctrl, err := content.NewController(content.Config{Categories: []content.CategoryConfig{
		{ID: testCategory, Size: content.Size{Width: 800, Height: 480}, Display: 3},
	}}, f.provider, f.renderer, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	f.ctrl = ctrl

	f.runner, err = NewRunner(ctrl, RunnerOptions{
		Interval: time.Millisecond,
		Sink:     f.sink,
		Clock:    f.clock.read,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return f
}

// tickAt advances the clock and runs one update.
func (f *fixture) tickAt(t *testing.T, now uint64) {
	t.Helper()
	f.clock.set(now)
	if err := f.runner.Tick(); err != nil {
		t.Fatalf("Tick() at %d error = %v", now, err)
	}
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
