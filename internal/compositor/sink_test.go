package compositor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

func newTestSink() (*Sink, *mockPublisher, *mockBroadcaster, *mockMetrics, *mockHistory, *countingLogger) {
	pub := &mockPublisher{}
	hub := &mockBroadcaster{}
	metrics := &mockMetrics{}
	hist := &mockHistory{}
	logger := &countingLogger{}
	sink := NewSink(SinkOptions{
		Publisher:   pub,
		Broadcaster: hub,
		Metrics:     metrics,
		History:     hist,
		Logger:      logger,
		Now:         func() time.Time { return testTime },
	})
	return sink, pub, hub, metrics, hist, logger
}

// ─── HandleEvent ───────────────────────────────────────────────────

func TestSink_StateChange(t *testing.T) {
	sink, pub, hub, metrics, hist, logger := newTestSink()

	sink.HandleEvent(120, content.Event{
		Type:     content.EventContentStateChanged,
		Content:  42,
		Category: testCategory,
		From:     content.ContentReady,
		To:       content.ContentShown,
	})
	sink.Close()

	if len(pub.topics) != 1 || pub.topics[0] != "graylogic/compositor/event/state_changed" {
		t.Errorf("published topics = %q", pub.topics)
	}
	if len(hub.channels) != 1 || hub.channels[0] != "content.state_changed" {
		t.Errorf("broadcast channels = %q", hub.channels)
	}

	if len(metrics.transitions) != 1 {
		t.Fatalf("metrics transitions = %d, want 1", len(metrics.transitions))
	}
	tr := metrics.transitions[0]
	if tr.ContentID != 42 || tr.Category != 1 || tr.From != "ready" || tr.To != "shown" || tr.Result != "ok" || tr.Tick != 120 {
		t.Errorf("metrics transition = %+v", tr)
	}
	if !tr.At.Equal(testTime) {
		t.Errorf("metrics transition time = %v, want %v", tr.At, testTime)
	}

	if len(hist.recorded) != 1 {
		t.Fatalf("history records = %d, want 1", len(hist.recorded))
	}
	rec := hist.recorded[0]
	if rec.ContentID != 42 || rec.From != "ready" || rec.To != "shown" || rec.Tick != 120 {
		t.Errorf("history record = %+v", rec)
	}

	if len(logger.warns) != 0 {
		t.Errorf("unexpected warnings: %q", logger.warns)
	}
}

func TestSink_TimeoutIsWarned(t *testing.T) {
	sink, _, _, metrics, _, logger := newTestSink()

	sink.HandleEvent(111, content.Event{
		Type:    content.EventContentStateChanged,
		Content: 43,
		From:    content.ContentReady,
		To:      content.ContentAvailable,
		Result:  content.ResultTimedOut,
	})
	sink.Close()

	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "timed out") {
		t.Errorf("warnings = %q, want one timeout warning", logger.warns)
	}
	if len(metrics.transitions) != 1 || metrics.transitions[0].Result != "timed_out" {
		t.Errorf("metrics transitions = %+v", metrics.transitions)
	}
}

func TestSink_OtherEventsSkipStorage(t *testing.T) {
	sink, pub, hub, metrics, hist, _ := newTestSink()

	sink.HandleEvent(5, content.Event{Type: content.EventContentFocusRequested, Content: 42})
	sink.HandleEvent(6, content.Event{Type: content.EventContentFlushed, Content: 42, Version: 7})
	sink.Close()

	wantTopics := []string{
		"graylogic/compositor/event/focus_requested",
		"graylogic/compositor/event/flushed",
	}
	if len(pub.topics) != len(wantTopics) {
		t.Fatalf("published topics = %q, want %q", pub.topics, wantTopics)
	}
	for i, want := range wantTopics {
		if pub.topics[i] != want {
			t.Errorf("topic[%d] = %q, want %q", i, pub.topics[i], want)
		}
	}
	if len(hub.channels) != 2 || hub.channels[1] != "content.flushed" {
		t.Errorf("broadcast channels = %q", hub.channels)
	}
	if len(metrics.transitions) != 0 || len(hist.recorded) != 0 {
		t.Errorf("non state events stored: metrics=%d history=%d", len(metrics.transitions), len(hist.recorded))
	}
}

func TestSink_OutputFailuresAreLogged(t *testing.T) {
	sink, pub, hub, _, hist, logger := newTestSink()
	pub.err = errors.New("broker gone")
	hist.err = errors.New("disk full")

	sink.HandleEvent(1, content.Event{
		Type:    content.EventContentStateChanged,
		Content: 42,
		From:    content.ContentInvalid,
		To:      content.ContentAvailable,
	})
	sink.Close()

	if len(logger.warns) != 2 {
		t.Errorf("warnings = %q, want publish and history failures", logger.warns)
	}
	if len(hub.channels) != 1 {
		t.Error("broadcast should still happen after a publish failure")
	}
}

func TestSink_NilOutputs(t *testing.T) {
	sink := NewSink(SinkOptions{})

	// Must not panic.
	sink.HandleEvent(1, content.Event{Type: content.EventContentStateChanged, Content: 1, To: content.ContentAvailable})
	sink.ObserveTick(TickStats{Tick: 1, Events: 1})
	sink.Close()
}

// ─── History writer ────────────────────────────────────────────────

func TestSink_HistoryDoesNotBlockEvents(t *testing.T) {
	hist := &blockingHistory{release: make(chan struct{})}
	logger := &countingLogger{}
	sink := NewSink(SinkOptions{History: hist, Logger: logger, HistoryQueue: 1})

	// The writer holds at most one transition and the queue one more,
	// so at least one of three is dropped while the store is stuck.
	for tick := uint64(1); tick <= 3; tick++ {
		sink.HandleEvent(tick, content.Event{
			Type:    content.EventContentStateChanged,
			Content: 42,
			From:    content.ContentAvailable,
			To:      content.ContentReady,
		})
	}

	close(hist.release)
	sink.Close()

	dropped := 0
	for _, w := range logger.warns {
		if strings.Contains(w, "queue full") {
			dropped++
		}
	}
	if dropped == 0 {
		t.Error("expected at least one dropped transition")
	}
	if got := hist.count(); got+dropped != 3 {
		t.Errorf("recorded %d + dropped %d, want 3", got, dropped)
	}
}

func TestSink_CloseDrainsQueue(t *testing.T) {
	sink, _, _, _, hist, _ := newTestSink()

	for tick := uint64(1); tick <= 10; tick++ {
		sink.HandleEvent(tick, content.Event{
			Type:    content.EventContentStateChanged,
			Content: content.ContentID(tick),
			From:    content.ContentInvalid,
			To:      content.ContentAvailable,
		})
	}
	sink.Close()
	sink.Close()

	if len(hist.recorded) != 10 {
		t.Fatalf("history records = %d, want 10", len(hist.recorded))
	}
	for i, rec := range hist.recorded {
		if rec.Tick != uint64(i+1) {
			t.Errorf("record[%d] tick = %d, want %d", i, rec.Tick, i+1)
		}
	}
}

// ─── ObserveTick ───────────────────────────────────────────────────

func TestSink_ObserveTick(t *testing.T) {
	sink, _, _, metrics, _, logger := newTestSink()
	defer sink.Close()

	sink.ObserveTick(TickStats{Tick: 10, Contents: 3})
	if len(metrics.ticks) != 0 {
		t.Fatalf("idle tick written: %+v", metrics.ticks)
	}

	sink.ObserveTick(TickStats{Tick: 20, Events: 2, Contents: 3, Duration: 150 * time.Microsecond})
	sink.ObserveTick(TickStats{Tick: 30, Pending: 1})
	sink.ObserveTick(TickStats{Tick: 40, Err: errors.New("renderer gone")})

	if len(metrics.ticks) != 3 {
		t.Fatalf("ticks written = %d, want 3", len(metrics.ticks))
	}
	if got := metrics.ticks[0]; got.Tick != 20 || got.Events != 2 || got.Contents != 3 || got.Duration != 150*time.Microsecond {
		t.Errorf("tick = %+v", got)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %q, want one tick error", logger.warns)
	}
}

// ─── EventMessage ──────────────────────────────────────────────────

func TestNewEventMessage(t *testing.T) {
	t.Run("state change into available carries category", func(t *testing.T) {
		msg := NewEventMessage(10, content.Event{
			Type:     content.EventContentStateChanged,
			Content:  42,
			Category: testCategory,
			From:     content.ContentInvalid,
			To:       content.ContentAvailable,
		}, testTime)

		if msg.Type != "state_changed" || msg.Tick != 10 || !msg.Timestamp.Equal(testTime) {
			t.Errorf("header = %+v", msg)
		}
		if msg.ContentID == nil || *msg.ContentID != 42 {
			t.Errorf("ContentID = %v", msg.ContentID)
		}
		if msg.Category == nil || *msg.Category != testCategory {
			t.Errorf("Category = %v", msg.Category)
		}
		if msg.From != "invalid" || msg.To != "available" || msg.Result != "ok" {
			t.Errorf("transition = %s -> %s (%s)", msg.From, msg.To, msg.Result)
		}
	})

	t.Run("state change elsewhere omits category", func(t *testing.T) {
		msg := NewEventMessage(10, content.Event{
			Type:     content.EventContentStateChanged,
			Content:  42,
			Category: testCategory,
			From:     content.ContentReady,
			To:       content.ContentShown,
		}, testTime)
		if msg.Category != nil {
			t.Errorf("Category = %d, want nil", *msg.Category)
		}
	})

	t.Run("failed data link", func(t *testing.T) {
		msg := NewEventMessage(10, content.Event{
			Type:            content.EventDataLinked,
			Result:          content.ResultTimedOut,
			ProviderContent: 1,
			ProviderID:      2,
			ConsumerContent: 3,
			ConsumerID:      4,
		}, testTime)
		if msg.Success == nil || *msg.Success {
			t.Errorf("Success = %v, want false", msg.Success)
		}
		if msg.ContentID != nil {
			t.Error("ContentID should be omitted for link events")
		}
	})

	t.Run("stream availability json", func(t *testing.T) {
		msg := NewEventMessage(10, content.Event{
			Type:            content.EventStreamAvailabilityChanged,
			Stream:          9,
			StreamAvailable: false,
		}, testTime)

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if decoded["stream"] != float64(9) || decoded["stream_available"] != false {
			t.Errorf("decoded = %v", decoded)
		}
		if _, ok := decoded["content_id"]; ok {
			t.Error("content_id should be omitted")
		}
	})
}
