package content

import (
	"fmt"
	"testing"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type offerCall struct {
	ID     ContentID
	State  OfferState
	Timing Timing
}

// mockConsumer records protocol calls and replays queued provider
// notifications on DispatchEvents.
type mockConsumer struct {
	stateChanges []offerCall
	sizeChanges  map[ContentID]Size
	stopOffers   []ContentID
	assigned     map[ContentID]Size

	failStateChange error
	failSize        map[ContentID]error
	failStopOffer   error
	failDispatch    error

	queued []func(ProtocolEventHandler)
}

func newMockConsumer() *mockConsumer {
	return &mockConsumer{
		sizeChanges: make(map[ContentID]Size),
		assigned:    make(map[ContentID]Size),
		failSize:    make(map[ContentID]error),
	}
}

func (m *mockConsumer) ContentStateChange(id ContentID, state OfferState, timing Timing) error {
	if m.failStateChange != nil {
		return m.failStateChange
	}
	m.stateChanges = append(m.stateChanges, offerCall{ID: id, State: state, Timing: timing})
	return nil
}

func (m *mockConsumer) ContentSizeChange(id ContentID, size Size, _ Timing) error {
	if err := m.failSize[id]; err != nil {
		return err
	}
	m.sizeChanges[id] = size
	return nil
}

func (m *mockConsumer) AcceptStopOffer(id ContentID, _ Timing) error {
	if m.failStopOffer != nil {
		return m.failStopOffer
	}
	m.stopOffers = append(m.stopOffers, id)
	return nil
}

func (m *mockConsumer) AssignToConsumer(id ContentID, size Size) error {
	m.assigned[id] = size
	return nil
}

func (m *mockConsumer) DispatchEvents(h ProtocolEventHandler) error {
	if m.failDispatch != nil {
		return m.failDispatch
	}
	queued := m.queued
	m.queued = nil
	for _, fn := range queued {
		fn(h)
	}
	return nil
}

func (m *mockConsumer) offer(id ContentID, category CategoryID) {
	m.queued = append(m.queued, func(h ProtocolEventHandler) { h.ContentOffered(id, category) })
}

func (m *mockConsumer) describe(id ContentID, scene SceneID) {
	m.queued = append(m.queued, func(h ProtocolEventHandler) {
		h.ContentDescription(id, ContentTypeScene, uint64(scene))
	})
}

func (m *mockConsumer) ready(id ContentID) {
	m.queued = append(m.queued, func(h ProtocolEventHandler) { h.ContentReady(id) })
}

func (m *mockConsumer) push(fn func(ProtocolEventHandler)) {
	m.queued = append(m.queued, fn)
}

type sceneStateCall struct {
	Scene SceneID
	State SceneState
}

type linkCall struct {
	Kind string
	Args string
}

// mockSceneControl records renderer commands and replays queued renderer
// notifications on DispatchEvents.
type mockSceneControl struct {
	states      []sceneStateCall
	mappings    map[SceneID]DisplayID
	assignments map[SceneID]DisplayBufferID
	clearColors map[DisplayBufferID]Color
	links       []linkCall
	flushes     int

	failFlush error

	queued []func(SceneEventHandler)
}

func newMockSceneControl() *mockSceneControl {
	return &mockSceneControl{
		mappings:    make(map[SceneID]DisplayID),
		assignments: make(map[SceneID]DisplayBufferID),
		clearColors: make(map[DisplayBufferID]Color),
	}
}

func (m *mockSceneControl) SetSceneState(id SceneID, state SceneState) error {
	m.states = append(m.states, sceneStateCall{Scene: id, State: state})
	return nil
}

func (m *mockSceneControl) SetSceneMapping(id SceneID, display DisplayID) error {
	m.mappings[id] = display
	return nil
}

func (m *mockSceneControl) SetSceneDisplayBufferAssignment(id SceneID, buffer DisplayBufferID, _ int32) error {
	m.assignments[id] = buffer
	return nil
}

func (m *mockSceneControl) SetDisplayBufferClearColor(_ DisplayID, buffer DisplayBufferID, color Color) error {
	m.clearColors[buffer] = color
	return nil
}

func (m *mockSceneControl) LinkOffscreenBuffer(buffer DisplayBufferID, consumerScene SceneID, consumerID DataConsumerID) error {
	m.links = append(m.links, linkCall{Kind: "offscreen", Args: fmt.Sprintf("%d->%d:%d", buffer, consumerScene, consumerID)})
	return nil
}

func (m *mockSceneControl) LinkData(providerScene SceneID, providerID DataProviderID, consumerScene SceneID, consumerID DataConsumerID) error {
	m.links = append(m.links, linkCall{Kind: "data", Args: fmt.Sprintf("%d:%d->%d:%d", providerScene, providerID, consumerScene, consumerID)})
	return nil
}

func (m *mockSceneControl) Flush() error {
	if m.failFlush != nil {
		return m.failFlush
	}
	m.flushes++
	return nil
}

func (m *mockSceneControl) DispatchEvents(h SceneEventHandler) error {
	queued := m.queued
	m.queued = nil
	for _, fn := range queued {
		fn(h)
	}
	return nil
}

func (m *mockSceneControl) report(id SceneID, state SceneState) {
	m.queued = append(m.queued, func(h SceneEventHandler) { h.SceneStateChanged(id, state) })
}

func (m *mockSceneControl) push(fn func(SceneEventHandler)) {
	m.queued = append(m.queued, fn)
}

func (m *mockSceneControl) lastState(id SceneID) (SceneState, bool) {
	for i := len(m.states) - 1; i >= 0; i-- {
		if m.states[i].Scene == id {
			return m.states[i].State, true
		}
	}
	return SceneUnavailable, false
}

// recordingHandler records the per-kind callbacks as short strings.
type recordingHandler struct {
	calls []string
}

func (r *recordingHandler) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingHandler) ContentAvailable(id ContentID, category CategoryID) {
	r.record("available %d category %d", id, category)
}

func (r *recordingHandler) ContentReady(id ContentID, result EventResult) {
	r.record("ready %d %s", id, result)
}

func (r *recordingHandler) ContentShown(id ContentID) {
	r.record("shown %d", id)
}

func (r *recordingHandler) ContentFocusRequested(id ContentID) {
	r.record("focus %d", id)
}

func (r *recordingHandler) ContentStopOfferRequested(id ContentID) {
	r.record("stop offer %d", id)
}

func (r *recordingHandler) ContentNotAvailable(id ContentID) {
	r.record("not available %d", id)
}

func (r *recordingHandler) ContentMetadataUpdated(id ContentID, _ Metadata) {
	r.record("metadata %d", id)
}

func (r *recordingHandler) OffscreenBufferLinked(buffer DisplayBufferID, consumer ContentID, consumerID DataConsumerID, success bool) {
	r.record("offscreen linked %d->%d:%d %t", buffer, consumer, consumerID, success)
}

func (r *recordingHandler) DataLinked(provider ContentID, providerID DataProviderID, consumer ContentID, consumerID DataConsumerID, success bool) {
	r.record("data linked %d:%d->%d:%d %t", provider, providerID, consumer, consumerID, success)
}

func (r *recordingHandler) ContentFlushed(id ContentID, version SceneVersionTag) {
	r.record("flushed %d v%d", id, version)
}

func (r *recordingHandler) ContentExpired(id ContentID) {
	r.record("expired %d", id)
}

func (r *recordingHandler) ContentRecoveredFromExpiration(id ContentID) {
	r.record("recovered %d", id)
}

func (r *recordingHandler) StreamAvailabilityChanged(stream StreamSource, available bool) {
	r.record("stream %d %t", stream, available)
}

// take returns the recorded calls and resets the recorder.
func (r *recordingHandler) take() []string {
	calls := r.calls
	r.calls = nil
	return calls
}

// ─── Helpers ────────────────────────────────────────────────────────────────

const (
	testCategory CategoryID = 1
	testDisplay  DisplayID  = 3
	testScene    SceneID    = 20
)

var testSize = Size{Width: 800, Height: 480}

func setupController(t *testing.T) (*Controller, *mockConsumer, *mockSceneControl, *recordingHandler) {
	t.Helper()

	consumer := newMockConsumer()
	scenes := newMockSceneControl()
	ctrl, err := NewController(Config{
		Categories: []CategoryConfig{{ID: testCategory, Size: testSize, Display: testDisplay}},
	}, consumer, scenes, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl, consumer, scenes, &recordingHandler{}
}

func mustUpdate(t *testing.T, ctrl *Controller, now uint64, h EventHandler) {
	t.Helper()
	if err := ctrl.Update(now, h); err != nil {
		t.Fatalf("Update(%d) error = %v", now, err)
	}
}

// offerAndDescribe brings a content to Available on testScene at t=0.
func offerAndDescribe(t *testing.T, ctrl *Controller, consumer *mockConsumer, h *recordingHandler, id ContentID, scene SceneID) {
	t.Helper()
	consumer.offer(id, testCategory)
	consumer.describe(id, scene)
	mustUpdate(t, ctrl, ctrl.Now(), h)
	h.take()
}

// makeReady drives a described content to Ready.
func makeReady(t *testing.T, ctrl *Controller, consumer *mockConsumer, scenes *mockSceneControl, h *recordingHandler, id ContentID, scene SceneID) {
	t.Helper()
	if err := ctrl.RequestReady(id, 0); err != nil {
		t.Fatalf("RequestReady(%d) error = %v", id, err)
	}
	consumer.ready(id)
	scenes.report(scene, SceneReady)
	mustUpdate(t, ctrl, ctrl.Now(), h)
	h.take()

	assertState(t, ctrl, id, ContentReady)
}

func assertState(t *testing.T, ctrl *Controller, id ContentID, want ContentState) {
	t.Helper()
	got, err := ctrl.ContentState(id)
	if err != nil {
		t.Fatalf("ContentState(%d) error = %v", id, err)
	}
	if got != want {
		t.Errorf("ContentState(%d) = %s, want %s", id, got, want)
	}
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("handler calls = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("handler call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
