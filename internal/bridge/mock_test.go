package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
)

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	// failAfter makes every publish after the first n fail. Negative disables.
	failAfter int
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{handlers: make(map[string]mqtt.MessageHandler), failAfter: -1}
}

func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && len(m.published) >= m.failAfter {
		return mqtt.ErrNotConnected
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

// deliver simulates the broker routing a message to the wildcard subscription.
func (m *mockMQTTClient) deliver(t *testing.T, subscription, topic, payload string) error {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[subscription]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", subscription)
	}
	return handler(topic, []byte(payload))
}

func (m *mockMQTTClient) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// fixedNow is the timestamp stamped on outbound commands in tests.
var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{QoS: 1, Now: func() time.Time { return fixedNow }}
}

// recorder implements both inbound handler interfaces and logs each call.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) ContentOffered(id content.ContentID, category content.CategoryID) {
	r.add("offered %d %d", id, category)
}

func (r *recorder) ContentDescription(id content.ContentID, contentType content.ContentType, descriptor uint64) {
	r.add("description %d %d %d", id, contentType, descriptor)
}

func (r *recorder) ContentReady(id content.ContentID)            { r.add("ready %d", id) }
func (r *recorder) ContentFocusRequest(id content.ContentID)     { r.add("focus %d", id) }
func (r *recorder) ContentStopOfferRequest(id content.ContentID) { r.add("stop offer %d", id) }
func (r *recorder) ForceContentOfferStopped(id content.ContentID) {
	r.add("force stopped %d", id)
}

func (r *recorder) ContentMetadataUpdated(id content.ContentID, metadata content.Metadata) {
	desc := "<nil>"
	if metadata.PreviewDescription != nil {
		desc = *metadata.PreviewDescription
	}
	r.add("metadata %d %s", id, desc)
}

func (r *recorder) ScenePublished(id content.SceneID) { r.add("published %d", id) }
func (r *recorder) SceneStateChanged(id content.SceneID, state content.SceneState) {
	r.add("scene %d %s", id, state)
}

func (r *recorder) OffscreenBufferLinked(buffer content.DisplayBufferID, consumerScene content.SceneID, consumerID content.DataConsumerID, success bool) {
	r.add("ob linked %d %d:%d %t", buffer, consumerScene, consumerID, success)
}

func (r *recorder) DataLinked(providerScene content.SceneID, providerID content.DataProviderID, consumerScene content.SceneID, consumerID content.DataConsumerID, success bool) {
	r.add("data linked %d:%d %d:%d %t", providerScene, providerID, consumerScene, consumerID, success)
}

func (r *recorder) DataUnlinked(consumerScene content.SceneID, consumerID content.DataConsumerID, success bool) {
	r.add("data unlinked %d:%d %t", consumerScene, consumerID, success)
}

func (r *recorder) SceneFlushed(id content.SceneID, version content.SceneVersionTag) {
	r.add("flushed %d v%d", id, version)
}

func (r *recorder) SceneExpired(id content.SceneID) {
	r.add("expired %d", id)
}

func (r *recorder) SceneRecoveredFromExpiration(id content.SceneID) {
	r.add("recovered %d", id)
}

func (r *recorder) StreamAvailabilityChanged(stream content.StreamSource, available bool) {
	r.add("stream %d %t", stream, available)
}

func decodeJSON[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		t.Fatalf("payload %s is not valid JSON: %v", payload, err)
	}
	return v
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error = %v, want %v", err, target)
	}
}
