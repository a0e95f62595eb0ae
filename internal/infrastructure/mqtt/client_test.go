package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "compositor-test",
		},
		Auth: config.MQTTAuthConfig{
			Username: "compositor",
			Password: "secret",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger records handler failures reported by the client.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// ─── Options ───────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "compositor-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "compositor" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured for a plain connection")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth = config.MQTTAuthConfig{}

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS1.2", opts.TLSConfig)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want anonymous", opts.Username)
	}
}

func TestLastWill(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("LWT should be enabled and retained")
	}
	if opts.WillTopic != "graylogic/compositor/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("WillPayload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.ClientID != "compositor-test" || msg.Reason != "unexpected_disconnect" {
		t.Errorf("will = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("will has no timestamp")
	}
}

// ─── Disconnected client ───────────────────────────────────────────

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if c.IsConnected() {
		t.Fatal("new client reports connected")
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"publish", func() error { return c.Publish("a/b", nil, 1, false) }, ErrNotConnected},
		{"publish json", func() error { return c.PublishJSON("a/b", map[string]int{"x": 1}) }, ErrNotConnected},
		{"publish empty topic", func() error { return c.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return c.Publish("a/b", nil, 3, false) }, ErrInvalidQoS},
		{"publish too large", func() error { return c.Publish("a/b", make([]byte, maxPayloadSize+1), 0, false) }, ErrPublishFailed},
		{"publish unencodable", func() error { return c.PublishJSON("a/b", func() {}) }, ErrPublishFailed},
		{"subscribe", func() error { return c.Subscribe("a/#", 1, noop) }, ErrNotConnected},
		{"subscribe nil handler", func() error { return c.Subscribe("a/#", 1, nil) }, ErrSubscribeFailed},
		{"subscribe bad qos", func() error { return c.Subscribe("a/#", 5, noop) }, ErrInvalidQoS},
		{"unsubscribe", func() error { return c.Unsubscribe("a/#") }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"health", func() error { return c.HealthCheck(context.Background()) }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("a/#") {
		t.Error("failed subscribe must not be tracked")
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c := newClient(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("zero Close() error = %v", err)
	}
}

// ─── Handler wrapping ──────────────────────────────────────────────

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	var gotTopic, gotPayload string
	c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})(nil, fakeMessage{topic: "graylogic/dcsm/event/content_ready", payload: []byte(`{}`)})

	if gotTopic != "graylogic/dcsm/event/content_ready" || gotPayload != "{}" {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "t"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := newClient(testConfig())
	c.SetLogger(nil)

	// Must not panic without a logger.
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})
}

func TestCallbacks(t *testing.T) {
	c := newClient(testConfig())

	var connects, disconnects int
	var lost error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) { disconnects++; lost = err })

	cause := errors.New("network down")
	c.handleDisconnect(cause)

	if disconnects != 1 || !errors.Is(lost, cause) {
		t.Errorf("disconnect callback = %d, %v", disconnects, lost)
	}
	if connects != 0 {
		t.Errorf("connect callback fired %d times", connects)
	}
}

// ─── Topics ────────────────────────────────────────────────────────

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dcsm command", Topics{}.DCSMCommand(42), "graylogic/dcsm/command/42"},
		{"dcsm event", Topics{}.DCSMEvent("content_offered"), "graylogic/dcsm/event/content_offered"},
		{"all dcsm events", Topics{}.AllDCSMEvents(), "graylogic/dcsm/event/+"},
		{"renderer command", Topics{}.RendererCommand("set_scene_state"), "graylogic/renderer/command/set_scene_state"},
		{"renderer event", Topics{}.RendererEvent("scene_flushed"), "graylogic/renderer/event/scene_flushed"},
		{"all renderer events", Topics{}.AllRendererEvents(), "graylogic/renderer/event/+"},
		{"compositor event", Topics{}.CompositorEvent("state_changed"), "graylogic/compositor/event/state_changed"},
		{"compositor status", Topics{}.CompositorStatus(), "graylogic/compositor/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := map[string]string{
		"graylogic/dcsm/event/content_ready": "content_ready",
		"single":                             "single",
		"trailing/":                          "",
	}
	for in, want := range tests {
		if got := LastSegment(in); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
