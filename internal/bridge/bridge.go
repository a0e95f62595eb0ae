package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the bridges use.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the bridges.
// It is satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a bridge.
type Options struct {
	// QoS is used for subscriptions and outbound commands.
	QoS byte

	// Logger is optional.
	Logger Logger

	// Now stamps outbound commands. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// inbox collects notifications decoded on MQTT goroutines until the
// controller's goroutine drains them in DispatchEvents.
type inbox[H any] struct {
	mu      sync.Mutex
	pending []func(H)
}

func (q *inbox[H]) push(fn func(H)) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

func (q *inbox[H]) drain() []func(H) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *inbox[H]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// decode unmarshals payload into v and resolves the message type, which
// defaults to the last level of topic.
func decode(topic string, payload []byte, typ *string, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, topic, err)
	}
	if *typ == "" {
		*typ = mqtt.LastSegment(topic)
	}
	return nil
}

func newCommandID() string {
	return uuid.NewString()
}
