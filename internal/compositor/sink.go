package compositor

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
)

const (
	// historyTimeout bounds one history insert on the writer goroutine.
	historyTimeout = 2 * time.Second

	// defaultHistoryQueue is the number of transitions buffered for the
	// history writer. Transitions beyond it are dropped with a warning.
	defaultHistoryQueue = 256
)

// ChannelPrefix prefixes the WebSocket channel of each event type,
// e.g. "content.state_changed".
const ChannelPrefix = "content."

// Publisher publishes JSON payloads. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Broadcaster pushes payloads to WebSocket subscribers of a channel.
// Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Metrics records time-series points. Satisfied by *influxdb.Client.
type Metrics interface {
	WriteContentTransition(tr influxdb.ContentTransition)
	WriteTick(stats influxdb.TickStats)
}

// HistoryRecorder stores state transitions. Satisfied by *history.SQLiteRepository.
type HistoryRecorder interface {
	RecordTransition(ctx context.Context, tr *history.Transition) error
}

// SinkOptions selects the outputs of a Sink. Nil outputs are skipped.
type SinkOptions struct {
	Publisher   Publisher
	Broadcaster Broadcaster
	Metrics     Metrics
	History     HistoryRecorder
	Logger      Logger

	// HistoryQueue sizes the history write buffer. Defaults to 256.
	HistoryQueue int

	// Now stamps messages. Defaults to time.Now.
	Now func() time.Time
}

// Sink fans controller events out to logs, MQTT, WebSocket clients,
// InfluxDB and history. It implements EventSink.
//
// Output failures are logged and never reach the controller. History is
// written by a background goroutine so SQLite never blocks a tick; call
// Close to flush it.
type Sink struct {
	opts SinkOptions

	historyCh chan *history.Transition
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ EventSink = (*Sink)(nil)

// NewSink creates a sink writing to the outputs in opts.
func NewSink(opts SinkOptions) *Sink {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistoryQueue <= 0 {
		opts.HistoryQueue = defaultHistoryQueue
	}

	s := &Sink{
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if opts.History == nil {
		close(s.done)
		return s
	}
	s.historyCh = make(chan *history.Transition, opts.HistoryQueue)
	go s.writeHistory()
	return s
}

// Close stops the history writer after it has written everything queued.
// Events handled afterwards are not recorded.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}

// HandleEvent delivers one event to every configured output.
func (s *Sink) HandleEvent(tick uint64, evt content.Event) {
	at := s.opts.Now()
	msg := NewEventMessage(tick, evt, at)
	s.log(msg, evt)

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishJSON(mqtt.Topics{}.CompositorEvent(msg.Type), msg); err != nil {
			s.opts.Logger.Warn("publishing compositor event failed", "type", msg.Type, "error", err)
		}
	}
	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Broadcast(ChannelPrefix+msg.Type, msg)
	}

	if evt.Type != content.EventContentStateChanged {
		return
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.WriteContentTransition(influxdb.ContentTransition{
			ContentID: uint64(evt.Content),
			Category:  uint64(evt.Category),
			From:      msg.From,
			To:        msg.To,
			Result:    msg.Result,
			Tick:      tick,
			At:        at,
		})
	}
	if s.historyCh != nil {
		tr := &history.Transition{
			ContentID: evt.Content,
			Category:  evt.Category,
			From:      msg.From,
			To:        msg.To,
			Result:    msg.Result,
			Tick:      tick,
			CreatedAt: at,
		}
		select {
		case s.historyCh <- tr:
		default:
			s.opts.Logger.Warn("history queue full, dropping transition", "content_id", evt.Content, "tick", tick)
		}
	}
}

// writeHistory records queued transitions one at a time until Close, then
// drains what is left.
func (s *Sink) writeHistory() {
	defer close(s.done)
	for {
		select {
		case tr := <-s.historyCh:
			s.recordTransition(tr)
		case <-s.stop:
			for {
				select {
				case tr := <-s.historyCh:
					s.recordTransition(tr)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) recordTransition(tr *history.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := s.opts.History.RecordTransition(ctx, tr); err != nil {
		s.opts.Logger.Warn("recording transition failed", "content_id", tr.ContentID, "error", err)
	}
}

// ObserveTick records per-update statistics. Idle ticks are not written.
func (s *Sink) ObserveTick(stats TickStats) {
	if stats.Err != nil {
		s.opts.Logger.Warn("tick completed with error", "tick", stats.Tick, "error", stats.Err)
	}
	if s.opts.Metrics == nil || (stats.Events == 0 && stats.Err == nil && stats.Pending == 0) {
		return
	}
	s.opts.Metrics.WriteTick(influxdb.TickStats{
		Tick:     stats.Tick,
		Duration: stats.Duration,
		Events:   stats.Events,
		Contents: stats.Contents,
		Pending:  stats.Pending,
		At:       s.opts.Now(),
	})
}

func (s *Sink) log(msg EventMessage, evt content.Event) {
	switch {
	case evt.Type == content.EventContentStateChanged && evt.Result == content.ResultTimedOut:
		s.opts.Logger.Warn("content ready request timed out", "content_id", evt.Content, "tick", msg.Tick)
	case evt.Type == content.EventContentStateChanged:
		s.opts.Logger.Info("content state changed",
			"content_id", evt.Content,
			"from", msg.From,
			"to", msg.To,
			"tick", msg.Tick,
		)
	case msg.Success != nil && !*msg.Success:
		s.opts.Logger.Warn("content link failed", "type", msg.Type, "consumer_content", evt.ConsumerContent)
	default:
		s.opts.Logger.Debug("content event", "type", msg.Type, "content_id", evt.Content)
	}
}
