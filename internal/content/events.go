package content

import "fmt"

// EventType tags the variant carried by an Event.
type EventType int

const (
	EventContentStateChanged EventType = iota
	EventContentFocusRequested
	EventContentStopOfferRequested
	EventContentNotAvailable
	EventContentMetadataUpdated
	EventOffscreenBufferLinked
	EventDataLinked
	EventContentFlushed
	EventContentExpired
	EventContentRecovered
	EventStreamAvailabilityChanged
)

// String returns the snake_case name used for topics and channels.
func (t EventType) String() string {
	switch t {
	case EventContentStateChanged:
		return "state_changed"
	case EventContentFocusRequested:
		return "focus_requested"
	case EventContentStopOfferRequested:
		return "stop_offer_requested"
	case EventContentNotAvailable:
		return "not_available"
	case EventContentMetadataUpdated:
		return "metadata_updated"
	case EventOffscreenBufferLinked:
		return "offscreen_buffer_linked"
	case EventDataLinked:
		return "data_linked"
	case EventContentFlushed:
		return "flushed"
	case EventContentExpired:
		return "expired"
	case EventContentRecovered:
		return "recovered"
	case EventStreamAvailabilityChanged:
		return "stream_availability_changed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// EventResult is the outcome carried by events that conclude a request.
type EventResult int

const (
	ResultOK EventResult = iota
	ResultTimedOut
)

// String returns "ok" or "timed_out".
func (r EventResult) String() string {
	if r == ResultTimedOut {
		return "timed_out"
	}
	return "ok"
}

// Event is a notification for the owner of the controller. Type selects
// which of the payload fields are meaningful.
type Event struct {
	Type   EventType
	Result EventResult

	// Content is the subject of content-scoped events.
	Content  ContentID
	Category CategoryID

	// From and To are set for EventContentStateChanged.
	From ContentState
	To   ContentState

	// Metadata is set for EventContentMetadataUpdated.
	Metadata Metadata

	// Link fields are set for EventOffscreenBufferLinked and EventDataLinked.
	DisplayBuffer   DisplayBufferID
	ProviderContent ContentID
	ProviderID      DataProviderID
	ConsumerContent ContentID
	ConsumerID      DataConsumerID

	// Version is set for EventContentFlushed.
	Version SceneVersionTag

	// Stream fields are set for EventStreamAvailabilityChanged.
	Stream          StreamSource
	StreamAvailable bool
}

// EventHandler receives the events dispatched by Controller.Update, one
// method per kind.
//
// Handlers may call back into the controller. Events caused by such calls
// are delivered on the next Update.
type EventHandler interface {
	ContentAvailable(id ContentID, category CategoryID)
	ContentReady(id ContentID, result EventResult)
	ContentShown(id ContentID)
	ContentFocusRequested(id ContentID)
	ContentStopOfferRequested(id ContentID)
	ContentNotAvailable(id ContentID)
	ContentMetadataUpdated(id ContentID, metadata Metadata)
	OffscreenBufferLinked(buffer DisplayBufferID, consumer ContentID, consumerID DataConsumerID, success bool)
	DataLinked(provider ContentID, providerID DataProviderID, consumer ContentID, consumerID DataConsumerID, success bool)
	ContentFlushed(id ContentID, version SceneVersionTag)
	ContentExpired(id ContentID)
	ContentRecoveredFromExpiration(id ContentID)
	StreamAvailabilityChanged(stream StreamSource, available bool)
}

// eventReceiver is implemented by handlers that want the tagged Event
// instead of the per-kind callbacks.
type eventReceiver interface {
	HandleEvent(evt Event)
}

// EventFunc adapts a function to EventHandler. The function receives every
// event unchanged, including the From state of transitions.
type EventFunc func(evt Event)

// HandleEvent calls f(evt).
func (f EventFunc) HandleEvent(evt Event) { f(evt) }

func (f EventFunc) ContentAvailable(id ContentID, category CategoryID) {
	f(Event{Type: EventContentStateChanged, Content: id, Category: category, To: ContentAvailable})
}

func (f EventFunc) ContentReady(id ContentID, result EventResult) {
	f(Event{Type: EventContentStateChanged, Content: id, To: ContentReady, Result: result})
}

func (f EventFunc) ContentShown(id ContentID) {
	f(Event{Type: EventContentStateChanged, Content: id, To: ContentShown})
}

func (f EventFunc) ContentFocusRequested(id ContentID) {
	f(Event{Type: EventContentFocusRequested, Content: id})
}

func (f EventFunc) ContentStopOfferRequested(id ContentID) {
	f(Event{Type: EventContentStopOfferRequested, Content: id})
}

func (f EventFunc) ContentNotAvailable(id ContentID) {
	f(Event{Type: EventContentNotAvailable, Content: id})
}

func (f EventFunc) ContentMetadataUpdated(id ContentID, metadata Metadata) {
	f(Event{Type: EventContentMetadataUpdated, Content: id, Metadata: metadata})
}

func (f EventFunc) OffscreenBufferLinked(buffer DisplayBufferID, consumer ContentID, consumerID DataConsumerID, success bool) {
	f(Event{Type: EventOffscreenBufferLinked, DisplayBuffer: buffer, ConsumerContent: consumer, ConsumerID: consumerID, Result: resultOf(success)})
}

func (f EventFunc) DataLinked(provider ContentID, providerID DataProviderID, consumer ContentID, consumerID DataConsumerID, success bool) {
	f(Event{Type: EventDataLinked, ProviderContent: provider, ProviderID: providerID, ConsumerContent: consumer, ConsumerID: consumerID, Result: resultOf(success)})
}

func (f EventFunc) ContentFlushed(id ContentID, version SceneVersionTag) {
	f(Event{Type: EventContentFlushed, Content: id, Version: version})
}

func (f EventFunc) ContentExpired(id ContentID) {
	f(Event{Type: EventContentExpired, Content: id})
}

func (f EventFunc) ContentRecoveredFromExpiration(id ContentID) {
	f(Event{Type: EventContentRecovered, Content: id})
}

func (f EventFunc) StreamAvailabilityChanged(stream StreamSource, available bool) {
	f(Event{Type: EventStreamAvailabilityChanged, Stream: stream, StreamAvailable: available})
}

func resultOf(success bool) EventResult {
	if success {
		return ResultOK
	}
	return ResultTimedOut
}

// dispatch delivers one event to a handler.
func dispatch(evt Event, h EventHandler) {
	if r, ok := h.(eventReceiver); ok {
		r.HandleEvent(evt)
		return
	}

	switch evt.Type {
	case EventContentStateChanged:
		// A timed-out ready request is reported as the ready request's result.
		if evt.Result == ResultTimedOut {
			h.ContentReady(evt.Content, evt.Result)
			return
		}
		switch evt.To {
		case ContentAvailable:
			h.ContentAvailable(evt.Content, evt.Category)
		case ContentReady:
			h.ContentReady(evt.Content, evt.Result)
		case ContentShown:
			h.ContentShown(evt.Content)
		}
	case EventContentFocusRequested:
		h.ContentFocusRequested(evt.Content)
	case EventContentStopOfferRequested:
		h.ContentStopOfferRequested(evt.Content)
	case EventContentNotAvailable:
		h.ContentNotAvailable(evt.Content)
	case EventContentMetadataUpdated:
		h.ContentMetadataUpdated(evt.Content, evt.Metadata)
	case EventOffscreenBufferLinked:
		h.OffscreenBufferLinked(evt.DisplayBuffer, evt.ConsumerContent, evt.ConsumerID, evt.Result == ResultOK)
	case EventDataLinked:
		h.DataLinked(evt.ProviderContent, evt.ProviderID, evt.ConsumerContent, evt.ConsumerID, evt.Result == ResultOK)
	case EventContentFlushed:
		h.ContentFlushed(evt.Content, evt.Version)
	case EventContentExpired:
		h.ContentExpired(evt.Content)
	case EventContentRecovered:
		h.ContentRecoveredFromExpiration(evt.Content)
	case EventStreamAvailabilityChanged:
		h.StreamAvailabilityChanged(evt.Stream, evt.StreamAvailable)
	}
}

// eventQueue is double buffered. Producers append to pending; dispatch swaps
// pending into inflight and iterates that, so events enqueued by handlers
// during dispatch wait for the next round.
type eventQueue struct {
	pending  []Event
	inflight []Event
}

func (q *eventQueue) push(evt Event) {
	q.pending = append(q.pending, evt)
}

// dispatchTo swaps the buffers and delivers the swapped-in events.
func (q *eventQueue) dispatchTo(h EventHandler) int {
	q.inflight, q.pending = q.pending, q.inflight[:0]
	for _, evt := range q.inflight {
		dispatch(evt, h)
	}
	n := len(q.inflight)
	clear(q.inflight)
	q.inflight = q.inflight[:0]
	return n
}

func (q *eventQueue) len() int {
	return len(q.pending)
}
