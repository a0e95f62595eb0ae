package compositor

import (
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// EventMessage is the JSON form of a content.Event published on
// graylogic/compositor/event/{type} and broadcast to WebSocket clients.
// Only the fields relevant to Type are set.
type EventMessage struct {
	Type      string    `json:"type"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`

	ContentID *content.ContentID  `json:"content_id,omitempty"`
	Category  *content.CategoryID `json:"category,omitempty"`
	From      string              `json:"from,omitempty"`
	To        string              `json:"to,omitempty"`
	Result    string              `json:"result,omitempty"`
	Metadata  *content.Metadata   `json:"metadata,omitempty"`

	DisplayBuffer   *content.DisplayBufferID `json:"display_buffer,omitempty"`
	ProviderContent *content.ContentID       `json:"provider_content,omitempty"`
	ProviderID      *content.DataProviderID  `json:"provider_id,omitempty"`
	ConsumerContent *content.ContentID       `json:"consumer_content,omitempty"`
	ConsumerID      *content.DataConsumerID  `json:"consumer_id,omitempty"`
	Success         *bool                    `json:"success,omitempty"`

	Version         *content.SceneVersionTag `json:"version,omitempty"`
	Stream          *content.StreamSource    `json:"stream,omitempty"`
	StreamAvailable *bool                    `json:"stream_available,omitempty"`
}

// NewEventMessage converts evt, dispatched at tick, into its wire form.
func NewEventMessage(tick uint64, evt content.Event, at time.Time) EventMessage {
	msg := EventMessage{
		Type:      evt.Type.String(),
		Tick:      tick,
		Timestamp: at.UTC(),
	}

	switch evt.Type {
	case content.EventContentStateChanged:
		msg.ContentID = ptr(evt.Content)
		msg.From = evt.From.String()
		msg.To = evt.To.String()
		msg.Result = evt.Result.String()
		if evt.To == content.ContentAvailable {
			msg.Category = ptr(evt.Category)
		}
	case content.EventContentMetadataUpdated:
		msg.ContentID = ptr(evt.Content)
		msg.Metadata = &evt.Metadata
	case content.EventOffscreenBufferLinked:
		msg.DisplayBuffer = ptr(evt.DisplayBuffer)
		msg.ConsumerContent = ptr(evt.ConsumerContent)
		msg.ConsumerID = ptr(evt.ConsumerID)
		msg.Success = ptr(evt.Result == content.ResultOK)
	case content.EventDataLinked:
		msg.ProviderContent = ptr(evt.ProviderContent)
		msg.ProviderID = ptr(evt.ProviderID)
		msg.ConsumerContent = ptr(evt.ConsumerContent)
		msg.ConsumerID = ptr(evt.ConsumerID)
		msg.Success = ptr(evt.Result == content.ResultOK)
	case content.EventContentFlushed:
		msg.ContentID = ptr(evt.Content)
		msg.Version = ptr(evt.Version)
	case content.EventStreamAvailabilityChanged:
		msg.Stream = ptr(evt.Stream)
		msg.StreamAvailable = ptr(evt.StreamAvailable)
	default:
		msg.ContentID = ptr(evt.Content)
	}
	return msg
}

func ptr[T any](v T) *T { return &v }
