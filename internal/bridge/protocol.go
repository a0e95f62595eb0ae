package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
)

// ProtocolBridge connects the controller to content providers over MQTT.
// It implements content.ProtocolConsumer.
//
// Commands are published as soon as the controller issues them. Provider
// notifications are decoded on MQTT goroutines and held until the next
// DispatchEvents.
type ProtocolBridge struct {
	client MQTTClient
	opts   Options
	events inbox[content.ProtocolEventHandler]
}

var _ content.ProtocolConsumer = (*ProtocolBridge)(nil)

// NewProtocolBridge creates a bridge publishing through client.
// Call Start to receive provider notifications.
func NewProtocolBridge(client MQTTClient, opts Options) *ProtocolBridge {
	return &ProtocolBridge{client: client, opts: opts.withDefaults()}
}

// Start subscribes to all provider notifications.
func (b *ProtocolBridge) Start() error {
	if err := b.client.Subscribe(mqtt.Topics{}.AllDCSMEvents(), b.opts.QoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to provider events: %w", err)
	}
	return nil
}

// Stop unsubscribes from provider notifications. Queued ones are kept.
func (b *ProtocolBridge) Stop() error {
	return b.client.Unsubscribe(mqtt.Topics{}.AllDCSMEvents())
}

// Queued returns the number of notifications waiting for DispatchEvents.
func (b *ProtocolBridge) Queued() int {
	return b.events.len()
}

// ContentStateChange publishes the state the controller moved a content to.
func (b *ProtocolBridge) ContentStateChange(id content.ContentID, state content.OfferState, timing content.Timing) error {
	return b.send(ProviderCommand{
		Type:      TypeContentStateChange,
		ContentID: uint64(id),
		State:     state.String(),
		Timing:    &timing,
	})
}

// ContentSizeChange publishes a new category size for a content.
func (b *ProtocolBridge) ContentSizeChange(id content.ContentID, size content.Size, timing content.Timing) error {
	return b.send(ProviderCommand{
		Type:      TypeContentSizeChange,
		ContentID: uint64(id),
		Size:      &size,
		Timing:    &timing,
	})
}

// AcceptStopOffer confirms the provider may withdraw the content.
func (b *ProtocolBridge) AcceptStopOffer(id content.ContentID, timing content.Timing) error {
	return b.send(ProviderCommand{
		Type:      TypeAcceptStopOffer,
		ContentID: uint64(id),
		Timing:    &timing,
	})
}

// AssignToConsumer accepts an offered content.
func (b *ProtocolBridge) AssignToConsumer(id content.ContentID, size content.Size) error {
	return b.send(ProviderCommand{
		Type:      TypeAssignToConsumer,
		ContentID: uint64(id),
		Size:      &size,
	})
}

// DispatchEvents replays queued provider notifications to h in arrival order.
func (b *ProtocolBridge) DispatchEvents(h content.ProtocolEventHandler) error {
	for _, deliver := range b.events.drain() {
		deliver(h)
	}
	return nil
}

func (b *ProtocolBridge) send(cmd ProviderCommand) error {
	cmd.ID = newCommandID()
	cmd.Timestamp = b.opts.Now().UTC()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPublishFailed, cmd.Type, err)
	}
	if err := b.client.Publish(mqtt.Topics{}.DCSMCommand(cmd.ContentID), payload, b.opts.QoS, false); err != nil {
		return fmt.Errorf("%w: %s for content %d: %w", ErrPublishFailed, cmd.Type, cmd.ContentID, err)
	}
	return nil
}

// handleMessage decodes one provider notification and queues it.
func (b *ProtocolBridge) handleMessage(topic string, payload []byte) error {
	var msg ProviderEvent
	if err := decode(topic, payload, &msg.Type, &msg); err != nil {
		return err
	}

	id := content.ContentID(msg.ContentID)
	var deliver func(content.ProtocolEventHandler)

	switch msg.Type {
	case TypeContentOffered:
		category := content.CategoryID(msg.Category)
		deliver = func(h content.ProtocolEventHandler) { h.ContentOffered(id, category) }
	case TypeContentDescription:
		contentType, err := parseContentType(msg.ContentType)
		if err != nil {
			return err
		}
		descriptor := msg.Descriptor
		deliver = func(h content.ProtocolEventHandler) { h.ContentDescription(id, contentType, descriptor) }
	case TypeContentReady:
		deliver = func(h content.ProtocolEventHandler) { h.ContentReady(id) }
	case TypeContentFocusRequest:
		deliver = func(h content.ProtocolEventHandler) { h.ContentFocusRequest(id) }
	case TypeContentStopOfferRequest:
		deliver = func(h content.ProtocolEventHandler) { h.ContentStopOfferRequest(id) }
	case TypeForceContentOfferStopped:
		deliver = func(h content.ProtocolEventHandler) { h.ForceContentOfferStopped(id) }
	case TypeContentMetadataUpdated:
		var metadata content.Metadata
		if msg.Metadata != nil {
			metadata = *msg.Metadata
		}
		deliver = func(h content.ProtocolEventHandler) { h.ContentMetadataUpdated(id, metadata) }
	default:
		return fmt.Errorf("%w: %q on %s", ErrUnknownMessage, msg.Type, topic)
	}

	b.events.push(deliver)
	b.opts.Logger.Debug("provider event queued", "type", msg.Type, "content_id", msg.ContentID)
	return nil
}

func parseContentType(s string) (content.ContentType, error) {
	switch s {
	case "", contentTypeScene:
		return content.ContentTypeScene, nil
	default:
		return 0, fmt.Errorf("%w: unsupported content type %q", ErrInvalidMessage, s)
	}
}
