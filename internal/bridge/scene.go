package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
)

// SceneBridge connects the controller to the renderer over MQTT.
// It implements content.SceneControl.
//
// Scene commands are buffered and published in order by Flush, so one
// controller update reaches the renderer as one batch. Outbound calls and
// Flush must come from the controller's goroutine; renderer notifications
// may arrive on any goroutine.
type SceneBridge struct {
	client  MQTTClient
	opts    Options
	pending []SceneCommand
	events  inbox[content.SceneEventHandler]
}

var _ content.SceneControl = (*SceneBridge)(nil)

// NewSceneBridge creates a bridge publishing through client.
// Call Start to receive renderer notifications.
func NewSceneBridge(client MQTTClient, opts Options) *SceneBridge {
	return &SceneBridge{client: client, opts: opts.withDefaults()}
}

// Start subscribes to all renderer notifications.
func (b *SceneBridge) Start() error {
	if err := b.client.Subscribe(mqtt.Topics{}.AllRendererEvents(), b.opts.QoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to renderer events: %w", err)
	}
	return nil
}

// Stop unsubscribes from renderer notifications.
func (b *SceneBridge) Stop() error {
	return b.client.Unsubscribe(mqtt.Topics{}.AllRendererEvents())
}

// Pending returns the number of buffered commands not yet flushed.
func (b *SceneBridge) Pending() int {
	return len(b.pending)
}

// Queued returns the number of notifications waiting for DispatchEvents.
func (b *SceneBridge) Queued() int {
	return b.events.len()
}

// SetSceneState buffers a scene state change.
func (b *SceneBridge) SetSceneState(id content.SceneID, state content.SceneState) error {
	b.buffer(SceneCommand{Type: TypeSetSceneState, Scene: ptr(uint64(id)), State: state.String()})
	return nil
}

// SetSceneMapping buffers mapping a scene onto a display.
func (b *SceneBridge) SetSceneMapping(id content.SceneID, display content.DisplayID) error {
	b.buffer(SceneCommand{Type: TypeSetSceneMapping, Scene: ptr(uint64(id)), Display: ptr(uint32(display))})
	return nil
}

// SetSceneDisplayBufferAssignment buffers assigning a scene to a display buffer.
func (b *SceneBridge) SetSceneDisplayBufferAssignment(id content.SceneID, buffer content.DisplayBufferID, renderOrder int32) error {
	b.buffer(SceneCommand{
		Type:          TypeSetSceneDisplayBufferAssignment,
		Scene:         ptr(uint64(id)),
		DisplayBuffer: ptr(uint32(buffer)),
		RenderOrder:   ptr(renderOrder),
	})
	return nil
}

// SetDisplayBufferClearColor buffers a display buffer clear colour.
func (b *SceneBridge) SetDisplayBufferClearColor(display content.DisplayID, buffer content.DisplayBufferID, color content.Color) error {
	b.buffer(SceneCommand{
		Type:          TypeSetDisplayBufferClearColor,
		Display:       ptr(uint32(display)),
		DisplayBuffer: ptr(uint32(buffer)),
		ClearColor:    &color,
	})
	return nil
}

// LinkOffscreenBuffer buffers a link from an offscreen buffer to a consumer scene.
func (b *SceneBridge) LinkOffscreenBuffer(buffer content.DisplayBufferID, consumerScene content.SceneID, consumerID content.DataConsumerID) error {
	b.buffer(SceneCommand{
		Type:          TypeLinkOffscreenBuffer,
		DisplayBuffer: ptr(uint32(buffer)),
		ConsumerScene: ptr(uint64(consumerScene)),
		ConsumerID:    ptr(uint32(consumerID)),
	})
	return nil
}

// LinkData buffers a data link between two scenes.
func (b *SceneBridge) LinkData(providerScene content.SceneID, providerID content.DataProviderID, consumerScene content.SceneID, consumerID content.DataConsumerID) error {
	b.buffer(SceneCommand{
		Type:          TypeLinkData,
		ProviderScene: ptr(uint64(providerScene)),
		ProviderID:    ptr(uint32(providerID)),
		ConsumerScene: ptr(uint64(consumerScene)),
		ConsumerID:    ptr(uint32(consumerID)),
	})
	return nil
}

// Flush publishes buffered commands in order. On a publish failure the
// failed command and everything after it stay buffered for the next Flush.
func (b *SceneBridge) Flush() error {
	for i, cmd := range b.pending {
		payload, err := json.Marshal(cmd)
		if err == nil {
			err = b.client.Publish(mqtt.Topics{}.RendererCommand(cmd.Type), payload, b.opts.QoS, false)
		}
		if err != nil {
			b.pending = b.pending[i:]
			return fmt.Errorf("%w: %s (%d commands unsent): %w", ErrPublishFailed, cmd.Type, len(b.pending), err)
		}
	}
	b.pending = b.pending[:0]
	return nil
}

// DispatchEvents replays queued renderer notifications to h in arrival order.
func (b *SceneBridge) DispatchEvents(h content.SceneEventHandler) error {
	for _, deliver := range b.events.drain() {
		deliver(h)
	}
	return nil
}

func (b *SceneBridge) buffer(cmd SceneCommand) {
	cmd.ID = newCommandID()
	cmd.Timestamp = b.opts.Now().UTC()
	b.pending = append(b.pending, cmd)
}

// handleMessage decodes one renderer notification and queues it.
func (b *SceneBridge) handleMessage(topic string, payload []byte) error {
	var msg SceneEvent
	if err := decode(topic, payload, &msg.Type, &msg); err != nil {
		return err
	}

	scene := content.SceneID(msg.Scene)
	var deliver func(content.SceneEventHandler)

	switch msg.Type {
	case TypeScenePublished:
		deliver = func(h content.SceneEventHandler) { h.ScenePublished(scene) }
	case TypeSceneStateChanged:
		state, err := content.ParseSceneState(msg.State)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		deliver = func(h content.SceneEventHandler) { h.SceneStateChanged(scene, state) }
	case TypeOffscreenBufferLinked:
		buffer := content.DisplayBufferID(msg.DisplayBuffer)
		consumerScene := content.SceneID(msg.ConsumerScene)
		consumerID := content.DataConsumerID(msg.ConsumerID)
		success := msg.Success
		deliver = func(h content.SceneEventHandler) {
			h.OffscreenBufferLinked(buffer, consumerScene, consumerID, success)
		}
	case TypeDataLinked:
		providerScene := content.SceneID(msg.ProviderScene)
		providerID := content.DataProviderID(msg.ProviderID)
		consumerScene := content.SceneID(msg.ConsumerScene)
		consumerID := content.DataConsumerID(msg.ConsumerID)
		success := msg.Success
		deliver = func(h content.SceneEventHandler) {
			h.DataLinked(providerScene, providerID, consumerScene, consumerID, success)
		}
	case TypeDataUnlinked:
		consumerScene := content.SceneID(msg.ConsumerScene)
		consumerID := content.DataConsumerID(msg.ConsumerID)
		success := msg.Success
		deliver = func(h content.SceneEventHandler) { h.DataUnlinked(consumerScene, consumerID, success) }
	case TypeSceneFlushed:
		version := content.SceneVersionTag(msg.Version)
		deliver = func(h content.SceneEventHandler) { h.SceneFlushed(scene, version) }
	case TypeSceneExpired:
		deliver = func(h content.SceneEventHandler) { h.SceneExpired(scene) }
	case TypeSceneRecoveredFromExpiration:
		deliver = func(h content.SceneEventHandler) { h.SceneRecoveredFromExpiration(scene) }
	case TypeStreamAvailabilityChanged:
		stream := content.StreamSource(msg.Stream)
		available := msg.Available
		deliver = func(h content.SceneEventHandler) { h.StreamAvailabilityChanged(stream, available) }
	default:
		return fmt.Errorf("%w: %q on %s", ErrUnknownMessage, msg.Type, topic)
	}

	b.events.push(deliver)
	b.opts.Logger.Debug("renderer event queued", "type", msg.Type, "scene", msg.Scene)
	return nil
}
