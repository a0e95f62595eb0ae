// Package bridge carries the content controller's collaborator traffic over MQTT.
//
// ProtocolBridge implements content.ProtocolConsumer for content providers:
//
//	graylogic/dcsm/command/{content_id}   compositor → provider (immediate)
//	graylogic/dcsm/event/{type}           provider → compositor (queued)
//
// SceneBridge implements content.SceneControl for the renderer:
//
//	graylogic/renderer/command/{type}     compositor → renderer (buffered until Flush)
//	graylogic/renderer/event/{type}       renderer → compositor (queued)
//
// Inbound notifications arrive on MQTT goroutines. They are decoded there,
// queued under a mutex, and replayed on the controller's goroutine when
// Controller.Update calls DispatchEvents. Malformed or unknown messages are
// rejected with ErrInvalidMessage or ErrUnknownMessage and never reach the
// controller.
//
// Every outbound command carries a fresh UUID in its id field.
package bridge
