// Package mqtt provides the compositor's MQTT client.
//
// MQTT is the bus between the compositor, the content providers that offer
// contents to it, and the renderer that owns the scenes:
//
//	Content providers ↔ MQTT Broker ↔ Compositor ↔ MQTT Broker ↔ Renderer
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Wildcard subscriptions that survive reconnects
//   - A retained status topic backed by a Last Will and Testament
//
// The topic layout is documented on Topics.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDCSMEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("%s: %s", mqtt.LastSegment(topic), payload)
//	        return nil
//	    })
//
// Handlers run on paho goroutines. Anything that must happen on a single
// goroutine (such as driving a content.Controller) has to be queued by the
// handler and picked up by that goroutine.
package mqtt
