package mqtt

import (
	"strconv"
	"strings"
)

// Topic namespace shared by the compositor, content providers and the renderer.
const topicPrefix = "graylogic"

// Topics builds the compositor's MQTT topics.
//
// Layout:
//
//	graylogic/dcsm/command/{content_id}     compositor → provider
//	graylogic/dcsm/event/{type}             provider → compositor
//	graylogic/renderer/command/{type}       compositor → renderer
//	graylogic/renderer/event/{type}         renderer → compositor
//	graylogic/compositor/event/{type}       compositor → panels, logging
//	graylogic/compositor/status             retained online/offline (LWT)
type Topics struct{}

// DCSMCommand is where commands for one content's provider are published.
//
// Example: graylogic/dcsm/command/42
func (Topics) DCSMCommand(contentID uint64) string {
	return topicPrefix + "/dcsm/command/" + strconv.FormatUint(contentID, 10)
}

// DCSMEvent is the topic a provider publishes one kind of notification to.
//
// Example: graylogic/dcsm/event/content_offered
func (Topics) DCSMEvent(eventType string) string {
	return topicPrefix + "/dcsm/event/" + eventType
}

// AllDCSMEvents matches every provider notification.
func (Topics) AllDCSMEvents() string {
	return topicPrefix + "/dcsm/event/+"
}

// RendererCommand is where scene commands of one kind are published.
//
// Example: graylogic/renderer/command/set_scene_state
func (Topics) RendererCommand(commandType string) string {
	return topicPrefix + "/renderer/command/" + commandType
}

// RendererEvent is the topic the renderer publishes one kind of notification to.
func (Topics) RendererEvent(eventType string) string {
	return topicPrefix + "/renderer/event/" + eventType
}

// AllRendererEvents matches every renderer notification.
func (Topics) AllRendererEvents() string {
	return topicPrefix + "/renderer/event/+"
}

// CompositorEvent carries the controller's outbound events.
//
// Example: graylogic/compositor/event/state_changed
func (Topics) CompositorEvent(eventType string) string {
	return topicPrefix + "/compositor/event/" + eventType
}

// CompositorStatus is the retained online/offline topic, also used for the LWT.
func (Topics) CompositorStatus() string {
	return topicPrefix + "/compositor/status"
}

// LastSegment returns the final level of topic, e.g. the event type of a
// message received through a single-level wildcard.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
