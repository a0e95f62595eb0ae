package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// Provider notification types, carried as the last topic level of
// graylogic/dcsm/event/{type}.
const (
	TypeContentOffered           = "content_offered"
	TypeContentDescription       = "content_description"
	TypeContentReady             = "content_ready"
	TypeContentFocusRequest      = "content_focus_request"
	TypeContentStopOfferRequest  = "content_stop_offer_request"
	TypeForceContentOfferStopped = "force_content_offer_stopped"
	TypeContentMetadataUpdated   = "content_metadata_updated"
)

// Provider command types, published to graylogic/dcsm/command/{content_id}.
const (
	TypeContentStateChange = "content_state_change"
	TypeContentSizeChange  = "content_size_change"
	TypeAcceptStopOffer    = "accept_stop_offer"
	TypeAssignToConsumer   = "assign_to_consumer"
)

// Renderer command types, published to graylogic/renderer/command/{type}.
const (
	TypeSetSceneState                   = "set_scene_state"
	TypeSetSceneMapping                 = "set_scene_mapping"
	TypeSetSceneDisplayBufferAssignment = "set_scene_display_buffer_assignment"
	TypeSetDisplayBufferClearColor      = "set_display_buffer_clear_color"
	TypeLinkOffscreenBuffer             = "link_offscreen_buffer"
	TypeLinkData                        = "link_data"
)

// Renderer notification types, carried as the last topic level of
// graylogic/renderer/event/{type}.
const (
	TypeScenePublished               = "scene_published"
	TypeSceneStateChanged            = "scene_state_changed"
	TypeOffscreenBufferLinked        = "offscreen_buffer_linked"
	TypeDataLinked                   = "data_linked"
	TypeDataUnlinked                 = "data_unlinked"
	TypeSceneFlushed                 = "scene_flushed"
	TypeSceneExpired                 = "scene_expired"
	TypeSceneRecoveredFromExpiration = "scene_recovered_from_expiration"
	TypeStreamAvailabilityChanged    = "stream_availability_changed"
)

// contentTypeScene is the wire name of content.ContentTypeScene.
const contentTypeScene = "scene"

// ProviderEvent is a notification from a content provider.
// Topic: graylogic/dcsm/event/{type}
type ProviderEvent struct {
	// Type overrides the topic's event type when set.
	Type      string `json:"type,omitempty"`
	ContentID uint64 `json:"content_id"`

	// Category is set for content_offered.
	Category uint64 `json:"category,omitempty"`

	// ContentType and Descriptor are set for content_description.
	// ContentType defaults to "scene".
	ContentType string `json:"content_type,omitempty"`
	Descriptor  uint64 `json:"descriptor,omitempty"`

	// Metadata is set for content_metadata_updated.
	Metadata *content.Metadata `json:"metadata,omitempty"`
}

// ProviderCommand is sent to the provider of one content.
// Topic: graylogic/dcsm/command/{content_id}
type ProviderCommand struct {
	// ID uniquely identifies the command for correlation in provider logs.
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	ContentID uint64          `json:"content_id"`
	State     string          `json:"state,omitempty"`
	Size      *content.Size   `json:"size,omitempty"`
	Timing    *content.Timing `json:"timing,omitempty"`
}

// SceneCommand is a buffered renderer command.
// Topic: graylogic/renderer/command/{type}
//
// Only the fields relevant to Type are set.
type SceneCommand struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	Scene         *uint64        `json:"scene,omitempty"`
	State         string         `json:"state,omitempty"`
	Display       *uint32        `json:"display,omitempty"`
	DisplayBuffer *uint32        `json:"display_buffer,omitempty"`
	RenderOrder   *int32         `json:"render_order,omitempty"`
	ClearColor    *content.Color `json:"clear_color,omitempty"`
	ProviderScene *uint64        `json:"provider_scene,omitempty"`
	ProviderID    *uint32        `json:"provider_id,omitempty"`
	ConsumerScene *uint64        `json:"consumer_scene,omitempty"`
	ConsumerID    *uint32        `json:"consumer_id,omitempty"`
}

// SceneEvent is a notification from the renderer.
// Topic: graylogic/renderer/event/{type}
type SceneEvent struct {
	// Type overrides the topic's event type when set.
	Type          string `json:"type,omitempty"`
	Scene         uint64 `json:"scene"`
	State         string `json:"state,omitempty"`
	DisplayBuffer uint32 `json:"display_buffer,omitempty"`
	ProviderScene uint64 `json:"provider_scene,omitempty"`
	ProviderID    uint32 `json:"provider_id,omitempty"`
	ConsumerScene uint64 `json:"consumer_scene,omitempty"`
	ConsumerID    uint32 `json:"consumer_id,omitempty"`
	Success       bool   `json:"success,omitempty"`
	Version       uint64 `json:"version,omitempty"`
	Stream        uint32 `json:"stream,omitempty"`
	Available     bool   `json:"available,omitempty"`
}

func ptr[T any](v T) *T { return &v }
