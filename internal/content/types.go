package content

import (
	"fmt"
	"math"
)

// ContentID identifies a content offered by a provider.
type ContentID uint64

// InvalidContentID is reported in link events whose scene has no content.
const InvalidContentID ContentID = math.MaxUint64

// CategoryID identifies a placement slot contents are offered for.
type CategoryID uint64

// SceneID identifies a renderer scene.
type SceneID uint64

// DisplayID identifies a renderer display.
type DisplayID uint32

// DisplayBufferID identifies a framebuffer or offscreen buffer on a display.
type DisplayBufferID uint32

// DataProviderID identifies a data slot providing values to other scenes.
type DataProviderID uint32

// DataConsumerID identifies a data slot consuming values from a provider or buffer.
type DataConsumerID uint32

// StreamSource identifies an external video stream source.
type StreamSource uint32

// SceneVersionTag is the version reported with a scene flush.
type SceneVersionTag uint64

// noTimeout is the deadline used when a ready request never expires.
const noTimeout = math.MaxUint64

// SceneState is the renderer state of a scene.
//
// States are totally ordered: Unavailable < Available < Ready < Rendered.
type SceneState int

const (
	SceneUnavailable SceneState = iota
	SceneAvailable
	SceneReady
	SceneRendered
)

// String returns the lowercase state name used in logs and wire messages.
func (s SceneState) String() string {
	switch s {
	case SceneUnavailable:
		return "unavailable"
	case SceneAvailable:
		return "available"
	case SceneReady:
		return "ready"
	case SceneRendered:
		return "rendered"
	default:
		return fmt.Sprintf("scene_state(%d)", int(s))
	}
}

// ParseSceneState converts a state name back into a SceneState.
func ParseSceneState(s string) (SceneState, error) {
	switch s {
	case "unavailable":
		return SceneUnavailable, nil
	case "available":
		return SceneAvailable, nil
	case "ready":
		return SceneReady, nil
	case "rendered":
		return SceneRendered, nil
	default:
		return SceneUnavailable, fmt.Errorf("unknown scene state %q", s)
	}
}

// ContentState is the lifecycle state of a content as seen by the owner of
// the controller. It is derived on demand and never stored.
type ContentState int

const (
	// ContentInvalid is only used as a "previous" state to force an event.
	ContentInvalid ContentState = iota
	ContentAvailable
	ContentReady
	ContentShown
)

// String returns the lowercase state name.
func (s ContentState) String() string {
	switch s {
	case ContentInvalid:
		return "invalid"
	case ContentAvailable:
		return "available"
	case ContentReady:
		return "ready"
	case ContentShown:
		return "shown"
	default:
		return fmt.Sprintf("content_state(%d)", int(s))
	}
}

// OfferState is the state the controller reports to the content provider.
type OfferState int

const (
	OfferAssigned OfferState = iota
	OfferReady
	OfferShown
)

// String returns the lowercase state name used on the wire.
func (s OfferState) String() string {
	switch s {
	case OfferAssigned:
		return "assigned"
	case OfferReady:
		return "ready"
	case OfferShown:
		return "shown"
	default:
		return fmt.Sprintf("offer_state(%d)", int(s))
	}
}

// ContentType describes how a content descriptor is to be interpreted.
type ContentType int

const (
	// ContentTypeScene means the descriptor is a SceneID.
	ContentTypeScene ContentType = iota
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Timing is an animation window in controller ticks (milliseconds).
// Start is when a transition begins, Finish when it has completed.
type Timing struct {
	Start  uint64 `json:"start"`
	Finish uint64 `json:"finish"`
}

// Color is an RGBA clear colour with components in [0,1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Metadata is the optional information a provider attaches to a content.
// Absent entries are nil.
type Metadata struct {
	PreviewImagePNG    []byte  `json:"preview_image_png,omitempty"`
	PreviewDescription *string `json:"preview_description,omitempty"`
	WidgetOrder        *int32  `json:"widget_order,omitempty"`
	WidgetBackgroundID *int32  `json:"widget_background_id,omitempty"`
	WidgetHUDLineID    *int32  `json:"widget_hud_line_id,omitempty"`
}

// CategoryConfig describes one category the controller accepts offers for.
type CategoryConfig struct {
	ID      CategoryID
	Size    Size
	Display DisplayID
}

// Config configures a Controller.
type Config struct {
	Categories []CategoryConfig
}

// ContentInfo is a read-only snapshot of a registered content.
type ContentInfo struct {
	ID             ContentID    `json:"id"`
	Category       CategoryID   `json:"category"`
	State          ContentState `json:"-"`
	StateName      string       `json:"state"`
	Scene          *SceneID     `json:"scene,omitempty"`
	DcsmReady      bool         `json:"dcsm_ready"`
	ReadyRequested bool         `json:"ready_requested"`
	// Deadline is nil when no ready request is pending or it never expires.
	Deadline *uint64 `json:"deadline,omitempty"`
}

// CategoryInfo is a read-only snapshot of a configured category.
type CategoryInfo struct {
	ID       CategoryID  `json:"id"`
	Size     Size        `json:"size"`
	Display  DisplayID   `json:"display"`
	Contents []ContentID `json:"contents"`
}
