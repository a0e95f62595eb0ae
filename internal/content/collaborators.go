package content

// ProtocolConsumer is the content-protocol side the controller talks to:
// it reports controller decisions to content providers and delivers their
// notifications.
type ProtocolConsumer interface {
	// ContentStateChange reports the state a content is moved to.
	ContentStateChange(id ContentID, state OfferState, timing Timing) error
	// ContentSizeChange reports a new category size to a content.
	ContentSizeChange(id ContentID, size Size, timing Timing) error
	// AcceptStopOffer confirms a provider's request to withdraw a content.
	AcceptStopOffer(id ContentID, timing Timing) error
	// AssignToConsumer accepts an offered content with the category's size.
	AssignToConsumer(id ContentID, size Size) error
	// DispatchEvents delivers all queued provider notifications to h.
	DispatchEvents(h ProtocolEventHandler) error
}

// ProtocolEventHandler receives provider notifications from DispatchEvents.
type ProtocolEventHandler interface {
	ContentOffered(id ContentID, category CategoryID)
	ContentDescription(id ContentID, contentType ContentType, descriptor uint64)
	ContentReady(id ContentID)
	ContentFocusRequest(id ContentID)
	ContentStopOfferRequest(id ContentID)
	ForceContentOfferStopped(id ContentID)
	ContentMetadataUpdated(id ContentID, metadata Metadata)
}

// SceneControl is the renderer side the controller drives scenes through.
// Commands may be buffered until Flush.
type SceneControl interface {
	SetSceneState(id SceneID, state SceneState) error
	SetSceneMapping(id SceneID, display DisplayID) error
	SetSceneDisplayBufferAssignment(id SceneID, buffer DisplayBufferID, renderOrder int32) error
	SetDisplayBufferClearColor(display DisplayID, buffer DisplayBufferID, color Color) error
	LinkOffscreenBuffer(buffer DisplayBufferID, consumerScene SceneID, consumerID DataConsumerID) error
	LinkData(providerScene SceneID, providerID DataProviderID, consumerScene SceneID, consumerID DataConsumerID) error
	// Flush submits buffered commands to the renderer.
	Flush() error
	// DispatchEvents delivers all queued renderer notifications to h.
	DispatchEvents(h SceneEventHandler) error
}

// SceneEventHandler receives renderer notifications from DispatchEvents.
type SceneEventHandler interface {
	ScenePublished(id SceneID)
	SceneStateChanged(id SceneID, state SceneState)
	OffscreenBufferLinked(buffer DisplayBufferID, consumerScene SceneID, consumerID DataConsumerID, success bool)
	DataLinked(providerScene SceneID, providerID DataProviderID, consumerScene SceneID, consumerID DataConsumerID, success bool)
	DataUnlinked(consumerScene SceneID, consumerID DataConsumerID, success bool)
	SceneFlushed(id SceneID, version SceneVersionTag)
	SceneExpired(id SceneID)
	SceneRecoveredFromExpiration(id SceneID)
	StreamAvailabilityChanged(stream StreamSource, available bool)
}

// Logger defines the logging interface used by the Controller.
// It is satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
