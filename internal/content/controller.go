package content

import (
	"errors"
	"fmt"
)

// Controller orchestrates content lifecycles.
//
// It validates and applies requests from its owner, consumes notifications
// from the content protocol and the renderer, schedules deferred scene
// transitions and queues events for the owner. All work that depends on
// time happens in Update.
//
// Thread Safety: not safe for concurrent use; confine to one goroutine.
type Controller struct {
	consumer ProtocolConsumer
	scenes   SceneControl
	logger   Logger

	categories categoryTable
	contents   contentTable
	sceneTable sceneTable

	commands scheduler
	events   eventQueue

	now uint64
}

// NewController creates a controller for the configured categories.
//
// Parameters:
//   - cfg: Categories to accept offers for (IDs must be unique)
//   - consumer: Content protocol collaborator
//   - scenes: Renderer scene control collaborator
//   - logger: Logger instance (may be nil)
//
// Returns:
//   - *Controller: Controller at timestamp 0 with no contents
//   - error: ErrInvalidConfig if collaborators are missing or IDs repeat
func NewController(cfg Config, consumer ProtocolConsumer, scenes SceneControl, logger Logger) (*Controller, error) {
	if consumer == nil || scenes == nil {
		return nil, fmt.Errorf("%w: protocol consumer and scene control are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Controller{
		consumer:   consumer,
		scenes:     scenes,
		logger:     logger,
		categories: make(categoryTable, len(cfg.Categories)),
		contents:   make(contentTable),
		sceneTable: make(sceneTable),
	}

	for _, cat := range cfg.Categories {
		if _, exists := c.categories[cat.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate category %d", ErrInvalidConfig, cat.ID)
		}
		c.categories[cat.ID] = &category{
			size:     cat.Size,
			display:  cat.Display,
			assigned: make(map[ContentID]struct{}),
		}
		logger.Info("registered category",
			"category", cat.ID,
			"width", cat.Size.Width,
			"height", cat.Size.Height,
			"display", cat.Display,
		)
	}

	return c, nil
}

// RequestReady asks the provider and the renderer to get a content ready.
//
// A timeout of 0 never expires. When the content is already ready only its
// deadline is refreshed.
func (c *Controller) RequestReady(id ContentID, timeout uint64) error {
	c.logger.Info("request content ready", "content", id, "timeout", timeout, "now", c.now)

	entry, ok := c.contents[id]
	if !ok {
		return fmt.Errorf("request ready %d: %w", id, ErrUnknownContent)
	}
	if _, bound := c.sceneTable.sceneOf(id); !bound {
		return fmt.Errorf("request ready %d: %w", id, ErrNoSceneBound)
	}

	last := c.currentState(id)
	switch last {
	case ContentAvailable:
		if !entry.dcsmReady {
			if err := c.consumer.ContentStateChange(id, OfferReady, Timing{}); err != nil {
				return fmt.Errorf("request ready %d: %w", id, err)
			}
		}
		entry.readyRequested = true
		entry.readyDeadline = readyDeadline(c.now, timeout)
		c.requestSceneState(id, SceneReady)
		c.handleContentStateChange(id, last)
	case ContentReady:
		entry.readyDeadline = readyDeadline(c.now, timeout)
	case ContentShown:
		return fmt.Errorf("request ready %d: %w", id, ErrContentShown)
	}

	return nil
}

// Show reports the content as shown to its provider and schedules its scene
// to be rendered at timing.Start. Showing a shown content re-applies timing.
func (c *Controller) Show(id ContentID, timing Timing) error {
	c.logger.Info("show content", "content", id, "start", timing.Start, "finish", timing.Finish)

	entry, ok := c.contents[id]
	if !ok {
		return fmt.Errorf("show %d: %w", id, ErrUnknownContent)
	}
	if !entry.dcsmReady {
		return fmt.Errorf("show %d: provider has not reported ready: %w", id, ErrNotReady)
	}

	last := c.currentState(id)
	if last == ContentAvailable {
		return fmt.Errorf("show %d: scene not ready: %w", id, ErrNotReady)
	}

	if err := c.consumer.ContentStateChange(id, OfferShown, timing); err != nil {
		return fmt.Errorf("show %d: %w", id, err)
	}
	c.scheduleSceneStateChange(id, SceneRendered, timing.Start)
	c.handleContentStateChange(id, last)

	return nil
}

// Hide reports the content as ready (no longer shown) to its provider and
// schedules its scene back to Ready at timing.Finish.
func (c *Controller) Hide(id ContentID, timing Timing) error {
	c.logger.Info("hide content", "content", id, "start", timing.Start, "finish", timing.Finish)

	if _, ok := c.contents[id]; !ok {
		return fmt.Errorf("hide %d: %w", id, ErrUnknownContent)
	}

	last := c.currentState(id)
	if last == ContentAvailable {
		return fmt.Errorf("hide %d: %w", id, ErrNotShown)
	}

	if err := c.consumer.ContentStateChange(id, OfferReady, timing); err != nil {
		return fmt.Errorf("hide %d: %w", id, err)
	}
	c.scheduleSceneStateChange(id, SceneReady, timing.Finish)
	c.handleContentStateChange(id, last)

	return nil
}

// Release returns a content to the assigned state and schedules its scene
// back to Available at timing.Finish.
func (c *Controller) Release(id ContentID, timing Timing) error {
	c.logger.Info("release content", "content", id, "start", timing.Start, "finish", timing.Finish)

	entry, ok := c.contents[id]
	if !ok {
		return fmt.Errorf("release %d: %w", id, ErrUnknownContent)
	}

	last := c.currentState(id)
	if err := c.consumer.ContentStateChange(id, OfferAssigned, timing); err != nil {
		return fmt.Errorf("release %d: %w", id, err)
	}
	entry.dcsmReady = false
	entry.readyRequested = false

	c.scheduleSceneStateChange(id, SceneAvailable, timing.Finish)
	c.handleContentStateChange(id, last)

	return nil
}

// SetCategorySize broadcasts a new size to every content of a category.
//
// The stored size is updated after the broadcast even when some contents
// rejected it, so later offers see the final size. Broadcast failures are
// returned joined.
func (c *Controller) SetCategorySize(id CategoryID, size Size, timing Timing) error {
	c.logger.Info("set category size",
		"category", id,
		"width", size.Width,
		"height", size.Height,
		"start", timing.Start,
		"finish", timing.Finish,
	)

	cat, ok := c.categories[id]
	if !ok {
		return fmt.Errorf("set size of category %d: %w", id, ErrUnknownCategory)
	}

	var errs []error
	for _, contentID := range sortedIDs(cat.assigned) {
		if err := c.consumer.ContentSizeChange(contentID, size, timing); err != nil {
			c.logger.Error("failed to change content size", "content", contentID, "error", err)
			errs = append(errs, fmt.Errorf("content %d: %w", contentID, err))
		}
	}

	cat.size = size

	if len(errs) > 0 {
		return fmt.Errorf("set size of category %d: %w", id, errors.Join(errs...))
	}
	return nil
}

// AcceptStopOffer confirms a provider's stop-offer. The content's scene is
// scheduled Unavailable and the content removed at timing.Finish.
func (c *Controller) AcceptStopOffer(id ContentID, timing Timing) error {
	c.logger.Info("accept stop offer", "content", id, "start", timing.Start, "finish", timing.Finish)

	entry, ok := c.contents[id]
	if !ok {
		return fmt.Errorf("accept stop offer %d: %w", id, ErrUnknownContent)
	}

	if err := c.consumer.AcceptStopOffer(id, timing); err != nil {
		return fmt.Errorf("accept stop offer %d: %w", id, err)
	}

	entry.dcsmReady = false
	entry.readyRequested = false
	c.scheduleSceneStateChange(id, SceneUnavailable, timing.Finish)
	// Replaces any earlier removal of id; only the latest one can matter.
	c.commands.schedule(Command{Kind: CommandRemoveContent, Content: id, Due: timing.Finish})

	return nil
}

// AssignToDisplayBuffer renders the content's scene into a display buffer.
func (c *Controller) AssignToDisplayBuffer(id ContentID, buffer DisplayBufferID, renderOrder int32) error {
	c.logger.Info("assign content to display buffer", "content", id, "buffer", buffer, "render_order", renderOrder)

	sceneID, err := c.readySceneOf(id)
	if err != nil {
		return fmt.Errorf("assign %d to display buffer: %w", id, err)
	}
	return c.scenes.SetSceneDisplayBufferAssignment(sceneID, buffer, renderOrder)
}

// SetDisplayBufferClearColor sets the clear colour of a display buffer.
func (c *Controller) SetDisplayBufferClearColor(display DisplayID, buffer DisplayBufferID, color Color) error {
	c.logger.Info("set display buffer clear color", "display", display, "buffer", buffer)
	return c.scenes.SetDisplayBufferClearColor(display, buffer, color)
}

// LinkOffscreenBuffer links an offscreen buffer to a data consumer in the
// consumer content's scene.
func (c *Controller) LinkOffscreenBuffer(buffer DisplayBufferID, consumer ContentID, consumerID DataConsumerID) error {
	c.logger.Info("link offscreen buffer", "buffer", buffer, "consumer_content", consumer, "consumer_id", consumerID)

	consumerScene, err := c.readySceneOf(consumer)
	if err != nil {
		return fmt.Errorf("link offscreen buffer to %d: %w", consumer, err)
	}
	return c.scenes.LinkOffscreenBuffer(buffer, consumerScene, consumerID)
}

// LinkData links a data provider in one content's scene to a consumer in
// another content's scene.
func (c *Controller) LinkData(provider ContentID, providerID DataProviderID, consumer ContentID, consumerID DataConsumerID) error {
	c.logger.Info("link data",
		"provider_content", provider,
		"provider_id", providerID,
		"consumer_content", consumer,
		"consumer_id", consumerID,
	)

	providerScene, err := c.readySceneOf(provider)
	if err != nil {
		return fmt.Errorf("link data from provider %d: %w", provider, err)
	}
	consumerScene, err := c.readySceneOf(consumer)
	if err != nil {
		return fmt.Errorf("link data to consumer %d: %w", consumer, err)
	}
	return c.scenes.LinkData(providerScene, providerID, consumerScene, consumerID)
}

// Update advances the controller to now and dispatches queued events.
//
// now must not be older than the previous call. The steps run in a fixed
// order: provider notifications, renderer notifications, renderer flush,
// due commands, ready timeouts, event dispatch.
func (c *Controller) Update(now uint64, handler EventHandler) error {
	if now < c.now {
		return fmt.Errorf("%w: now=%d previous=%d", ErrTimestampRegressed, now, c.now)
	}
	c.now = now

	in := inbound{c: c}
	if err := c.consumer.DispatchEvents(in); err != nil {
		return fmt.Errorf("dispatching protocol events: %w", err)
	}
	if err := c.scenes.DispatchEvents(in); err != nil {
		return fmt.Errorf("dispatching scene events: %w", err)
	}
	if err := c.scenes.Flush(); err != nil {
		return fmt.Errorf("flushing scene control: %w", err)
	}

	c.executeDueCommands()
	c.processTimedOutRequests()

	if handler != nil {
		c.events.dispatchTo(handler)
	}
	return nil
}

// Now returns the timestamp of the last Update.
func (c *Controller) Now() uint64 {
	return c.now
}

// ContentState returns the current state of a content.
func (c *Controller) ContentState(id ContentID) (ContentState, error) {
	if _, ok := c.contents[id]; !ok {
		return ContentInvalid, fmt.Errorf("content %d: %w", id, ErrUnknownContent)
	}
	return c.currentState(id), nil
}

// Content returns a snapshot of one content.
func (c *Controller) Content(id ContentID) (ContentInfo, error) {
	entry, ok := c.contents[id]
	if !ok {
		return ContentInfo{}, fmt.Errorf("content %d: %w", id, ErrUnknownContent)
	}
	return c.snapshot(id, entry), nil
}

// Contents returns snapshots of all contents ordered by ID.
func (c *Controller) Contents() []ContentInfo {
	out := make([]ContentInfo, 0, len(c.contents))
	for _, id := range sortedIDs(c.contents) {
		out = append(out, c.snapshot(id, c.contents[id]))
	}
	return out
}

// Categories returns snapshots of all categories ordered by ID.
func (c *Controller) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(c.categories))
	for _, id := range sortedIDs(c.categories) {
		cat := c.categories[id]
		out = append(out, CategoryInfo{
			ID:       id,
			Size:     cat.size,
			Display:  cat.display,
			Contents: sortedIDs(cat.assigned),
		})
	}
	return out
}

// PendingCommands returns the scheduled commands in scheduling order.
func (c *Controller) PendingCommands() []Command {
	return c.commands.pending()
}

// Counts returns the number of registered contents and pending commands
// without building snapshots.
func (c *Controller) Counts() (contents, pending int) {
	return len(c.contents), c.commands.len()
}

func (c *Controller) snapshot(id ContentID, entry *contentEntry) ContentInfo {
	state := c.currentState(id)
	info := ContentInfo{
		ID:             id,
		Category:       entry.category,
		State:          state,
		StateName:      state.String(),
		DcsmReady:      entry.dcsmReady,
		ReadyRequested: entry.readyRequested,
	}
	if sceneID, ok := c.sceneTable.sceneOf(id); ok {
		info.Scene = &sceneID
	}
	if entry.readyRequested && entry.readyDeadline != noTimeout {
		deadline := entry.readyDeadline
		info.Deadline = &deadline
	}
	return info
}

// readySceneOf resolves the scene of a content that the provider reported ready.
func (c *Controller) readySceneOf(id ContentID) (SceneID, error) {
	entry, ok := c.contents[id]
	if !ok {
		return 0, ErrUnknownContent
	}
	sceneID, bound := c.sceneTable.sceneOf(id)
	if !bound {
		return 0, ErrNoSceneBound
	}
	if !entry.dcsmReady {
		return 0, ErrNotReady
	}
	return sceneID, nil
}

// currentState derives the content state from its scene and provider readiness.
func (c *Controller) currentState(id ContentID) ContentState {
	sceneID, bound := c.sceneTable.sceneOf(id)
	if !bound {
		return ContentAvailable
	}

	entry := c.contents[id]
	switch c.sceneTable[sceneID].state.StateForContent(id) {
	case SceneRendered:
		return ContentShown
	case SceneReady:
		if entry != nil && entry.dcsmReady {
			return ContentReady
		}
		return ContentAvailable
	default:
		// Unavailable scenes still leave the content known and requestable.
		return ContentAvailable
	}
}

// handleContentStateChange queues a state event when the content's state
// differs from last. Reaching Ready or Shown satisfies a pending ready request.
func (c *Controller) handleContentStateChange(id ContentID, last ContentState) {
	entry, ok := c.contents[id]
	if !ok {
		return
	}

	curr := c.currentState(id)
	if curr == last {
		return
	}
	if curr > ContentAvailable {
		entry.readyRequested = false
	}

	c.logger.Info("content state changed", "content", id, "from", last, "to", curr)
	c.events.push(Event{
		Type:     EventContentStateChanged,
		Content:  id,
		Category: entry.category,
		From:     last,
		To:       curr,
		Result:   ResultOK,
	})
}

func (c *Controller) scheduleSceneStateChange(id ContentID, target SceneState, due uint64) {
	c.logger.Info("scheduling scene state change", "content", id, "state", target, "due", due)

	replaced, found := c.commands.schedule(Command{
		Kind:    CommandSceneStateChange,
		Content: id,
		Target:  target,
		Due:     due,
	})
	if found {
		c.logger.Info("overriding previously scheduled scene state change",
			"content", id,
			"state", replaced.Target,
			"due", replaced.Due,
		)
	}
}

// executeDueCommands runs every command due at the current timestamp.
func (c *Controller) executeDueCommands() {
	changes, removals := c.commands.due(c.now)

	for _, cmd := range changes {
		if _, ok := c.contents[cmd.Content]; !ok {
			continue
		}
		c.logger.Info("executing scheduled scene state change", "content", cmd.Content, "state", cmd.Target)
		last := c.currentState(cmd.Content)
		c.requestSceneState(cmd.Content, cmd.Target)
		c.handleContentStateChange(cmd.Content, last)
	}

	for _, id := range removals {
		c.logger.Info("executing scheduled content removal", "content", id)
		c.removeContent(id)
	}
}

// removeContent drops a content from all registries and the scheduler.
func (c *Controller) removeContent(id ContentID) {
	delete(c.contents, id)
	for _, cat := range c.categories {
		delete(cat.assigned, id)
	}
	c.sceneTable.detach(id)

	if n := c.commands.removeFor(id); n > 0 {
		c.logger.Info("removed scheduled commands of removed content", "content", id, "count", n)
	}
}
