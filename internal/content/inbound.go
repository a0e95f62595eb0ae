package content

// inbound receives collaborator notifications during Update. It implements
// ProtocolEventHandler and SceneEventHandler on behalf of the controller so
// those methods stay off the controller's public surface.
type inbound struct {
	c *Controller
}

var (
	_ ProtocolEventHandler = inbound{}
	_ SceneEventHandler    = inbound{}
)

func (in inbound) ContentOffered(id ContentID, categoryID CategoryID) {
	c := in.c
	c.logger.Info("content offered", "content", id, "category", categoryID)

	cat, ok := c.categories[categoryID]
	if !ok {
		c.logger.Info("not interested in content offer", "content", id, "category", categoryID)
		return
	}
	if entry, exists := c.contents[id]; exists && entry.category != categoryID {
		c.logger.Warn("content offered for another category, stop offer first before changing category",
			"content", id,
			"category", entry.category,
			"requested_category", categoryID,
		)
		return
	}

	c.logger.Info("assigning content to category", "content", id, "category", categoryID)
	cat.assigned[id] = struct{}{}
	if _, exists := c.contents[id]; !exists {
		c.contents[id] = &contentEntry{category: categoryID}
	}
	if err := c.consumer.AssignToConsumer(id, cat.size); err != nil {
		c.logger.Error("failed to assign content to consumer", "content", id, "error", err)
	}
}

func (in inbound) ContentDescription(id ContentID, contentType ContentType, descriptor uint64) {
	c := in.c
	c.logger.Info("content description", "content", id, "type", contentType, "descriptor", descriptor)

	if _, ok := c.contents[id]; !ok {
		c.logger.Info("content not assigned, ignoring description", "content", id)
		return
	}
	if contentType != ContentTypeScene {
		c.logger.Warn("unsupported content type", "content", id, "type", contentType)
		return
	}

	sceneID := SceneID(descriptor)
	if previous, bound := c.sceneTable.sceneOf(id); bound && previous != sceneID {
		c.logger.Info("content rebound to another scene", "content", id, "scene", sceneID, "previous_scene", previous)
		c.sceneTable.detach(id)
		c.reconcileScene(previous, c.firstContentOf(previous))
	}

	c.sceneTable.getOrCreate(sceneID).contents[id] = struct{}{}
	c.requestSceneState(id, SceneAvailable)
	// Invalid as the last state forces the Available event out.
	c.handleContentStateChange(id, ContentInvalid)
}

func (in inbound) ContentReady(id ContentID) {
	c := in.c
	c.logger.Info("content ready", "content", id)

	entry, ok := c.contents[id]
	if !ok {
		c.logger.Info("content not assigned, ignoring ready", "content", id)
		return
	}
	if !entry.readyRequested {
		c.logger.Info("content not requested to be ready or released after request, ignoring ready", "content", id)
		return
	}

	last := c.currentState(id)
	entry.dcsmReady = true
	c.handleContentStateChange(id, last)
}

func (in inbound) ContentFocusRequest(id ContentID) {
	in.pushIfKnown(id, EventContentFocusRequested, "focus request")
}

func (in inbound) ContentStopOfferRequest(id ContentID) {
	in.pushIfKnown(id, EventContentStopOfferRequested, "stop offer request")
}

func (in inbound) ForceContentOfferStopped(id ContentID) {
	c := in.c
	c.logger.Info("content offer force stopped", "content", id)

	if _, ok := c.contents[id]; !ok {
		c.logger.Info("content not assigned, nothing to do", "content", id)
		return
	}

	sceneID, bound := c.sceneTable.sceneOf(id)
	c.removeContent(id)
	if bound {
		c.reconcileScene(sceneID, c.firstContentOf(sceneID))
	}

	c.events.push(Event{Type: EventContentNotAvailable, Content: id})
}

func (in inbound) ContentMetadataUpdated(id ContentID, metadata Metadata) {
	c := in.c
	c.logger.Info("content metadata updated", "content", id)

	if _, ok := c.contents[id]; !ok {
		c.logger.Info("content not assigned, ignoring metadata", "content", id)
		return
	}
	c.events.push(Event{Type: EventContentMetadataUpdated, Content: id, Metadata: metadata})
}

func (in inbound) pushIfKnown(id ContentID, typ EventType, what string) {
	c := in.c
	c.logger.Info("content "+what, "content", id)

	if _, ok := c.contents[id]; !ok {
		c.logger.Info("content not assigned, ignoring "+what, "content", id)
		return
	}
	c.events.push(Event{Type: typ, Content: id})
}

func (in inbound) ScenePublished(id SceneID) {
	in.c.logger.Info("scene published", "scene", id)
}

func (in inbound) SceneStateChanged(id SceneID, state SceneState) {
	c := in.c
	s := c.sceneTable.getOrCreate(id)
	contents := sortedIDs(s.contents)

	if s.state.ActualState() < SceneReady && state == SceneReady && !c.anyReadyRequested(contents) {
		// Happens when a ready request is cancelled before the scene gets there.
		c.logger.Info("scene became ready but no content requested it",
			"scene", id,
			"from", s.state.ActualState(),
			"to", state,
		)
		s.state.SetActualState(state)
		return
	}

	last := make(map[ContentID]ContentState, len(contents))
	for _, contentID := range contents {
		last[contentID] = c.currentState(contentID)
	}

	c.logger.Debug("scene state changed", "scene", id, "from", s.state.ActualState(), "to", state)
	s.state.SetActualState(state)

	for _, contentID := range contents {
		c.handleContentStateChange(contentID, last[contentID])
	}
}

func (in inbound) OffscreenBufferLinked(buffer DisplayBufferID, consumerScene SceneID, consumerID DataConsumerID, success bool) {
	c := in.c
	consumer := c.contentForLinkEvent(consumerScene, "consumer")

	c.logger.Info("offscreen buffer linked",
		"buffer", buffer,
		"consumer_content", consumer,
		"consumer_id", consumerID,
		"success", success,
	)
	c.events.push(Event{
		Type:            EventOffscreenBufferLinked,
		DisplayBuffer:   buffer,
		ConsumerContent: consumer,
		ConsumerID:      consumerID,
		Result:          resultOf(success),
	})
}

func (in inbound) DataLinked(providerScene SceneID, providerID DataProviderID, consumerScene SceneID, consumerID DataConsumerID, success bool) {
	c := in.c
	provider := c.contentForLinkEvent(providerScene, "provider")
	consumer := c.contentForLinkEvent(consumerScene, "consumer")

	c.logger.Info("data linked",
		"provider_content", provider,
		"provider_id", providerID,
		"consumer_content", consumer,
		"consumer_id", consumerID,
		"success", success,
	)
	c.events.push(Event{
		Type:            EventDataLinked,
		ProviderContent: provider,
		ProviderID:      providerID,
		ConsumerContent: consumer,
		ConsumerID:      consumerID,
		Result:          resultOf(success),
	})
}

func (in inbound) DataUnlinked(consumerScene SceneID, consumerID DataConsumerID, success bool) {
	in.c.logger.Info("data unlinked", "consumer_scene", consumerScene, "consumer_id", consumerID, "success", success)
}

func (in inbound) SceneFlushed(id SceneID, version SceneVersionTag) {
	in.fanOut(id, "flushed", Event{Type: EventContentFlushed, Version: version})
}

func (in inbound) SceneExpired(id SceneID) {
	in.fanOut(id, "expired", Event{Type: EventContentExpired})
}

func (in inbound) SceneRecoveredFromExpiration(id SceneID) {
	in.fanOut(id, "recovered from expiration", Event{Type: EventContentRecovered})
}

func (in inbound) StreamAvailabilityChanged(stream StreamSource, available bool) {
	in.c.logger.Info("stream availability changed", "stream", stream, "available", available)
	in.c.events.push(Event{Type: EventStreamAvailabilityChanged, Stream: stream, StreamAvailable: available})
}

// fanOut queues a copy of tmpl for every content bound to a scene.
func (in inbound) fanOut(id SceneID, what string, tmpl Event) {
	c := in.c
	contents := c.sceneTable.contentsOf(id)
	if len(contents) == 0 {
		c.logger.Warn("scene "+what+" but no content is bound to it", "scene", id)
		return
	}
	for _, contentID := range contents {
		c.logger.Info("content "+what, "content", contentID, "scene", id)
		evt := tmpl
		evt.Content = contentID
		c.events.push(evt)
	}
}

// contentForLinkEvent maps a scene to the content reported in link events.
func (c *Controller) contentForLinkEvent(id SceneID, role string) ContentID {
	contents := c.sceneTable.contentsOf(id)
	switch {
	case len(contents) == 0:
		c.logger.Warn("link event for scene without "+role+" content, reporting invalid content", "scene", id)
		return InvalidContentID
	case len(contents) > 1:
		c.logger.Info("link event for scene bound to multiple contents, reporting the first",
			"scene", id,
			"contents", contents,
		)
	}
	return contents[0]
}

func (c *Controller) firstContentOf(id SceneID) ContentID {
	if contents := c.sceneTable.contentsOf(id); len(contents) > 0 {
		return contents[0]
	}
	return InvalidContentID
}

func (c *Controller) anyReadyRequested(ids []ContentID) bool {
	for _, id := range ids {
		if entry, ok := c.contents[id]; ok && entry.readyRequested {
			return true
		}
	}
	return false
}
