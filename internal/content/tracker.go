package content

// requestSceneState records a content's desire for its scene and asks the
// renderer for the consolidated state when it differs from the actual one.
//
// A scene about to leave the unmapped range is mapped onto the display of
// the requesting content's category first. Renderer errors are logged; the
// next notification from the renderer is the source of truth.
func (c *Controller) requestSceneState(id ContentID, state SceneState) {
	sceneID, bound := c.sceneTable.sceneOf(id)
	if !bound {
		return
	}

	s := c.sceneTable[sceneID]
	s.state.SetDesiredState(id, state)
	c.reconcileScene(sceneID, id)
}

// reconcileScene pushes a scene towards its consolidated desired state. The
// mapping display is taken from via's category.
func (c *Controller) reconcileScene(sceneID SceneID, via ContentID) {
	s, ok := c.sceneTable[sceneID]
	if !ok || !s.state.NeedsTransition() {
		return
	}

	actual := s.state.ActualState()
	consolidated := s.state.ConsolidatedDesiredState()

	if consolidated >= SceneReady && actual < SceneReady {
		if display, ok := c.displayFor(via); ok {
			if err := c.scenes.SetSceneMapping(sceneID, display); err != nil {
				c.logger.Error("failed to set scene mapping", "scene", sceneID, "display", display, "error", err)
			}
		}
	}

	c.logger.Info("requesting scene state change", "content", via, "scene", sceneID, "state", consolidated)
	if err := c.scenes.SetSceneState(sceneID, consolidated); err != nil {
		c.logger.Error("failed to request scene state", "scene", sceneID, "state", consolidated, "error", err)
	}
}

func (c *Controller) displayFor(id ContentID) (DisplayID, bool) {
	entry, ok := c.contents[id]
	if !ok {
		return 0, false
	}
	cat, ok := c.categories[entry.category]
	if !ok {
		return 0, false
	}
	return cat.display, true
}
