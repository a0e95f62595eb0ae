package content

// SharedSceneState tracks what every content bound to a scene wants from it
// and what the renderer last reported.
//
// The consolidated desired state is the highest desire of all contents. Only
// that one drives the scene, but each content still sees its own state via
// StateForContent.
type SharedSceneState struct {
	desired map[ContentID]SceneState
	actual  SceneState
}

func newSharedSceneState() SharedSceneState {
	return SharedSceneState{
		desired: make(map[ContentID]SceneState),
		actual:  SceneUnavailable,
	}
}

// SetDesiredState records the state a content wants its scene in.
func (s *SharedSceneState) SetDesiredState(id ContentID, state SceneState) {
	if s.desired == nil {
		s.desired = make(map[ContentID]SceneState)
	}
	s.desired[id] = state
}

// SetActualState records the state reported by the renderer.
func (s *SharedSceneState) SetActualState(state SceneState) {
	s.actual = state
}

// ActualState returns the last state reported by the renderer.
func (s *SharedSceneState) ActualState() SceneState {
	return s.actual
}

// DesiredState returns the desire recorded for a content.
func (s *SharedSceneState) DesiredState(id ContentID) (SceneState, bool) {
	state, ok := s.desired[id]
	return state, ok
}

// ConsolidatedDesiredState returns the maximum recorded desire, or
// SceneUnavailable when no content has a desire.
func (s *SharedSceneState) ConsolidatedDesiredState() SceneState {
	consolidated := SceneUnavailable
	for _, state := range s.desired {
		consolidated = max(consolidated, state)
	}
	return consolidated
}

// StateForContent returns the scene state as it applies to one content: the
// actual state capped by what that content asked for. A content that only
// wants Ready does not become shown because a neighbour rendered the scene.
func (s *SharedSceneState) StateForContent(id ContentID) SceneState {
	desired, ok := s.desired[id]
	if !ok {
		return SceneUnavailable
	}
	return min(desired, s.actual)
}

// NeedsTransition reports whether the consolidated desire differs from actual.
func (s *SharedSceneState) NeedsTransition() bool {
	return s.ConsolidatedDesiredState() != s.actual
}

func (s *SharedSceneState) forget(id ContentID) {
	delete(s.desired, id)
}
