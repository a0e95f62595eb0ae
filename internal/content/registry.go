package content

import (
	"maps"
	"slices"
)

// category is a configured placement slot.
type category struct {
	size     Size
	display  DisplayID
	assigned map[ContentID]struct{}
}

// contentEntry is the controller's record of one offered content.
type contentEntry struct {
	category       CategoryID
	dcsmReady      bool
	readyRequested bool
	readyDeadline  uint64
}

// scene is a renderer scene with the contents bound to it.
type scene struct {
	contents map[ContentID]struct{}
	state    SharedSceneState
}

// Registries own entities by ID. All cross-references are IDs resolved
// through these tables so removal never leaves a dangling link.

type categoryTable map[CategoryID]*category

type contentTable map[ContentID]*contentEntry

type sceneTable map[SceneID]*scene

// getOrCreate returns the scene for id, creating an empty one on first use.
func (t sceneTable) getOrCreate(id SceneID) *scene {
	s, ok := t[id]
	if !ok {
		s = &scene{
			contents: make(map[ContentID]struct{}),
			state:    newSharedSceneState(),
		}
		t[id] = s
	}
	return s
}

// sceneOf returns the scene a content is bound to.
func (t sceneTable) sceneOf(id ContentID) (SceneID, bool) {
	for sceneID, s := range t {
		if _, ok := s.contents[id]; ok {
			return sceneID, true
		}
	}
	return 0, false
}

// contentsOf returns the contents bound to a scene in ascending order.
func (t sceneTable) contentsOf(id SceneID) []ContentID {
	s, ok := t[id]
	if !ok {
		return nil
	}
	return sortedIDs(s.contents)
}

// detach unbinds a content from every scene and drops its recorded desire.
func (t sceneTable) detach(id ContentID) {
	for _, s := range t {
		if _, ok := s.contents[id]; ok {
			delete(s.contents, id)
			s.state.forget(id)
		}
	}
}

// sortedIDs returns the keys of an ID set in ascending order.
func sortedIDs[K ~uint64, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
