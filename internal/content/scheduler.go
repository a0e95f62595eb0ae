package content

// CommandKind distinguishes deferred controller actions.
type CommandKind int

const (
	// CommandSceneStateChange requests a scene state on behalf of a content.
	CommandSceneStateChange CommandKind = iota
	// CommandRemoveContent drops a content from all registries.
	CommandRemoveContent
)

// String returns a short name for logging.
func (k CommandKind) String() string {
	switch k {
	case CommandSceneStateChange:
		return "scene_state_change"
	case CommandRemoveContent:
		return "remove_content"
	default:
		return "unknown"
	}
}

// Command is an action deferred until Due.
type Command struct {
	Kind    CommandKind
	Content ContentID
	// Target is only meaningful for CommandSceneStateChange.
	Target SceneState
	Due    uint64
}

// scheduler holds pending commands. At most one command per (kind, content)
// exists; scheduling another replaces it, which is also how a transition is
// cancelled. A linear scan is fine for the tens of contents seen in practice.
type scheduler struct {
	commands []Command
}

// schedule replaces any command of the same kind for the same content and
// appends cmd. It returns the replaced command, if any.
func (s *scheduler) schedule(cmd Command) (Command, bool) {
	var (
		replaced Command
		found    bool
	)
	kept := s.commands[:0]
	for _, existing := range s.commands {
		if existing.Kind == cmd.Kind && existing.Content == cmd.Content {
			replaced, found = existing, true
			continue
		}
		kept = append(kept, existing)
	}
	s.commands = append(kept, cmd)
	return replaced, found
}

// removeFor drops every command referencing a content and returns how many
// were dropped.
func (s *scheduler) removeFor(id ContentID) int {
	kept := s.commands[:0]
	for _, cmd := range s.commands {
		if cmd.Content != id {
			kept = append(kept, cmd)
		}
	}
	removed := len(s.commands) - len(kept)
	clear(s.commands[len(kept):])
	s.commands = kept
	return removed
}

// due removes and returns all commands with Due <= now, split into scene
// state changes (in scheduling order) and contents to remove. Removals are
// returned separately so the caller can apply them after the state changes,
// once nothing is iterating the command list any more.
func (s *scheduler) due(now uint64) (changes []Command, removals []ContentID) {
	kept := s.commands[:0]
	for _, cmd := range s.commands {
		if cmd.Due > now {
			kept = append(kept, cmd)
			continue
		}
		switch cmd.Kind {
		case CommandSceneStateChange:
			changes = append(changes, cmd)
		case CommandRemoveContent:
			removals = append(removals, cmd.Content)
		}
	}
	clear(s.commands[len(kept):])
	s.commands = kept
	return changes, removals
}

// pending returns a copy of the queued commands.
func (s *scheduler) pending() []Command {
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *scheduler) len() int {
	return len(s.commands)
}
