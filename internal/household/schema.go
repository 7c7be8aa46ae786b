package household

import (
	_ "embed"

	"github.com/kalambet/dais/internal/docstore"
)

// SchemaVersion is stamped into every household document written.
const SchemaVersion = 1

//go:embed schema.cue
var schemaCUE string

var validator = docstore.MustValidator("household.cue", schemaCUE)

// Schema describes the household document for docstore.
func Schema() docstore.Schema[State] {
	return docstore.Schema[State]{
		Name:      "household",
		Version:   SchemaVersion,
		Default:   DefaultState,
		Normalize: normalize,
		Clone:     State.Clone,
		Stamp:     func(s *State, v int) { s.Version = v },
	}
}

// normalize repairs each collection on its own: tasks and cards fall back to
// the seeds when missing or empty, entries only when missing or unreadable.
func normalize(env *docstore.Envelope) State {
	var base *State
	defaults := func() State {
		if base == nil {
			d := DefaultState()
			base = &d
		}
		return *base
	}

	return State{
		Version: env.Version,
		Tasks: docstore.DecodeCollection(env, "tasks", docstore.Primary, validator.Check("#Task"),
			func() []Task { return defaults().Tasks }),
		Cards: docstore.DecodeCollection(env, "cards", docstore.Primary, validator.Check("#Card"),
			func() []Card { return defaults().Cards }),
		Entries: docstore.DecodeCollection(env, "entries", docstore.AppendOnly, validator.Check("#Entry"),
			func() []Entry { return defaults().Entries }),
	}
}
