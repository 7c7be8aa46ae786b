package contacts

import (
	_ "embed"

	"github.com/kalambet/dais/internal/docstore"
)

// SchemaVersion is stamped into every contacts document written.
const SchemaVersion = 1

//go:embed schema.cue
var schemaCUE string

var validator = docstore.MustValidator("contacts.cue", schemaCUE)

// Schema describes the contacts document for docstore.
func Schema() docstore.Schema[State] {
	return docstore.Schema[State]{
		Name:      "contacts",
		Version:   SchemaVersion,
		Default:   DefaultState,
		Normalize: normalize,
		Clone:     State.Clone,
		Stamp:     func(s *State, v int) { s.Version = v },
	}
}

// normalize falls back to the seeds for persons when missing or empty;
// assignments and logs may legitimately be empty.
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
		Persons: docstore.DecodeCollection(env, "persons", docstore.Primary, validator.Check("#Person"),
			func() []Person { return defaults().Persons }),
		Assignments: docstore.DecodeCollection(env, "assignments", docstore.AppendOnly, validator.Check("#Assignment"),
			func() []Assignment { return defaults().Assignments }),
		Logs: docstore.DecodeCollection(env, "logs", docstore.AppendOnly, validator.Check("#Log"),
			func() []Log { return defaults().Logs }),
	}
}
