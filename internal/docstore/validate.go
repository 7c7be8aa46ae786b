package docstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Validator checks JSON records against definitions in a CUE schema.
// A cue.Context is not safe for concurrent use, so checks are serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
	defs map[string]cue.Value
}

// NewValidator compiles src, which must declare every definition later
// passed to Check (for example "#Task").
func NewValidator(name, src string) (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename(name))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return &Validator{ctx: ctx, root: root, defs: make(map[string]cue.Value)}, nil
}

// MustValidator is like NewValidator but panics on a schema error. It is
// meant for schemas embedded in the binary.
func MustValidator(name, src string) *Validator {
	v, err := NewValidator(name, src)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate unifies raw with the named definition and requires a concrete
// result.
func (v *Validator) Validate(def string, raw []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	schema, ok := v.defs[def]
	if !ok {
		schema = v.root.LookupPath(cue.ParsePath(def))
		if !schema.Exists() {
			return fmt.Errorf("schema has no definition %s", def)
		}
		v.defs[def] = schema
	}

	data := v.ctx.CompileBytes(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("compiling record: %w", err)
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: %w", def, err)
	}
	return nil
}

// Check returns a record check for DecodeCollection bound to def.
func (v *Validator) Check(def string) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		return v.Validate(def, raw)
	}
}
