package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrNotObject is returned by ParseEnvelope for valid JSON whose top level is
// not an object.
var ErrNotObject = errors.New("document is not a JSON object")

var errInvalidJSON = errors.New("parsing document: invalid JSON")

// Envelope is a parsed but untrusted document: its top-level fields plus the
// schema version it declares.
type Envelope struct {
	Version int
	// Stamped reports that the document carried no usable version and
	// Version was set to the current one.
	Stamped bool
	Fields  map[string]json.RawMessage

	log *slog.Logger
}

// maxVersion bounds the versions ParseEnvelope accepts from disk.
const maxVersion = math.MaxInt32

// ParseEnvelope splits raw into top-level fields. A "version" field holding a
// whole number in [0, maxVersion] is kept; anything else is replaced by
// current.
func ParseEnvelope(raw []byte, current int) (*Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) {
		return nil, errInvalidJSON
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	env := &Envelope{Version: current, Stamped: true, Fields: fields, log: slog.Default()}
	if v, ok := fields["version"]; ok {
		var n float64
		if err := json.Unmarshal(v, &n); err == nil && validVersion(n) {
			env.Version = int(n)
			env.Stamped = false
		}
	}
	return env, nil
}

func validVersion(n float64) bool {
	return n >= 0 && n <= maxVersion && n == math.Trunc(n)
}

// Logger returns the logger repairs should be reported to.
func (e *Envelope) Logger() *slog.Logger {
	if e.log == nil {
		return slog.Default()
	}
	return e.log
}

// Set replaces a top-level field with the JSON encoding of v.
func (e *Envelope) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if e.Fields == nil {
		e.Fields = make(map[string]json.RawMessage)
	}
	e.Fields[key] = raw
	return nil
}

// Policy decides how an empty collection is treated during normalization.
type Policy int

const (
	// Primary collections fall back to their default when empty.
	Primary Policy = iota
	// AppendOnly collections keep an empty array as loaded.
	AppendOnly
)

// DecodeCollection decodes the array stored under key. When the field is
// missing, is not an array, or is empty under the Primary policy, the result
// of fallback is returned instead. Elements rejected by check or by JSON
// decoding are dropped with a warning. A non-empty array is never replaced by
// fallback, even when no element survives. check may be nil.
func DecodeCollection[T any](env *Envelope, key string, policy Policy, check func(json.RawMessage) error, fallback func() []T) []T {
	log := env.Logger().With("collection", key)

	raw, ok := env.Fields[key]
	if !ok {
		log.Warn("collection missing, using defaults")
		return fallback()
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		log.Warn("collection is not an array, using defaults")
		return fallback()
	}
	if len(elems) == 0 {
		if policy == Primary {
			log.Warn("collection empty, using defaults")
			return fallback()
		}
		return []T{}
	}

	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		if check != nil {
			if err := check(elem); err != nil {
				log.Warn("dropping invalid record", "index", i, "error", err)
				continue
			}
		}
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			log.Warn("dropping undecodable record", "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		log.Warn("no valid records in collection, keeping it empty", "dropped", len(elems))
	}
	return out
}
