// Package docstore implements a single-file JSON document store with
// snapshot/mutate/write transactions.
//
// A Store owns one file and an in-memory copy of its decoded state. Reads are
// served from that copy once it is loaded. Update clones the state, runs a
// mutator on the clone, writes the clone to disk and then publishes it as the
// new in-memory state. The published value is never mutated afterwards.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is the root of every "record does not exist" error returned by
// stores built on this package.
var ErrNotFound = errors.New("not found")

// Migration upgrades a document from one schema version to the next.
type Migration func(*Envelope) error

// Schema describes the document a Store holds.
type Schema[S any] struct {
	// Name identifies the store in logs and metrics.
	Name string
	// Version is stamped into every document written.
	Version int
	// Default builds the seeded document used on cold start.
	Default func() S
	// Normalize turns an untrusted envelope into a usable document,
	// falling back to defaults per collection.
	Normalize func(*Envelope) S
	// Clone returns a deep copy sharing no memory with its argument.
	Clone func(S) S
	// Stamp records version in the document.
	Stamp func(*S, int)
	// Migrations maps a version to the step that upgrades it to version+1.
	Migrations map[int]Migration
}

// Store is a handle to one JSON document on disk.
type Store[S any] struct {
	path   string
	schema Schema[S]
	opts   options

	writeMu sync.Mutex

	mu    sync.RWMutex
	cache *S
	loads singleflight.Group
}

// Open returns a Store for the document at path. Nothing is read until the
// first operation.
func Open[S any](path string, schema Schema[S], opts ...Option) *Store[S] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S]{path: path, schema: schema, opts: o}
}

// Path returns the backing file path.
func (s *Store[S]) Path() string { return s.path }

// Now returns the current time from the store clock, in UTC with millisecond
// precision so timestamps survive a round trip through the file unchanged.
func (s *Store[S]) Now() time.Time {
	return s.opts.clock.Now().UTC().Truncate(time.Millisecond)
}

// Clock returns the clock the store stamps records with.
func (s *Store[S]) Clock() Clock { return s.opts.clock }

// Logger returns the store logger.
func (s *Store[S]) Logger() *slog.Logger {
	return s.opts.logger
}

// Reset drops the in-memory state so the next operation reloads the file.
func (s *Store[S]) Reset() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// View calls fn with the published state. fn must not modify it.
func (s *Store[S]) View(ctx context.Context, fn func(S) error) error {
	state, err := s.read(ctx)
	if err != nil {
		return err
	}
	return fn(state)
}

// Snapshot returns a deep copy of the current state.
func (s *Store[S]) Snapshot(ctx context.Context) (S, error) {
	state, err := s.read(ctx)
	if err != nil {
		var zero S
		return zero, err
	}
	return s.schema.Clone(state), nil
}

// Update runs mutate against a private copy of the current state. If mutate
// returns an error nothing is written and the published state is unchanged.
// Otherwise the copy is persisted with the current schema version and becomes
// the published state, and mutate's result is returned.
func Update[S, T any](ctx context.Context, s *Store[S], mutate func(draft *S) (T, error)) (T, error) {
	var zero T
	if s.opts.serialize {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	start := time.Now()

	current, err := s.read(ctx)
	if err != nil {
		s.opts.metrics.observeUpdate(s.schema.Name, "error", time.Since(start))
		return zero, err
	}

	draft := s.schema.Clone(current)
	result, err := mutate(&draft)
	if err != nil {
		s.opts.metrics.observeUpdate(s.schema.Name, "aborted", time.Since(start))
		return zero, err
	}

	if err := s.write(ctx, draft); err != nil {
		s.opts.metrics.observeUpdate(s.schema.Name, "error", time.Since(start))
		return zero, err
	}
	s.opts.metrics.observeUpdate(s.schema.Name, "ok", time.Since(start))
	return result, nil
}

// read returns the published state, loading it on first use. Concurrent
// cold loads share one file read.
func (s *Store[S]) read(ctx context.Context) (S, error) {
	s.mu.RLock()
	cached := s.cache
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	v, err, _ := s.loads.Do(s.path, func() (any, error) {
		s.mu.RLock()
		cached := s.cache
		s.mu.RUnlock()
		if cached != nil {
			return *cached, nil
		}

		state, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.cache == nil {
			s.cache = &state
		} else {
			state = *s.cache
		}
		s.mu.Unlock()
		return state, nil
	})
	if err != nil {
		var zero S
		return zero, err
	}
	return v.(S), nil
}

func (s *Store[S]) load(ctx context.Context) (S, error) {
	var zero S
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	log := s.opts.logger.With("store", s.schema.Name, "path", s.path)

	raw, err := s.opts.fs.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("store file missing, seeding defaults")
		return s.seed(ctx, "seed")
	}
	if err != nil {
		return zero, fmt.Errorf("reading %s store: %w", s.schema.Name, err)
	}

	env, err := ParseEnvelope(raw, s.schema.Version)
	if errors.Is(err, ErrNotObject) {
		log.Warn("store file is not an object, using defaults")
		s.opts.metrics.observeLoad(s.schema.Name, "default")
		state := s.schema.Default()
		s.schema.Stamp(&state, s.schema.Version)
		return state, nil
	}
	if err != nil {
		log.Warn("store file unreadable, reseeding", "error", err)
		return s.seed(ctx, "reseed")
	}
	env.log = log

	if err := s.migrate(env); err != nil {
		return zero, err
	}

	s.opts.metrics.observeLoad(s.schema.Name, "file")
	return s.schema.Normalize(env), nil
}

func (s *Store[S]) migrate(env *Envelope) error {
	if env.Version > s.schema.Version {
		env.Logger().Warn("store file is newer than this binary, loading best effort",
			"file_version", env.Version, "version", s.schema.Version)
		return nil
	}
	if first, ok := s.firstMigration(); ok && env.Version < first {
		env.Version = first
	}
	for env.Version < s.schema.Version {
		step, ok := s.schema.Migrations[env.Version]
		if ok {
			if err := step(env); err != nil {
				return fmt.Errorf("migrating %s store from version %d: %w", s.schema.Name, env.Version, err)
			}
			env.Logger().Info("migrated store", "from", env.Version, "to", env.Version+1)
		}
		env.Version++
	}
	return nil
}

// firstMigration returns the lowest version with a registered step.
func (s *Store[S]) firstMigration() (int, bool) {
	if len(s.schema.Migrations) == 0 {
		return 0, false
	}
	return slices.Min(slices.Collect(maps.Keys(s.schema.Migrations))), true
}

func (s *Store[S]) seed(ctx context.Context, source string) (S, error) {
	state := s.schema.Default()
	if err := s.persist(ctx, &state); err != nil {
		var zero S
		return zero, err
	}
	s.opts.metrics.observeLoad(s.schema.Name, source)
	return state, nil
}

func (s *Store[S]) write(ctx context.Context, draft S) error {
	if err := s.persist(ctx, &draft); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache = &draft
	s.mu.Unlock()
	return nil
}

func (s *Store[S]) persist(ctx context.Context, state *S) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.schema.Stamp(state, s.schema.Version)
	data, err := Encode(*state)
	if err != nil {
		return fmt.Errorf("encoding %s store: %w", s.schema.Name, err)
	}
	if err := s.opts.fs.WriteFile(s.path, data); err != nil {
		return fmt.Errorf("writing %s store: %w", s.schema.Name, err)
	}
	return nil
}

// Encode renders v in the on-disk format: two-space indented JSON without
// HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
