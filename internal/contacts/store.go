// Package contacts stores people to keep in touch with, planned contact
// activities and an interaction log in a single JSON document.
package contacts

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kalambet/dais/internal/docstore"
)

// ErrPersonNotFound is returned for operations on an unknown contact.
var ErrPersonNotFound = docstore.NotFound("Kontakt nicht gefunden.")

// Store is the contacts fallback store.
type Store struct {
	docs *docstore.Store[State]
}

// Open returns a Store backed by the JSON file at path.
func Open(path string, opts ...docstore.Option) *Store {
	return &Store{docs: docstore.Open(path, Schema(), opts...)}
}

// Docs exposes the underlying document store.
func (s *Store) Docs() *docstore.Store[State] { return s.docs }

// ListContacts returns every contact with assignments, sorted by name.
func (s *Store) ListContacts(ctx context.Context) ([]PersonDefinition, error) {
	var out []PersonDefinition
	err := s.docs.View(ctx, func(st State) error {
		out = listDefinitions(st)
		return nil
	})
	return out, err
}

func listDefinitions(st State) []PersonDefinition {
	persons := append([]Person{}, st.Persons...)
	col := collate.New(language.German)
	sort.SliceStable(persons, func(i, j int) bool {
		return col.CompareString(persons[i].Name, persons[j].Name) < 0
	})
	out := make([]PersonDefinition, 0, len(persons))
	for _, p := range persons {
		out = append(out, ToPersonDefinition(p, st.Assignments))
	}
	return out
}

// ContactExists reports whether a contact with id is stored.
func (s *Store) ContactExists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.docs.View(ctx, func(st State) error {
		found = indexPerson(st.Persons, id) >= 0
		return nil
	})
	return found, err
}

// CreateContact stores a new contact without assignments.
func (s *Store) CreateContact(ctx context.Context, in ContactInput) (PersonDefinition, error) {
	name, err := cleanText("name", in.Name)
	if err != nil {
		return PersonDefinition{}, err
	}
	if !in.Relation.Valid() {
		return PersonDefinition{}, docstore.Invalid("relation", "unbekannte Beziehung "+string(in.Relation))
	}
	note := cleanNote(in.Note)
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) (PersonDefinition, error) {
		p := Person{
			ID:        uuid.NewString(),
			Name:      name,
			Relation:  in.Relation,
			Note:      note,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.Persons = append(st.Persons, p)
		return ToPersonDefinition(p, st.Assignments), nil
	})
}

// UpdateContact applies patch to the contact with id.
func (s *Store) UpdateContact(ctx context.Context, id string, patch ContactPatch) (PersonDefinition, error) {
	var name string
	if patch.Name != nil {
		var err error
		if name, err = cleanText("name", *patch.Name); err != nil {
			return PersonDefinition{}, err
		}
	}
	if patch.Relation != nil && !patch.Relation.Valid() {
		return PersonDefinition{}, docstore.Invalid("relation", "unbekannte Beziehung "+string(*patch.Relation))
	}
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) (PersonDefinition, error) {
		i := indexPerson(st.Persons, id)
		if i < 0 {
			return PersonDefinition{}, ErrPersonNotFound
		}
		p := &st.Persons[i]
		if patch.Name != nil {
			p.Name = name
		}
		if patch.Relation != nil {
			p.Relation = *patch.Relation
		}
		switch {
		case patch.ClearNote:
			p.Note = nil
		case patch.Note != nil:
			p.Note = cleanNote(patch.Note)
		}
		p.UpdatedAt = now
		return ToPersonDefinition(*p, st.Assignments), nil
	})
}

// DeleteContact removes a contact with all of its assignments and logs.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	_, err := docstore.Update(ctx, s.docs, func(st *State) (struct{}, error) {
		i := indexPerson(st.Persons, id)
		if i < 0 {
			return struct{}{}, ErrPersonNotFound
		}
		st.Persons = append(st.Persons[:i], st.Persons[i+1:]...)

		assignments := st.Assignments[:0]
		for _, a := range st.Assignments {
			if a.PersonID != id {
				assignments = append(assignments, a)
			}
		}
		st.Assignments = assignments

		logs := st.Logs[:0]
		for _, l := range st.Logs {
			if l.PersonID != id {
				logs = append(logs, l)
			}
		}
		st.Logs = logs
		return struct{}{}, nil
	})
	return err
}

// SetAssignment enables or disables one (activity, cadence) plan for a
// contact. Enabling an existing plan only refreshes its UpdatedAt. The
// contact's full assignment list is returned either way.
func (s *Store) SetAssignment(ctx context.Context, personID string, activity Activity, cadence Cadence, enabled bool) ([]Assignment, error) {
	if !activity.Valid() {
		return nil, docstore.Invalid("activity", "unbekannte Aktivität "+string(activity))
	}
	if !cadence.Valid() {
		return nil, docstore.Invalid("cadence", "unbekannter Rhythmus "+string(cadence))
	}
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) ([]Assignment, error) {
		if indexPerson(st.Persons, personID) < 0 {
			return nil, ErrPersonNotFound
		}
		existing := -1
		for i, a := range st.Assignments {
			if a.PersonID == personID && a.Activity == activity && a.Cadence == cadence {
				existing = i
				break
			}
		}
		switch {
		case enabled && existing < 0:
			st.Assignments = append(st.Assignments, Assignment{
				ID:        uuid.NewString(),
				PersonID:  personID,
				Activity:  activity,
				Cadence:   cadence,
				CreatedAt: now,
				UpdatedAt: now,
			})
		case enabled:
			st.Assignments[existing].UpdatedAt = now
		case existing >= 0:
			st.Assignments = append(st.Assignments[:existing], st.Assignments[existing+1:]...)
		}
		return assignmentsFor(personID, st.Assignments), nil
	})
}

// ToPersonDefinition joins a person with their assignments.
func ToPersonDefinition(p Person, assignments []Assignment) PersonDefinition {
	p.Note = cloneString(p.Note)
	return PersonDefinition{Person: p, Assignments: assignmentsFor(p.ID, assignments)}
}

func assignmentsFor(personID string, all []Assignment) []Assignment {
	out := []Assignment{}
	for _, a := range all {
		if a.PersonID == personID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cadence != out[j].Cadence {
			return out[i].Cadence < out[j].Cadence
		}
		return out[i].Activity < out[j].Activity
	})
	return out
}

func indexPerson(persons []Person, id string) int {
	for i := range persons {
		if persons[i].ID == id {
			return i
		}
	}
	return -1
}

func cleanText(field, v string) (string, error) {
	v = norm.NFC.String(strings.TrimSpace(v))
	if v == "" {
		return "", docstore.Invalid(field, "darf nicht leer sein")
	}
	return v, nil
}

func cleanNote(p *string) *string {
	if p == nil {
		return nil
	}
	v := norm.NFC.String(strings.TrimSpace(*p))
	if v == "" {
		return nil
	}
	return &v
}
