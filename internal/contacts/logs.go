package contacts

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kalambet/dais/internal/docstore"
)

// DefaultLogLimit is used by ListLogs when no positive limit is given.
const DefaultLogLimit = 20

// ListLogs returns up to limit logs for a contact, newest first.
func (s *Store) ListLogs(ctx context.Context, personID string, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	var out []Log
	err := s.docs.View(ctx, func(st State) error {
		out = []Log{}
		for _, l := range st.Logs {
			if l.PersonID == personID {
				l.Note = cloneString(l.Note)
				out = append(out, l)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// AppendLog records an interaction with an existing contact.
func (s *Store) AppendLog(ctx context.Context, in LogInput) (Log, error) {
	if !in.Activity.Valid() {
		return Log{}, docstore.Invalid("activity", "unbekannte Aktivität "+string(in.Activity))
	}
	note := cleanNote(in.Note)
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) (Log, error) {
		if indexPerson(st.Persons, in.PersonID) < 0 {
			return Log{}, ErrPersonNotFound
		}
		l := Log{
			ID:        uuid.NewString(),
			PersonID:  in.PersonID,
			Activity:  in.Activity,
			Note:      note,
			CreatedAt: now,
		}
		st.Logs = append(st.Logs, l)
		l.Note = cloneString(l.Note)
		return l, nil
	})
}
