package household

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/dais/internal/docstore"
)

// CardSource says which version of a card an entry is displayed with.
type CardSource string

const (
	SourceLive     CardSource = "live"
	SourceSnapshot CardSource = "snapshot"
)

// EntryCard is the card an entry resolves to: either the live card, when it
// still exists, or the copy frozen into the entry. Use ResolveEntryCard to
// obtain one.
type EntryCard interface {
	View() CardWithTasks
	Source() CardSource
	entryCard()
}

// LiveCard is the current state of the card an entry was recorded for.
type LiveCard struct{ Card CardWithTasks }

func (c LiveCard) View() CardWithTasks { return c.Card }
func (LiveCard) Source() CardSource    { return SourceLive }
func (LiveCard) entryCard()            {}

// FrozenCard is the card as it was when the entry was recorded.
type FrozenCard struct{ Snapshot CardSnapshot }

func (c FrozenCard) View() CardWithTasks { return CardFromSnapshot(c.Snapshot) }
func (FrozenCard) Source() CardSource    { return SourceSnapshot }
func (FrozenCard) entryCard()            {}

// ResolveEntryCard prefers the live card so renames show up on older
// entries, and falls back to the entry's snapshot once the card is gone.
func ResolveEntryCard(e Entry, cards []Card, tasks []Task) EntryCard {
	if i := indexCard(cards, e.CardID); i >= 0 {
		return LiveCard{Card: BuildCardWithTasks(cards[i], tasks)}
	}
	return FrozenCard{Snapshot: e.CardSnapshot}
}

// FrozenCard returns the card view captured when the entry was created.
func (e Entry) FrozenCard() CardWithTasks {
	return CardFromSnapshot(e.CardSnapshot)
}

// SnapshotCard freezes a card view into a self-contained copy.
func SnapshotCard(card CardWithTasks) CardSnapshot {
	snap := CardSnapshot{
		ID:        card.ID,
		Title:     card.Title,
		Summary:   cloneString(card.Summary),
		Weekday:   card.Weekday,
		TaskIDs:   make([]string, 0, len(card.Tasks)),
		CreatedAt: card.CreatedAt,
		UpdatedAt: card.UpdatedAt,
		Tasks:     append([]CardTaskAssignment{}, card.Tasks...),
	}
	for _, a := range card.Tasks {
		snap.TaskIDs = append(snap.TaskIDs, a.TaskID)
	}
	return snap
}

// CardFromSnapshot rebuilds a card view from a frozen copy.
func CardFromSnapshot(snap CardSnapshot) CardWithTasks {
	return CardWithTasks{
		ID:        snap.ID,
		Title:     snap.Title,
		Summary:   cloneString(snap.Summary),
		Weekday:   snap.Weekday,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
		Tasks:     append([]CardTaskAssignment{}, snap.Tasks...),
	}
}

// ListEntries returns entries created within [from, to], oldest first.
func (s *Store) ListEntries(ctx context.Context, from, to time.Time) ([]EntryWithCard, error) {
	var out []EntryWithCard
	err := s.docs.View(ctx, func(st State) error {
		var selected []Entry
		for _, e := range st.Entries {
			if !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
				selected = append(selected, e)
			}
		}
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt)
		})
		out = make([]EntryWithCard, 0, len(selected))
		for _, e := range selected {
			out = append(out, withCard(e.clone(), ResolveEntryCard(e, st.Cards, st.Tasks)))
		}
		return nil
	})
	return out, err
}

// GetEntry returns the stored entry with the given id.
func (s *Store) GetEntry(ctx context.Context, id string) (Entry, error) {
	var out Entry
	err := s.docs.View(ctx, func(st State) error {
		for _, e := range st.Entries {
			if e.ID == id {
				out = e.clone()
				return nil
			}
		}
		return ErrEntryNotFound
	})
	return out, err
}

// CreateEntry records a completion of in.Card, freezing the card as given.
func (s *Store) CreateEntry(ctx context.Context, in EntryInput) (EntryWithCard, error) {
	if in.Card.ID == "" {
		return EntryWithCard{}, docstore.Invalid("card", "fehlt")
	}
	entry := Entry{
		ID:               "hh-entry-" + uuid.NewString(),
		CardID:           in.Card.ID,
		UserID:           in.UserID,
		ProgramRunID:     cloneString(in.ProgramRunID),
		CompletedTaskIDs: append([]string{}, in.CompletedTaskIDs...),
		Note:             cloneString(in.Note),
		CreatedAt:        s.docs.Now(),
		CardSnapshot:     SnapshotCard(in.Card),
	}

	_, err := docstore.Update(ctx, s.docs, func(st *State) (struct{}, error) {
		st.Entries = append(st.Entries, entry.clone())
		return struct{}{}, nil
	})
	if err != nil {
		return EntryWithCard{}, err
	}
	return withCard(entry, LiveCard{Card: in.Card.clone()}), nil
}

func withCard(e Entry, card EntryCard) EntryWithCard {
	return EntryWithCard{
		ID:               e.ID,
		CardID:           e.CardID,
		UserID:           e.UserID,
		ProgramRunID:     e.ProgramRunID,
		CompletedTaskIDs: e.CompletedTaskIDs,
		Note:             e.Note,
		CreatedAt:        e.CreatedAt,
		Card:             card.View(),
		CardSource:       card.Source(),
	}
}
