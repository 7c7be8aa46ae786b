package household

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kalambet/dais/internal/docstore"
)

// PlaceholderLabel is shown for a card position whose task no longer exists.
const PlaceholderLabel = "Aufgabe"

// ListCardsWithTasks returns every card joined with its tasks, ordered by
// weekday and then title.
func (s *Store) ListCardsWithTasks(ctx context.Context) ([]CardWithTasks, error) {
	var out []CardWithTasks
	err := s.docs.View(ctx, func(st State) error {
		cards := append([]Card{}, st.Cards...)
		sortCards(cards)
		out = make([]CardWithTasks, 0, len(cards))
		for _, c := range cards {
			out = append(out, BuildCardWithTasks(c, st.Tasks))
		}
		return nil
	})
	return out, err
}

// GetCardWithTasks returns one card joined with its tasks.
func (s *Store) GetCardWithTasks(ctx context.Context, id string) (CardWithTasks, error) {
	var out CardWithTasks
	err := s.docs.View(ctx, func(st State) error {
		i := indexCard(st.Cards, id)
		if i < 0 {
			return ErrCardNotFound
		}
		out = BuildCardWithTasks(st.Cards[i], st.Tasks)
		return nil
	})
	return out, err
}

// CreateCard stores a new card. Task ids that do not exist, and repeats, are
// dropped.
func (s *Store) CreateCard(ctx context.Context, in CardInput) (CardWithTasks, error) {
	title, err := cleanText("title", in.Title)
	if err != nil {
		return CardWithTasks{}, err
	}
	if err := checkWeekday(in.Weekday); err != nil {
		return CardWithTasks{}, err
	}
	summary := cleanSummary(in.Summary)
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) (CardWithTasks, error) {
		card := Card{
			ID:        "hh-card-" + uuid.NewString(),
			Title:     title,
			Summary:   summary,
			Weekday:   in.Weekday,
			TaskIDs:   SanitizeTaskIDs(in.TaskIDs, st.Tasks),
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.Cards = append(st.Cards, card)
		return BuildCardWithTasks(card, st.Tasks), nil
	})
}

// UpdateCard applies patch to the card identified by patch.ID.
func (s *Store) UpdateCard(ctx context.Context, patch CardPatch) (CardWithTasks, error) {
	var title string
	if patch.Title != nil {
		var err error
		if title, err = cleanText("title", *patch.Title); err != nil {
			return CardWithTasks{}, err
		}
	}
	if patch.Weekday != nil {
		if err := checkWeekday(*patch.Weekday); err != nil {
			return CardWithTasks{}, err
		}
	}
	now := s.docs.Now()

	return docstore.Update(ctx, s.docs, func(st *State) (CardWithTasks, error) {
		i := indexCard(st.Cards, patch.ID)
		if i < 0 {
			return CardWithTasks{}, ErrCardNotFound
		}
		card := &st.Cards[i]
		if patch.Title != nil {
			card.Title = title
		}
		switch {
		case patch.ClearSummary:
			card.Summary = nil
		case patch.Summary != nil:
			card.Summary = cleanSummary(patch.Summary)
		}
		if patch.Weekday != nil {
			card.Weekday = *patch.Weekday
		}
		if patch.TaskIDs != nil {
			card.TaskIDs = SanitizeTaskIDs(*patch.TaskIDs, st.Tasks)
		}
		card.UpdatedAt = now
		return BuildCardWithTasks(*card, st.Tasks), nil
	})
}

// DeleteCard removes a card together with every entry recorded for it.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	_, err := docstore.Update(ctx, s.docs, func(st *State) (struct{}, error) {
		i := indexCard(st.Cards, id)
		if i < 0 {
			return struct{}{}, ErrCardNotFound
		}
		st.Cards = append(st.Cards[:i], st.Cards[i+1:]...)
		entries := st.Entries[:0]
		for _, e := range st.Entries {
			if e.CardID != id {
				entries = append(entries, e)
			}
		}
		st.Entries = entries
		return struct{}{}, nil
	})
	return err
}

// SanitizeTaskIDs keeps the ids that name an existing task, dropping repeats
// and preserving first-occurrence order. Applying it twice changes nothing.
func SanitizeTaskIDs(ids []string, tasks []Task) []string {
	valid := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		valid[t.ID] = true
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !valid[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// BuildCardWithTasks resolves the card's task ids in order. A dangling id
// yields a placeholder task labelled PlaceholderLabel that carries the card's
// timestamps.
func BuildCardWithTasks(card Card, tasks []Task) CardWithTasks {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	view := CardWithTasks{
		ID:        card.ID,
		Title:     card.Title,
		Summary:   cloneString(card.Summary),
		Weekday:   card.Weekday,
		CreatedAt: card.CreatedAt,
		UpdatedAt: card.UpdatedAt,
		Tasks:     make([]CardTaskAssignment, 0, len(card.TaskIDs)),
	}
	for i, taskID := range card.TaskIDs {
		task, ok := byID[taskID]
		if !ok {
			task = Task{
				ID:        taskID,
				Label:     PlaceholderLabel,
				Order:     i,
				Active:    true,
				CreatedAt: card.CreatedAt,
				UpdatedAt: card.UpdatedAt,
			}
		}
		view.Tasks = append(view.Tasks, CardTaskAssignment{
			ID:     assignmentID(card.ID, taskID, i),
			Order:  i,
			TaskID: taskID,
			Task:   task,
		})
	}
	return view
}

func assignmentID(cardID, taskID string, position int) string {
	return fmt.Sprintf("%s-%s-%d", cardID, taskID, position)
}

func sortCards(cards []Card) {
	col := collate.New(language.German)
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Weekday != cards[j].Weekday {
			return cards[i].Weekday < cards[j].Weekday
		}
		return col.CompareString(cards[i].Title, cards[j].Title) < 0
	})
}

func indexCard(cards []Card, id string) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

func checkWeekday(d int) error {
	if d < 1 || d > 7 {
		return docstore.Invalid("weekday", "muss zwischen 1 und 7 liegen")
	}
	return nil
}

// cleanSummary trims the summary; blank summaries are stored as absent.
func cleanSummary(p *string) *string {
	if p == nil {
		return nil
	}
	v, err := cleanText("summary", *p)
	if err != nil {
		return nil
	}
	return &v
}
