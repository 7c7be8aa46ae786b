// Package household stores chore tasks, weekday cards and completion entries
// in a single JSON document.
package household

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/kalambet/dais/internal/docstore"
)

var (
	ErrTaskNotFound  = docstore.NotFound("Task nicht gefunden.")
	ErrCardNotFound  = docstore.NotFound("Karte nicht gefunden.")
	ErrEntryNotFound = docstore.NotFound("Eintrag nicht gefunden.")
)

// Store is the household fallback store.
type Store struct {
	docs *docstore.Store[State]
}

// Open returns a Store backed by the JSON file at path.
func Open(path string, opts ...docstore.Option) *Store {
	return &Store{docs: docstore.Open(path, Schema(), opts...)}
}

// Docs exposes the underlying document store.
func (s *Store) Docs() *docstore.Store[State] { return s.docs }

// ListTasks returns all tasks sorted by order.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	err := s.docs.View(ctx, func(st State) error {
		tasks = append([]Task{}, st.Tasks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

// CreateTask appends an active task after the current last position.
func (s *Store) CreateTask(ctx context.Context, label string) (Task, error) {
	label, err := cleanText("label", label)
	if err != nil {
		return Task{}, err
	}
	now := s.docs.Now()
	return docstore.Update(ctx, s.docs, func(st *State) (Task, error) {
		next := -1
		for _, t := range st.Tasks {
			next = max(next, t.Order)
		}
		task := Task{
			ID:        "hh-task-" + uuid.NewString(),
			Label:     label,
			Order:     next + 1,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.Tasks = append(st.Tasks, task)
		return task, nil
	})
}

// UpdateTask applies patch to the task with the given id.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error) {
	var label string
	if patch.Label != nil {
		var err error
		if label, err = cleanText("label", *patch.Label); err != nil {
			return Task{}, err
		}
	}
	now := s.docs.Now()
	return docstore.Update(ctx, s.docs, func(st *State) (Task, error) {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return Task{}, ErrTaskNotFound
		}
		task := &st.Tasks[i]
		if patch.Label != nil {
			task.Label = label
		}
		if patch.Active != nil {
			task.Active = *patch.Active
		}
		task.UpdatedAt = now
		return *task, nil
	})
}

// ReorderTasks sets the order of each known task in ids to its index in ids.
// Unknown ids are skipped and a repeated id takes its last index. Tasks
// missing from ids are placed after every index of ids, keeping their
// previous relative order.
func (s *Store) ReorderTasks(ctx context.Context, ids []string) ([]Task, error) {
	_, err := docstore.Update(ctx, s.docs, func(st *State) (struct{}, error) {
		position := make(map[string]int, len(ids))
		for i, id := range ids {
			position[id] = i
		}

		var rest []int
		for i := range st.Tasks {
			if p, ok := position[st.Tasks[i].ID]; ok {
				st.Tasks[i].Order = p
			} else {
				rest = append(rest, i)
			}
		}
		sort.SliceStable(rest, func(a, b int) bool {
			return st.Tasks[rest[a]].Order < st.Tasks[rest[b]].Order
		})
		for k, i := range rest {
			st.Tasks[i].Order = len(ids) + k
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListTasks(ctx)
}

// DeleteTask removes a task and strips it from every card. Cards are kept
// even when they end up empty.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := docstore.Update(ctx, s.docs, func(st *State) (struct{}, error) {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return struct{}{}, ErrTaskNotFound
		}
		st.Tasks = append(st.Tasks[:i], st.Tasks[i+1:]...)
		for c := range st.Cards {
			st.Cards[c].TaskIDs = removeString(st.Cards[c].TaskIDs, id)
		}
		return struct{}{}, nil
	})
	return err
}

func indexTask(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func removeString(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func cleanText(field, v string) (string, error) {
	v = norm.NFC.String(strings.TrimSpace(v))
	if v == "" {
		return "", docstore.Invalid(field, "darf nicht leer sein")
	}
	return v, nil
}
