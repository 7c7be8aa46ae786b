package household

import "time"

// Task is a recurring chore that cards can bundle.
type Task struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Order     int       `json:"order"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card bundles tasks for one weekday (1 = Monday ... 7 = Sunday).
type Card struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   *string   `json:"summary"`
	Weekday   int       `json:"weekday"`
	TaskIDs   []string  `json:"taskIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CardTaskAssignment is one position of a card joined with its task. It is
// derived on read and never stored on its own.
type CardTaskAssignment struct {
	ID     string `json:"id"`
	Order  int    `json:"order"`
	TaskID string `json:"taskId"`
	Task   Task   `json:"task"`
}

// CardWithTasks is a card with its task references resolved.
type CardWithTasks struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Summary   *string              `json:"summary"`
	Weekday   int                  `json:"weekday"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
	Tasks     []CardTaskAssignment `json:"tasks"`
}

// CardSnapshot is a self-contained copy of a CardWithTasks frozen into an
// entry when the card is completed.
type CardSnapshot struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Summary   *string              `json:"summary"`
	Weekday   int                  `json:"weekday"`
	TaskIDs   []string             `json:"taskIds"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
	Tasks     []CardTaskAssignment `json:"tasks"`
}

// Entry records one completion of a card. Entries are append-only.
type Entry struct {
	ID               string       `json:"id"`
	CardID           string       `json:"cardId"`
	UserID           string       `json:"userId"`
	ProgramRunID     *string      `json:"programRunId"`
	CompletedTaskIDs []string     `json:"completedTaskIds"`
	Note             *string      `json:"note"`
	CreatedAt        time.Time    `json:"createdAt"`
	CardSnapshot     CardSnapshot `json:"cardSnapshot"`
}

// EntryWithCard is an entry together with the card it is displayed with.
type EntryWithCard struct {
	ID               string        `json:"id"`
	CardID           string        `json:"cardId"`
	UserID           string        `json:"userId"`
	ProgramRunID     *string       `json:"programRunId"`
	CompletedTaskIDs []string      `json:"completedTaskIds"`
	Note             *string       `json:"note"`
	CreatedAt        time.Time     `json:"createdAt"`
	Card             CardWithTasks `json:"card"`
	CardSource       CardSource    `json:"cardSource"`
}

// State is the household document as stored on disk.
type State struct {
	Version int     `json:"version"`
	Tasks   []Task  `json:"tasks"`
	Cards   []Card  `json:"cards"`
	Entries []Entry `json:"entries"`
}

// TaskPatch lists the task fields to change. Nil fields are left alone.
type TaskPatch struct {
	Label  *string `json:"label,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// CardInput describes a new card.
type CardInput struct {
	Title   string   `json:"title"`
	Summary *string  `json:"summary"`
	Weekday int      `json:"weekday"`
	TaskIDs []string `json:"taskIds"`
}

// CardPatch lists the card fields to change. Nil fields are left alone.
// ClearSummary removes the summary.
type CardPatch struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title,omitempty"`
	Summary      *string   `json:"summary,omitempty"`
	ClearSummary bool      `json:"clearSummary,omitempty"`
	Weekday      *int      `json:"weekday,omitempty"`
	TaskIDs      *[]string `json:"taskIds,omitempty"`
}

// EntryInput describes a completed card to record.
type EntryInput struct {
	Card             CardWithTasks
	UserID           string
	ProgramRunID     *string
	CompletedTaskIDs []string
	Note             *string
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Version: s.Version,
		Tasks:   append([]Task(nil), s.Tasks...),
		Cards:   make([]Card, len(s.Cards)),
		Entries: make([]Entry, len(s.Entries)),
	}
	if s.Tasks != nil && out.Tasks == nil {
		out.Tasks = []Task{}
	}
	for i, c := range s.Cards {
		out.Cards[i] = c.clone()
	}
	for i, e := range s.Entries {
		out.Entries[i] = e.clone()
	}
	return out
}

func (c Card) clone() Card {
	c.Summary = cloneString(c.Summary)
	c.TaskIDs = append([]string{}, c.TaskIDs...)
	return c
}

func (e Entry) clone() Entry {
	e.ProgramRunID = cloneString(e.ProgramRunID)
	e.Note = cloneString(e.Note)
	e.CompletedTaskIDs = append([]string{}, e.CompletedTaskIDs...)
	e.CardSnapshot = e.CardSnapshot.clone()
	return e
}

func (s CardSnapshot) clone() CardSnapshot {
	s.Summary = cloneString(s.Summary)
	s.TaskIDs = append([]string{}, s.TaskIDs...)
	s.Tasks = append([]CardTaskAssignment{}, s.Tasks...)
	return s
}

func (c CardWithTasks) clone() CardWithTasks {
	c.Summary = cloneString(c.Summary)
	c.Tasks = append([]CardTaskAssignment{}, c.Tasks...)
	return c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
