package household

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ProgramID is the program a card completion is credited to.
const ProgramID = "environment-household-cards"

// RunCreator records a program run and returns its id and the XP it earned.
type RunCreator interface {
	CreateProgramRun(ctx context.Context, userID, programID string, payload []byte) (runID string, xpEarned int, err error)
}

// Journal receives one HTML line per completed card.
type Journal interface {
	AppendHouseholdLog(ctx context.Context, userID, contentHTML string) error
}

// Completion is a request to mark a card as done.
type Completion struct {
	UserID           string
	CardID           string
	CompletedTaskIDs []string
	Note             string
}

// EntrySummary is the flattened entry shape shown in the household history.
type EntrySummary struct {
	ID               string    `json:"id"`
	CardID           string    `json:"cardId"`
	CardTitle        string    `json:"cardTitle"`
	CardSummary      *string   `json:"cardSummary"`
	Weekday          int       `json:"weekday"`
	CreatedAt        time.Time `json:"createdAt"`
	CompletedTaskIDs []string  `json:"completedTaskIds"`
	CompletedTasks   []string  `json:"completedTasks"`
	Note             *string   `json:"note"`
}

// CompletionResult is returned after a card was completed.
type CompletionResult struct {
	Entry    EntrySummary `json:"entry"`
	XPEarned int          `json:"xpEarned"`
}

type runPayload struct {
	CardID              string          `json:"cardId"`
	CardTitle           string          `json:"cardTitle"`
	CompletedTaskIDs    []string        `json:"completedTaskIds"`
	CompletedTaskLabels []string        `json:"completedTaskLabels"`
	Note                *string         `json:"note"`
	Steps               map[string]bool `json:"steps"`
	Quality             struct {
		CustomRulePassed bool `json:"customRulePassed"`
	} `json:"quality"`
	Runner struct {
		Completed  bool `json:"completed"`
		TotalSteps int  `json:"totalSteps"`
	} `json:"runner"`
}

// Completer turns a card completion into a program run, an entry and a
// journal line.
type Completer struct {
	store   *Store
	runs    RunCreator
	journal Journal
	logger  *slog.Logger
}

// NewCompleter wires a Completer. logger may be nil.
func NewCompleter(store *Store, runs RunCreator, journal Journal, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{store: store, runs: runs, journal: journal, logger: logger}
}

// Complete records that in.UserID finished the card in.CardID. Task ids that
// are not on the card are ignored.
func (c *Completer) Complete(ctx context.Context, in Completion) (CompletionResult, error) {
	card, err := c.store.GetCardWithTasks(ctx, in.CardID)
	if err != nil {
		return CompletionResult{}, err
	}

	completed := ResolveCompletedTaskIDs(card, in.CompletedTaskIDs)
	var note *string
	if n := strings.TrimSpace(in.Note); n != "" {
		note = &n
	}

	payload, err := json.Marshal(buildRunPayload(card, completed, note))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("encoding run payload: %w", err)
	}
	runID, xp, err := c.runs.CreateProgramRun(ctx, in.UserID, ProgramID, payload)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("creating program run: %w", err)
	}

	entry, err := c.store.CreateEntry(ctx, EntryInput{
		Card:             card,
		UserID:           in.UserID,
		ProgramRunID:     &runID,
		CompletedTaskIDs: completed,
		Note:             note,
	})
	if err != nil {
		return CompletionResult{}, err
	}

	summary := Summarize(entry)
	content, err := JournalHTML(card.Title, card.Weekday, summary.CompletedTasks, note)
	if err != nil {
		return CompletionResult{}, err
	}
	if err := c.journal.AppendHouseholdLog(ctx, in.UserID, content); err != nil {
		return CompletionResult{}, fmt.Errorf("appending household log: %w", err)
	}

	c.logger.Info("household card completed",
		"card", card.ID, "entry", entry.ID, "tasks", len(completed), "xp", xp)
	return CompletionResult{Entry: summary, XPEarned: xp}, nil
}

// ResolveCompletedTaskIDs keeps the ids that are on the card, in input order.
func ResolveCompletedTaskIDs(card CardWithTasks, ids []string) []string {
	onCard := make(map[string]bool, len(card.Tasks))
	for _, a := range card.Tasks {
		onCard[a.TaskID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if onCard[id] {
			out = append(out, id)
		}
	}
	return out
}

// Summarize flattens an entry for display. Completed task labels follow the
// card's task order.
func Summarize(e EntryWithCard) EntrySummary {
	labels := []string{}
	for _, a := range e.Card.Tasks {
		if slices.Contains(e.CompletedTaskIDs, a.TaskID) {
			labels = append(labels, a.Task.Label)
		}
	}
	return EntrySummary{
		ID:               e.ID,
		CardID:           e.CardID,
		CardTitle:        e.Card.Title,
		CardSummary:      e.Card.Summary,
		Weekday:          e.Card.Weekday,
		CreatedAt:        e.CreatedAt,
		CompletedTaskIDs: e.CompletedTaskIDs,
		CompletedTasks:   labels,
		Note:             e.Note,
	}
}

func buildRunPayload(card CardWithTasks, completed []string, note *string) runPayload {
	p := runPayload{
		CardID:              card.ID,
		CardTitle:           card.Title,
		CompletedTaskIDs:    completed,
		CompletedTaskLabels: []string{},
		Note:                note,
		Steps:               make(map[string]bool, len(card.Tasks)),
	}
	for _, a := range card.Tasks {
		done := slices.Contains(completed, a.TaskID)
		p.Steps["household-task-"+a.TaskID] = done
		if done {
			p.CompletedTaskLabels = append(p.CompletedTaskLabels, a.Task.Label)
		}
	}
	p.Quality.CustomRulePassed = true
	p.Runner.Completed = true
	p.Runner.TotalSteps = len(card.Tasks)
	return p
}

// JournalHTML renders the journal line for a completed card. Text is escaped.
func JournalHTML(title string, weekday int, tasks []string, note *string) (string, error) {
	heading := element(atom.P,
		element(atom.Strong, text(title)),
		text(" ("+WeekdayLabel(weekday)+")"),
	)

	list := element(atom.Ul)
	if len(tasks) == 0 {
		list.AppendChild(element(atom.Li, text("Keine Aufgaben markiert")))
	}
	for _, t := range tasks {
		list.AppendChild(element(atom.Li, text("✅ "+t)))
	}

	nodes := []*html.Node{heading, list}
	if note != nil && *note != "" {
		nodes = append(nodes, element(atom.P, text(*note)))
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("rendering journal html: %w", err)
		}
	}
	return buf.String(), nil
}

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
