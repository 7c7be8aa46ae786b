package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrProgramNotFound is returned when a run references an unknown program.
var ErrProgramNotFound = errors.New("Programm nicht gefunden")

// Demo user defaults, used when a caller does not name a known user.
const (
	DemoUserEmail = "demo@dais.app"
	DemoUserName  = "DAiS Demo"
)

// HouseholdJournalID is the journal that collects household card completions.
const HouseholdJournalID = "journal-household"

type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}

type Program struct {
	ID       string
	Slug     string
	Name     string
	Category string
	Mode     string
	XPReward int
}

type ProgramRun struct {
	ID        string
	ProgramID string
	UserID    string
	Mode      string
	XPEarned  int
	Answers   string // JSON object stored as text
	CreatedAt time.Time
}

type JournalEntry struct {
	ID          string    `json:"id"`
	JournalID   string    `json:"journalId"`
	UserID      string    `json:"userId"`
	ContentHTML string    `json:"contentHtml"`
	CreatedAt   time.Time `json:"createdAt"`
}
