package contacts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStatsWindowDays is the look-back window used for the contacts
// overview.
const DefaultStatsWindowDays = 30

// ActivityShare is one activity's part of a contact's interactions.
type ActivityShare struct {
	Activity   Activity `json:"activity"`
	Count      int      `json:"count"`
	Percentage int      `json:"percentage"`
}

// StatsEntry aggregates one contact's logs within the window.
type StatsEntry struct {
	PersonID     string           `json:"personId"`
	Total        int              `json:"total"`
	Counts       map[Activity]int `json:"counts"`
	Distribution []ActivityShare  `json:"distribution"`
}

// Payload is everything the contacts overview needs in one read.
type Payload struct {
	Persons []PersonDefinition `json:"persons"`
	Stats   []StatsEntry       `json:"stats"`
}

// GetStats counts each contact's logs since local midnight windowDays days
// ago (at least one day). Every activity is reported, including zeros.
func (s *Store) GetStats(ctx context.Context, personIDs []string, windowDays int) ([]StatsEntry, error) {
	var out []StatsEntry
	err := s.docs.View(ctx, func(st State) error {
		out = aggregate(st.Logs, personIDs, StatsCutoff(s.docs.Clock().Now(), windowDays))
		return nil
	})
	return out, err
}

// LoadPayload returns all contacts and their stats from the same state.
func (s *Store) LoadPayload(ctx context.Context, windowDays int) (Payload, error) {
	var out Payload
	err := s.docs.View(ctx, func(st State) error {
		out.Persons = listDefinitions(st)
		ids := make([]string, 0, len(out.Persons))
		for _, p := range out.Persons {
			ids = append(ids, p.ID)
		}
		out.Stats = aggregate(st.Logs, ids, StatsCutoff(s.docs.Clock().Now(), windowDays))
		return nil
	})
	return out, err
}

// StatsCutoff truncates now to midnight in its location and steps back
// max(windowDays, 1) days.
func StatsCutoff(now time.Time, windowDays int) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -max(windowDays, 1))
}

func aggregate(logs []Log, personIDs []string, cutoff time.Time) []StatsEntry {
	out := make([]StatsEntry, 0, len(personIDs))
	for _, id := range personIDs {
		counts := make(map[Activity]int, len(Activities))
		for _, a := range Activities {
			counts[a] = 0
		}
		for _, l := range logs {
			if l.PersonID == id && !l.CreatedAt.Before(cutoff) {
				counts[l.Activity]++
			}
		}
		total := 0
		for _, a := range Activities {
			total += counts[a]
		}
		out = append(out, StatsEntry{
			PersonID:     id,
			Total:        total,
			Counts:       counts,
			Distribution: Distribution(counts),
		})
	}
	return out
}

// Distribution turns per-activity counts into shares in Activities order.
// Percentages are round(100 * count / total), half up; all zero when total
// is zero.
func Distribution(counts map[Activity]int) []ActivityShare {
	total := 0
	for _, a := range Activities {
		total += counts[a]
	}
	out := make([]ActivityShare, 0, len(Activities))
	for _, a := range Activities {
		share := ActivityShare{Activity: a, Count: counts[a]}
		if total > 0 {
			share.Percentage = int(decimal.NewFromInt(int64(100 * counts[a])).
				Div(decimal.NewFromInt(int64(total))).
				Round(0).
				IntPart())
		}
		out = append(out, share)
	}
	return out
}
