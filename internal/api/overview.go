package api

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

type overviewResponse struct {
	Cards    []household.CardWithTasks `json:"cards"`
	Week     []household.EntrySummary  `json:"week"`
	Contacts contacts.Payload          `json:"contacts"`
	Journal  []storage.JournalEntry    `json:"journal"`
	TotalXP  int                       `json:"totalXp"`
}

// handleOverview assembles the dashboard from both fallback stores and the
// primary database in parallel.
func handleOverview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := overviewResponse{
			Week:    []household.EntrySummary{},
			Journal: []storage.JournalEntry{},
		}
		from, to := household.WeekRange(deps.now())

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			var err error
			resp.Cards, err = deps.Household.ListCardsWithTasks(ctx)
			return err
		})
		g.Go(func() error {
			entries, err := deps.Household.ListEntries(ctx, from, to)
			if err != nil {
				return err
			}
			for _, e := range entries {
				resp.Week = append(resp.Week, household.Summarize(e))
			}
			return nil
		})
		g.Go(func() error {
			var err error
			resp.Contacts, err = deps.Contacts.LoadPayload(ctx, deps.windowDays())
			return err
		})
		if deps.Progress != nil {
			g.Go(func() error {
				entries, err := deps.Progress.ListJournalEntries(ctx, storage.HouseholdJournalID, 5)
				if err != nil {
					return err
				}
				if entries != nil {
					resp.Journal = entries
				}
				return nil
			})
			g.Go(func() error {
				user, err := deps.Progress.GetOrCreateDemoUser(ctx, "", "")
				if err != nil {
					return err
				}
				resp.TotalXP, err = deps.Progress.TotalXP(ctx, user.ID)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			storeError(w, deps.logger(), err, "load overview")
			return
		}

		w.Header().Set(HeaderHouseholdMode, "fallback")
		w.Header().Set(HeaderHumanMode, "fallback")
		writeJSON(w, http.StatusOK, resp)
	}
}
