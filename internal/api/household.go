package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

type createTaskRequest struct {
	Label string `json:"label"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type completeCardRequest struct {
	CardID           string   `json:"cardId"`
	CompletedTaskIDs []string `json:"completedTaskIds"`
	Note             string   `json:"note"`
	UserEmail        string   `json:"userEmail"`
	UserName         string   `json:"userName"`
}

type entryRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type entriesResponse struct {
	Range   entryRange               `json:"range"`
	Entries []household.EntrySummary `json:"entries"`
}

type cardsResponse struct {
	Cards []household.CardWithTasks `json:"cards"`
	Tasks []household.Task          `json:"tasks"`
}

func handleListTasks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := deps.Household.ListTasks(r.Context())
		if err != nil {
			storeError(w, deps.logger(), err, "list tasks")
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func handleCreateTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		task, err := deps.Household.CreateTask(r.Context(), req.Label)
		if err != nil {
			storeError(w, deps.logger(), err, "create task")
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

func handleUpdateTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch household.TaskPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		task, err := deps.Household.UpdateTask(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			storeError(w, deps.logger(), err, "update task")
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func handleReorderTasks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		tasks, err := deps.Household.ReorderTasks(r.Context(), req.IDs)
		if err != nil {
			storeError(w, deps.logger(), err, "reorder tasks")
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func handleDeleteTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Household.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
			storeError(w, deps.logger(), err, "delete task")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// handleListCards loads cards and tasks concurrently.
func handleListCards(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp cardsResponse
		g, gCtx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			var err error
			resp.Cards, err = deps.Household.ListCardsWithTasks(gCtx)
			return err
		})
		g.Go(func() error {
			var err error
			resp.Tasks, err = deps.Household.ListTasks(gCtx)
			return err
		})
		if err := g.Wait(); err != nil {
			storeError(w, deps.logger(), err, "list cards")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetCard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := deps.Household.GetCardWithTasks(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, deps.logger(), err, "get card")
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func handleCreateCard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in household.CardInput
		if !decodeBody(w, r, &in) {
			return
		}
		card, err := deps.Household.CreateCard(r.Context(), in)
		if err != nil {
			storeError(w, deps.logger(), err, "create card")
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func handleUpdateCard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch household.CardPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		patch.ID = chi.URLParam(r, "id")
		card, err := deps.Household.UpdateCard(r.Context(), patch)
		if err != nil {
			storeError(w, deps.logger(), err, "update card")
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func handleDeleteCard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Household.DeleteCard(r.Context(), chi.URLParam(r, "id")); err != nil {
			storeError(w, deps.logger(), err, "delete card")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// handleListEntries defaults to the current week. A from without a to
// covers the seven days starting at from.
func handleListEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to := household.WeekRange(deps.now())
		if f, ok := parseTimeParam(r, "from"); ok {
			from, to = f, endOfWeek(f)
		}
		if t, ok := parseTimeParam(r, "to"); ok {
			to = t
		}

		entries, err := deps.Household.ListEntries(r.Context(), from, to)
		if err != nil {
			storeError(w, deps.logger(), err, "list entries")
			return
		}
		resp := entriesResponse{
			Range:   entryRange{From: from, To: to},
			Entries: make([]household.EntrySummary, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, household.Summarize(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func endOfWeek(start time.Time) time.Time {
	last := start.AddDate(0, 0, 6)
	return time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(999*time.Millisecond), start.Location())
}

func handleCompleteCard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeCardRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CardID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "cardId erforderlich.")
			return
		}

		var userID string
		if deps.Progress != nil {
			user, err := deps.Progress.GetOrCreateDemoUser(r.Context(), req.UserEmail, req.UserName)
			if err != nil {
				storeError(w, deps.logger(), err, "resolve user")
				return
			}
			userID = user.ID
		}

		result, err := deps.Completer.Complete(r.Context(), household.Completion{
			UserID:           userID,
			CardID:           req.CardID,
			CompletedTaskIDs: req.CompletedTaskIDs,
			Note:             req.Note,
		})
		if err != nil {
			storeError(w, deps.logger(), err, "complete card")
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func handleListHouseholdLogs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Progress == nil {
			writeJSON(w, http.StatusOK, []storage.JournalEntry{})
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		entries, err := deps.Progress.ListJournalEntries(r.Context(), storage.HouseholdJournalID, limit)
		if err != nil {
			storeError(w, deps.logger(), err, "list household logs")
			return
		}
		if entries == nil {
			entries = []storage.JournalEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
