package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/dais/internal/contacts"
)

type assignmentRequest struct {
	Activity contacts.Activity `json:"activity"`
	Cadence  contacts.Cadence  `json:"cadence"`
	Enabled  *bool             `json:"enabled"`
}

type assignmentResponse struct {
	PersonID    string                `json:"personId"`
	Assignments []contacts.Assignment `json:"assignments"`
}

type appendLogRequest struct {
	Activity contacts.Activity `json:"activity"`
	Note     *string           `json:"note"`
}

func handleListContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := deps.Contacts.LoadPayload(r.Context(), deps.windowDays())
		if err != nil {
			storeError(w, deps.logger(), err, "list contacts")
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleCreateContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in contacts.ContactInput
		if !decodeBody(w, r, &in) {
			return
		}
		def, err := deps.Contacts.CreateContact(r.Context(), in)
		if err != nil {
			storeError(w, deps.logger(), err, "create contact")
			return
		}
		writeJSON(w, http.StatusCreated, def)
	}
}

func handleUpdateContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch contacts.ContactPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		def, err := deps.Contacts.UpdateContact(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			storeError(w, deps.logger(), err, "update contact")
			return
		}
		writeJSON(w, http.StatusOK, def)
	}
}

func handleDeleteContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Contacts.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
			storeError(w, deps.logger(), err, "delete contact")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleSetAssignment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Enabled == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Ungültige Aufgabenparameter.")
			return
		}
		personID := chi.URLParam(r, "id")
		list, err := deps.Contacts.SetAssignment(r.Context(), personID, req.Activity, req.Cadence, *req.Enabled)
		if err != nil {
			storeError(w, deps.logger(), err, "set assignment")
			return
		}
		writeJSON(w, http.StatusOK, assignmentResponse{PersonID: personID, Assignments: list})
	}
}

func handleListContactLogs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 10, 50)
		if limit == 0 {
			limit = 1
		}
		logs, err := deps.Contacts.ListLogs(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			storeError(w, deps.logger(), err, "list contact logs")
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

func handleAppendContactLog(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appendLogRequest
		if !decodeBody(w, r, &req) {
			return
		}
		l, err := deps.Contacts.AppendLog(r.Context(), contacts.LogInput{
			PersonID: chi.URLParam(r, "id"),
			Activity: req.Activity,
			Note:     req.Note,
		})
		if err != nil {
			storeError(w, deps.logger(), err, "append contact log")
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// handleContactStats reports stats for ?ids=a,b (all contacts when empty)
// over ?days= days.
func handleContactStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", deps.windowDays(), 365)

		var ids []string
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			defs, err := deps.Contacts.ListContacts(r.Context())
			if err != nil {
				storeError(w, deps.logger(), err, "list contacts")
				return
			}
			for _, d := range defs {
				ids = append(ids, d.ID)
			}
		}

		stats, err := deps.Contacts.GetStats(r.Context(), ids, days)
		if err != nil {
			storeError(w, deps.logger(), err, "compute contact stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
