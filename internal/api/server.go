package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/docstore"
	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Response headers that mark data served from the JSON fallback stores.
const (
	HeaderHouseholdMode = "X-Dais-Household-Mode"
	HeaderHumanMode     = "X-Dais-Human-Mode"
	HeaderMigrationHint = "X-Dais-Migration-Hint"
)

const (
	householdMigrationHint = "Household Tabellen fehlen. Daten werden im JSON-Fallback gespeichert."
	contactsMigrationHint  = "Human Contact Tabellen fehlen. Daten werden im JSON-Fallback gespeichert."
)

// Progress is the slice of the primary database the API needs.
type Progress interface {
	Ping(ctx context.Context) error
	GetOrCreateDemoUser(ctx context.Context, email, name string) (storage.User, error)
	ListJournalEntries(ctx context.Context, journalID string, limit int) ([]storage.JournalEntry, error)
	TotalXP(ctx context.Context, userID string) (int, error)
}

type AppDeps struct {
	Household       *household.Store
	Completer       *household.Completer
	Contacts        *contacts.Store
	Progress        Progress
	Token           string
	StatsWindowDays int                 // defaults to contacts.DefaultStatsWindowDays
	Gatherer        prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Now             func() time.Time    // defaults to time.Now
	Logger          *slog.Logger
}

func (d AppDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d AppDeps) windowDays() int {
	if d.StatsWindowDays > 0 {
		return d.StatsWindowDays
	}
	return contacts.DefaultStatsWindowDays
}

func (d AppDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewAppHandler returns the dais REST API. /health and /metrics are public;
// everything else sits behind BearerAuth.
func NewAppHandler(deps AppDeps) http.Handler {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{HeaderHouseholdMode, HeaderHumanMode, HeaderMigrationHint},
	}))

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/household", func(r chi.Router) {
			r.Use(fallbackHeaders(HeaderHouseholdMode, householdMigrationHint))

			r.Get("/tasks", handleListTasks(deps))
			r.Post("/tasks", handleCreateTask(deps))
			r.Put("/tasks/order", handleReorderTasks(deps))
			r.Patch("/tasks/{id}", handleUpdateTask(deps))
			r.Delete("/tasks/{id}", handleDeleteTask(deps))

			r.Get("/cards", handleListCards(deps))
			r.Post("/cards", handleCreateCard(deps))
			r.Get("/cards/{id}", handleGetCard(deps))
			r.Patch("/cards/{id}", handleUpdateCard(deps))
			r.Delete("/cards/{id}", handleDeleteCard(deps))

			r.Get("/entries", handleListEntries(deps))
			r.Post("/entries", handleCompleteCard(deps))

			r.Get("/logs", handleListHouseholdLogs(deps))
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Use(fallbackHeaders(HeaderHumanMode, contactsMigrationHint))

			r.Get("/", handleListContacts(deps))
			r.Post("/", handleCreateContact(deps))
			r.Get("/stats", handleContactStats(deps))
			r.Patch("/{id}", handleUpdateContact(deps))
			r.Delete("/{id}", handleDeleteContact(deps))
			r.Put("/{id}/assignments", handleSetAssignment(deps))
			r.Get("/{id}/logs", handleListContactLogs(deps))
			r.Post("/{id}/logs", handleAppendContactLog(deps))
		})

		r.Get("/overview", handleOverview(deps))
	})

	return r
}

func fallbackHeaders(modeHeader, hint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(modeHeader, "fallback")
			w.Header().Set(HeaderMigrationHint, hint)
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Progress != nil {
			if err := deps.Progress.Ping(r.Context()); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "database unavailable: %v", err)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// storeError maps store errors to responses: not found is 404, rejected
// input is 400, anything else is logged and reported as 500.
func storeError(w http.ResponseWriter, log *slog.Logger, err error, action string) {
	var verr *docstore.ValidationError
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s", err.Error())
	case errors.As(err, &verr):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", verr.Error())
	default:
		log.Error("request failed", "action", action, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s: %v", action, err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func parseTimeParam(r *http.Request, key string) (time.Time, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
