package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/docstore"
	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

const testToken = "test-token-12345"

// Wednesday; the seeded Monday card falls into this week.
var testNow = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	handler   http.Handler
	household *household.Store
	contacts  *contacts.Store
	progress  *storage.Store
}

func setupAppHandler(t *testing.T, token string) testEnv {
	t.Helper()
	dir := t.TempDir()

	progress, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { progress.Close() })

	reg := prometheus.NewRegistry()
	metrics := docstore.NewMetrics(reg)
	clock := docstore.ClockFunc(func() time.Time { return testNow })

	hh := household.Open(filepath.Join(dir, "household-store.json"),
		docstore.WithClock(clock), docstore.WithMetrics(metrics))
	hc := contacts.Open(filepath.Join(dir, "human-contact-store.json"),
		docstore.WithClock(clock), docstore.WithMetrics(metrics))

	handler := NewAppHandler(AppDeps{
		Household: hh,
		Completer: household.NewCompleter(hh, progress, progress, nil),
		Contacts:  hc,
		Progress:  progress,
		Token:     token,
		Gatherer:  reg,
		Now:       func() time.Time { return testNow },
	})
	return testEnv{handler: handler, household: hh, contacts: hc, progress: progress}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}](t, rr)
	return body.Error.Message
}

func TestHealthIsPublic(t *testing.T) {
	env := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	env := setupAppHandler(t, testToken)

	for _, token := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/household/tasks", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	env := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/household/tasks", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
}

func TestFallbackHeaders(t *testing.T) {
	env := setupAppHandler(t, testToken)

	rr := do(t, env.handler, http.MethodGet, "/household/tasks", "")
	if got := rr.Header().Get(HeaderHouseholdMode); got != "fallback" {
		t.Errorf("%s = %q, want fallback", HeaderHouseholdMode, got)
	}
	if rr.Header().Get(HeaderMigrationHint) == "" {
		t.Errorf("missing %s", HeaderMigrationHint)
	}

	rr = do(t, env.handler, http.MethodGet, "/contacts", "")
	if got := rr.Header().Get(HeaderHumanMode); got != "fallback" {
		t.Errorf("%s = %q, want fallback", HeaderHumanMode, got)
	}
	if rr.Header().Get(HeaderHouseholdMode) != "" {
		t.Errorf("contacts response must not carry %s", HeaderHouseholdMode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupAppHandler(t, testToken)

	req := httptest.NewRequest(http.MethodOptions, "/household/cards", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupAppHandler(t, testToken)

	do(t, env.handler, http.MethodPost, "/household/tasks", `{"label":"Fenster putzen"}`)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`dais_docstore_updates_total{outcome="ok",store="household"} 1`,
		`dais_docstore_loads_total{source="seed",store="household"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestOverview(t *testing.T) {
	env := setupAppHandler(t, testToken)

	rr := do(t, env.handler, http.MethodPost, "/household/entries",
		`{"cardId":"hh-card-monday-reset","completedTaskIds":["hh-task-clean"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("complete: status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = do(t, env.handler, http.MethodGet, "/overview", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[overviewResponse](t, rr)
	if len(got.Cards) != 7 {
		t.Errorf("cards = %d, want 7", len(got.Cards))
	}
	if len(got.Week) != 1 || got.Week[0].CardID != "hh-card-monday-reset" {
		t.Errorf("week = %+v", got.Week)
	}
	if len(got.Contacts.Persons) != 3 || len(got.Contacts.Stats) != 3 {
		t.Errorf("contacts = %+v", got.Contacts)
	}
	if len(got.Journal) != 1 {
		t.Errorf("journal = %d entries, want 1", len(got.Journal))
	}
	if got.TotalXP != 15 {
		t.Errorf("totalXp = %d, want 15", got.TotalXP)
	}
}

func TestParseIntParam(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=-1", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/x?"+c.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != c.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", c.query, got, c.want)
		}
	}
}
