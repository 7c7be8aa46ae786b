package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"Kontakt nicht gefunden.","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useClient routes commands run through rootCmd to ts.
func useClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func withoutColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

var ctx = context.Background()

const cardsJSON = `{"cards":[
 {"id":"hh-card-monday-reset","title":"Montag Reset","weekday":1,"tasks":[
  {"id":"a1","order":0,"taskId":"hh-task-clean","task":{"id":"hh-task-clean","label":"Aufgeräumt"}}]},
 {"id":"hh-card-friday-deep","title":"Freitag Deep Clean","weekday":5,"tasks":[]}
],"tasks":[]}`

func TestListCards(t *testing.T) {
	withoutColor(t)
	ts := newTestServer(t, map[string]string{"GET /household/cards": cardsJSON})

	var out bytes.Buffer
	if err := listCards(ctx, ts.client(), &out, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"hh-card-monday-reset  Montag  Montag Reset", "    - Aufgeräumt", "Freitag Deep Clean"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q", ts.requests[0].Auth)
	}

	out.Reset()
	if err := listCards(ctx, ts.client(), &out, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "Montag Reset") || !strings.Contains(out.String(), "Freitag") {
		t.Errorf("weekday filter output:\n%s", out.String())
	}

	out.Reset()
	if err := listCards(ctx, ts.client(), &out, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "No cards found." {
		t.Errorf("empty filter output = %q", out.String())
	}
}

func TestHouseholdCompleteCommand(t *testing.T) {
	withoutColor(t)
	ts := newTestServer(t, map[string]string{
		"POST /household/entries": `{"entry":{"id":"hh-entry-1","cardTitle":"Montag Reset","completedTasks":["Aufgeräumt","Müll entsorgt"]},"xpEarned":15}`,
	})
	useClient(t, ts)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"household", "complete", "hh-card-monday-reset",
		"--task", "hh-task-clean", "--task", "hh-task-trash", "--note", "schnell"})
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	var body struct {
		CardID           string   `json:"cardId"`
		CompletedTaskIDs []string `json:"completedTaskIds"`
		Note             string   `json:"note"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.CardID != "hh-card-monday-reset" || len(body.CompletedTaskIDs) != 2 || body.Note != "schnell" {
		t.Errorf("body = %+v", body)
	}
	if !strings.Contains(out.String(), "✓ Müll entsorgt") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCompleteCardSendsEmptyTaskList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /household/entries": `{"entry":{"cardTitle":"X"},"xpEarned":15}`,
	})

	if err := completeCard(ctx, ts.client(), &bytes.Buffer{}, "hh-card-x", nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ts.requests[0].Body, `"completedTaskIds":[]`) {
		t.Errorf("body = %s", ts.requests[0].Body)
	}
}

func TestListWeek(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /household/entries": `{"range":{},"entries":[{"cardTitle":"Montag Reset","createdAt":"2025-06-09T08:00:00Z","completedTasks":["Aufgeräumt"],"note":"gut"}]}`,
	})

	var out bytes.Buffer
	if err := listWeek(ctx, ts.client(), &out, "2025-06-09"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/household/entries?from=2025-06-09" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if got := out.String(); !strings.Contains(got, "Montag Reset  Aufgeräumt  (gut)") {
		t.Errorf("output = %q", got)
	}
}

func TestListContacts(t *testing.T) {
	withoutColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /contacts": `{"persons":[{"id":"human-contact-lena","name":"Lena","relation":"family","assignments":[{"activity":"whatsapp","cadence":"daily"}]}],
			"stats":[{"personId":"human-contact-lena","total":4}]}`,
	})

	var out bytes.Buffer
	if err := listContacts(ctx, ts.client(), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Lena (Familie), 4 Kontakte", "Täglich: WhatsApp Nachricht"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShowContactStats_Query(t *testing.T) {
	withoutColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /contacts/stats": `[{"personId":"a","total":2,"distribution":[{"activity":"call","count":1,"percentage":50},{"activity":"email","count":1,"percentage":50}]}]`,
	})

	var out bytes.Buffer
	if err := showContactStats(ctx, ts.client(), &out, []string{"a", "b"}, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[0].Path; got != "/contacts/stats?days=7&ids=a%2Cb" {
		t.Errorf("path = %q", got)
	}
	if !strings.Contains(out.String(), "█████░░░░░  50%") {
		t.Errorf("output = %q", out.String())
	}

	if err := showContactStats(ctx, ts.client(), &out, nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ts.requests[1].Path; got != "/contacts/stats" {
		t.Errorf("path without filters = %q", got)
	}
}

func TestLogContact_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	err := logContact(ctx, ts.client(), "ghost person", "call", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server returned 404: Kontakt nicht gefunden." {
		t.Errorf("error = %q", err.Error())
	}
	if ts.requests[0].Path != "/contacts/ghost%20person/logs" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestContactsLogCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"contacts", "log", "human-contact-lena"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "accepts 2 arg(s)") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestClientWithoutToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})

	c := ts.client()
	c.token = ""
	resp, err := c.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want none", ts.requests[0].Auth)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestFetchOverview(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /overview": `{"cards":[{},{}],"week":[{}],"contacts":{"persons":[{},{},{}]},"journal":[],"totalXp":45}`,
	})

	ov, err := fetchOverview(ctx, ts.client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ov.Cards) != 2 || len(ov.Week) != 1 || len(ov.Contacts.Persons) != 3 || ov.TotalXP != 45 {
		t.Errorf("overview = %+v", ov)
	}
}

func TestCheckStores(t *testing.T) {
	withoutColor(t)
	dir := t.TempDir()
	hhPath := filepath.Join(dir, "household-store.json")
	hcPath := filepath.Join(dir, "human-contact-store.json")

	var out bytes.Buffer
	if err := checkStores(ctx, &out, hhPath, hcPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"8 tasks", "7 cards", "0 entries", "3 persons", "8 assignments", "0 logs"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, p := range []string{hhPath, hcPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected seeded file %s: %v", p, err)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "nested"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestBar(t *testing.T) {
	withoutColor(t)
	cases := map[int]string{
		0:   "░░░░░░░░░░",
		33:  "███░░░░░░░",
		100: "██████████",
		150: "██████████",
		-5:  "░░░░░░░░░░",
	}
	for pct, want := range cases {
		if got := bar(pct); got != want {
			t.Errorf("bar(%d) = %q, want %q", pct, got, want)
		}
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
