package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/server"
	"github.com/Tiliavir/work-hours/internal/storage"
)

type fixture struct {
	ledger *storage.FileLedger
	srv    *httptest.Server

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger: storage.NewFileLedger(t.TempDir()),
		now:    time.Date(2026, 10, 20, 8, 5, 0, 0, time.UTC),
	}
	s := server.New(f.ledger, server.Options{
		Location: time.UTC,
		Now:      f.clock,
	})
	f.srv = httptest.NewServer(s.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func TestTouchAndGet(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/interactions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d: %s", resp.StatusCode, body)
	}
	f.advance(9 * time.Hour)
	f.do(t, http.MethodPost, "/interactions", "")
	// An explicit timestamp earlier in the day widens the span.
	f.do(t, http.MethodPost, "/interactions", `{"at":"2026-10-20T07:50:00Z"}`)

	resp, body = f.do(t, http.MethodGet, "/interactions/2026-10-20", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d: %s", resp.StatusCode, body)
	}
	var rec model.Interaction
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.First != "07:50" || rec.Last != "17:05" {
		t.Errorf("record = %+v, want 07:50-17:05", rec)
	}
}

func TestGetErrors(t *testing.T) {
	f := newFixture(t)

	if resp, _ := f.do(t, http.MethodGet, "/interactions/2026-01-01", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing date status = %d, want 404", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/interactions/yesterday", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, "/interactions", `{"at":"noon"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad at status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, "/interactions", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", resp.StatusCode)
	}
}

func TestListAndPrune(t *testing.T) {
	f := newFixture(t)
	for _, rec := range []model.Interaction{
		{Date: "2026-10-18", First: "09:00", Last: "12:00"},
		{Date: "2026-10-19", First: "08:00", Last: "16:00"},
		{Date: "2026-10-20", First: "08:30", Last: "17:30"},
	} {
		if err := f.ledger.Put(rec); err != nil {
			t.Fatal(err)
		}
	}

	resp, body := f.do(t, http.MethodGet, "/interactions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var recs []model.Interaction
	if err := json.Unmarshal(body, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].Date != "2026-10-20" {
		t.Errorf("list = %+v, want newest first", recs)
	}

	resp, body = f.do(t, http.MethodDelete, "/interactions?until=2026-10-19", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prune status = %d: %s", resp.StatusCode, body)
	}
	var out map[string]int
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["removed"] != 2 {
		t.Errorf("removed = %d, want 2", out["removed"])
	}

	if resp, _ := f.do(t, http.MethodDelete, "/interactions", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("prune without until status = %d, want 400", resp.StatusCode)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/interactions", "")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty list body = %q, want []", body)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}
