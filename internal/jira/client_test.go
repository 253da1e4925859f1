package jira_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tiliavir/work-hours/internal/jira"
	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/period"
)

const me = "acc-1"

func adfDoc(text string) map[string]any {
	return map[string]any{
		"type": "doc",
		"content": []any{map[string]any{
			"type":    "paragraph",
			"content": []any{map[string]any{"type": "text", "text": text}},
		}},
	}
}

func issue(key string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary": "Summary of " + key,
			"worklog": map[string]any{"worklogs": []any{
				map[string]any{"id": "w1", "author": map[string]string{"accountId": me},
					"started": "2026-10-20T09:00:00.000+0000", "timeSpentSeconds": 5400},
				map[string]any{"id": "w2", "author": map[string]string{"accountId": "someone-else"},
					"started": "2026-10-20T10:00:00.000+0000", "timeSpentSeconds": 3600},
				map[string]any{"id": "w3", "author": map[string]string{"accountId": me},
					"started": "2026-09-30T10:00:00.000+0000", "timeSpentSeconds": 3600},
			}},
			"comment": map[string]any{"comments": []any{
				map[string]any{"id": "c1", "author": map[string]string{"accountId": me},
					"created": "2026-10-20T11:00:00.000+0000", "body": adfDoc("Looks good to me")},
			}},
		},
		"changelog": map[string]any{"histories": []any{
			map[string]any{"id": "h1", "author": map[string]string{"accountId": me},
				"created": "2026-10-20T12:00:00.000+0000",
				"items": []any{
					map[string]string{"field": "status", "fromString": "To Do", "toString": "In Progress"},
					map[string]string{"field": "assignee", "toString": "Dev"},
				}},
		}},
	}
}

type fakeJira struct {
	mu      sync.Mutex
	starts  []string
	noUsers bool
}

func (f *fakeJira) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/user/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "dev@acme.test" {
			t.Errorf("user query = %q", r.URL.Query().Get("query"))
		}
		if f.noUsers {
			w.Write([]byte(`[]`))
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{{"accountId": me, "displayName": "Dev"}})
	})
	mux.HandleFunc("/rest/api/3/search/jql", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("expand") != "changelog" {
			t.Errorf("expand = %q", q.Get("expand"))
		}
		start, _ := strconv.Atoi(q.Get("startAt"))
		f.mu.Lock()
		f.starts = append(f.starts, q.Get("startAt"))
		f.mu.Unlock()

		// Two pages: the first full, the second with the remaining issue.
		var issues []any
		if start == 0 {
			for i := 0; i < 50; i++ {
				issues = append(issues, map[string]any{"key": "PAD-" + strconv.Itoa(i)})
			}
		} else {
			issues = append(issues, issue("PROJ-7"))
		}
		json.NewEncoder(w).Encode(map[string]any{"issues": issues, "startAt": start, "total": 51})
	})
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "dev@acme.test" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
}

func newClient(t *testing.T, srv *httptest.Server, token string) *jira.Client {
	t.Helper()
	c, err := jira.NewClient(jira.Options{
		BaseURL:    srv.URL + "/",
		Email:      "dev@acme.test",
		Token:      token,
		HTTPClient: srv.Client(),
		Limiter:    rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func october(t *testing.T) period.Period {
	t.Helper()
	p, err := period.Resolve("month:2026-10", "", "", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFetchActivities(t *testing.T) {
	fake := &fakeJira{}
	srv := fake.server(t)
	defer srv.Close()

	events, err := newClient(t, srv, "secret").Fetch(context.Background(), october(t))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want worklog+comment+update: %+v", len(events), events)
	}

	wl := events[0]
	if wl.Kind != model.KindWorklog || wl.Key != "jira-worklog:w1" {
		t.Errorf("worklog = %+v", wl)
	}
	if wl.DeclaredSeconds == nil || *wl.DeclaredSeconds != 5400 {
		t.Errorf("DeclaredSeconds = %v, want 5400", wl.DeclaredSeconds)
	}
	if wl.Text != "Summary of PROJ-7" {
		t.Errorf("worklog text = %q, want summary fallback", wl.Text)
	}
	if len(wl.Labels) != 1 || wl.Labels[0] != "PROJ-7" {
		t.Errorf("Labels = %v", wl.Labels)
	}
	if wl.URL != srv.URL+"/browse/PROJ-7" {
		t.Errorf("URL = %q", wl.URL)
	}

	if c := events[1]; c.Kind != model.KindComment || c.Text != "Looks good to me" {
		t.Errorf("comment = %+v", c)
	}
	want := "status: To Do → In Progress; assignee: (empty) → Dev"
	if u := events[2]; u.Kind != model.KindUpdate || u.Text != want {
		t.Errorf("update text = %q, want %q", u.Text, want)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.starts) != 2 || fake.starts[0] != "0" || fake.starts[1] != "50" {
		t.Errorf("startAt sequence = %v, want [0 50]", fake.starts)
	}
}

func TestFetchUserNotFound(t *testing.T) {
	fake := &fakeJira{noUsers: true}
	srv := fake.server(t)
	defer srv.Close()

	_, err := newClient(t, srv, "secret").Fetch(context.Background(), october(t))
	if !errors.Is(err, jira.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	fake := &fakeJira{}
	srv := fake.server(t)
	defer srv.Close()

	_, err := newClient(t, srv, "wrong").Fetch(context.Background(), october(t))
	var apiErr *jira.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401 APIError", err)
	}
}

func TestSearchNextPageToken(t *testing.T) {
	var (
		mu     sync.Mutex
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := r.URL.Query().Get("nextPageToken")
		mu.Lock()
		tokens = append(tokens, tok)
		mu.Unlock()
		if tok == "" {
			w.Write([]byte(`{"issues":[{"key":"A-1"}],"nextPageToken":"p2"}`))
			return
		}
		w.Write([]byte(`{"issues":[{"key":"A-2"}],"isLast":true}`))
	}))
	defer srv.Close()

	issues, err := newClient(t, srv, "secret").Search(context.Background(), "project = A")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(issues) != 2 || issues[1].Key != "A-2" {
		t.Errorf("issues = %+v", issues)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(tokens) != 2 || tokens[1] != "p2" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := jira.NewClient(jira.Options{BaseURL: "https://x", Email: "a@b"}); err == nil {
		t.Error("expected error without token")
	}
}
