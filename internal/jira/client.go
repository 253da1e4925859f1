// Package jira fetches a user's issue activity (worklogs, comments and field
// changes) from the Jira Cloud REST API.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/normalize"
	"github.com/Tiliavir/work-hours/internal/period"
)

const pageSize = 50

// ErrUserNotFound is returned when no Jira account matches the configured e-mail.
var ErrUserNotFound = errors.New("jira user not found")

// Options configures a Client.
type Options struct {
	// BaseURL is the site root, e.g. https://acme.atlassian.net.
	BaseURL string
	Email   string
	Token   string
	// HTTPClient is the underlying transport. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Limiter throttles outgoing requests. Nil means 5 requests/second.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Client is a Jira REST API client authenticated with e-mail and API token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	token      string
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient creates a new Jira client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" || opts.Email == "" || opts.Token == "" {
		return nil, errors.New("jira url, email and token are required")
	}
	c := &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		email:      opts.Email,
		token:      opts.Token,
		limiter:    opts.Limiter,
		log:        opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API error %d: %s", e.StatusCode, e.Body)
}

// User is a Jira account.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

type author struct {
	AccountID string `json:"accountId"`
}

// Issue is the subset of a Jira issue wh reads.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Worklog struct {
			Worklogs []Worklog `json:"worklogs"`
		} `json:"worklog"`
		Comment struct {
			Comments []Comment `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
	Changelog struct {
		Histories []History `json:"histories"`
	} `json:"changelog"`
}

// Worklog is time logged on an issue.
type Worklog struct {
	ID               string          `json:"id"`
	Author           author          `json:"author"`
	Started          string          `json:"started"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	Comment          json.RawMessage `json:"comment"`
}

// Comment is an issue comment; Body is Atlassian Document Format.
type Comment struct {
	ID      string          `json:"id"`
	Author  author          `json:"author"`
	Created string          `json:"created"`
	Body    json.RawMessage `json:"body"`
}

// History is one changelog entry.
type History struct {
	ID      string       `json:"id"`
	Author  author       `json:"author"`
	Created string       `json:"created"`
	Items   []ChangeItem `json:"items"`
}

// ChangeItem is a single field change within a History.
type ChangeItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// String renders the change as "field: from → to".
func (i ChangeItem) String() string {
	from, to := i.FromString, i.ToString
	if from == "" {
		from = "(empty)"
	}
	if to == "" {
		to = "(empty)"
	}
	return fmt.Sprintf("%s: %s → %s", i.Field, from, to)
}

type searchResponse struct {
	Issues        []Issue `json:"issues"`
	StartAt       int     `json:"startAt"`
	Total         int     `json:"total"`
	NextPageToken string  `json:"nextPageToken"`
	IsLast        bool    `json:"isLast"`
}

// Fetch implements analysis.Source: it resolves the configured user and
// returns their worklogs, comments and field changes within p.
func (c *Client) Fetch(ctx context.Context, p period.Period) ([]model.RawEvent, error) {
	user, err := c.FindUser(ctx, c.email)
	if err != nil {
		return nil, err
	}
	c.log.Debug("jira user", "name", user.DisplayName, "account", user.AccountID)

	issues, err := c.Search(ctx, activityJQL(user.AccountID, p))
	if err != nil {
		return nil, err
	}

	var out []model.RawEvent
	for _, issue := range issues {
		out = append(out, c.Activities(issue, user.AccountID, p)...)
	}
	c.log.Debug("jira activities", "issues", len(issues), "count", len(out))
	return out, nil
}

// FindUser returns the first account matching query (usually an e-mail).
func (c *Client) FindUser(ctx context.Context, query string) (User, error) {
	var users []User
	q := url.Values{"query": {query}}
	if err := c.getJSON(ctx, "/rest/api/3/user/search", q, &users); err != nil {
		return User{}, fmt.Errorf("searching user: %w", err)
	}
	if len(users) == 0 {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, query)
	}
	return users[0], nil
}

// Search runs a JQL query and returns every matching issue, following
// either startAt/total or nextPageToken paging.
func (c *Client) Search(ctx context.Context, jql string) ([]Issue, error) {
	var all []Issue
	startAt := 0
	token := ""
	for {
		q := url.Values{
			"jql":        {jql},
			"maxResults": {strconv.Itoa(pageSize)},
			"fields":     {"summary,worklog,comment,created,updated"},
			"expand":     {"changelog"},
		}
		if token != "" {
			q.Set("nextPageToken", token)
		} else {
			q.Set("startAt", strconv.Itoa(startAt))
		}

		var page searchResponse
		if err := c.getJSON(ctx, "/rest/api/3/search/jql", q, &page); err != nil {
			return nil, fmt.Errorf("searching issues: %w", err)
		}
		all = append(all, page.Issues...)

		switch {
		case len(page.Issues) == 0 || page.IsLast:
			return all, nil
		case page.NextPageToken != "":
			token = page.NextPageToken
		default:
			startAt += pageSize
			if page.Total <= startAt {
				return all, nil
			}
		}
	}
}

// Activities extracts the raw events authored by accountID within p.
// Entries with unparsable timestamps are kept for the normalizer to count.
func (c *Client) Activities(issue Issue, accountID string, p period.Period) []model.RawEvent {
	inPeriod := func(ts string) bool {
		t, err := normalize.ParseTimestamp(ts)
		return err != nil || p.Contains(t)
	}
	link := c.baseURL + "/browse/" + issue.Key
	base := model.RawEvent{
		Labels: []string{issue.Key},
		Ref:    issue.Key,
		URL:    link,
	}

	var out []model.RawEvent
	for _, w := range issue.Fields.Worklog.Worklogs {
		if w.Author.AccountID != accountID || !inPeriod(w.Started) {
			continue
		}
		secs := w.TimeSpentSeconds
		ev := base
		ev.Timestamp = w.Started
		ev.Kind = model.KindWorklog
		ev.Key = idKey("worklog", w.ID)
		ev.DeclaredSeconds = &secs
		ev.Text = firstNonEmpty(ADFText(w.Comment), issue.Fields.Summary)
		out = append(out, ev)
	}
	for _, cm := range issue.Fields.Comment.Comments {
		if cm.Author.AccountID != accountID || !inPeriod(cm.Created) {
			continue
		}
		ev := base
		ev.Timestamp = cm.Created
		ev.Kind = model.KindComment
		ev.Key = idKey("comment", cm.ID)
		ev.Text = firstNonEmpty(ADFText(cm.Body), issue.Fields.Summary)
		out = append(out, ev)
	}
	for _, h := range issue.Changelog.Histories {
		if h.Author.AccountID != accountID || !inPeriod(h.Created) {
			continue
		}
		changes := make([]string, 0, len(h.Items))
		for _, item := range h.Items {
			changes = append(changes, item.String())
		}
		ev := base
		ev.Timestamp = h.Created
		ev.Kind = model.KindUpdate
		ev.Key = idKey("update", h.ID)
		ev.Text = firstNonEmpty(strings.Join(changes, "; "), issue.Fields.Summary)
		out = append(out, ev)
	}
	return out
}

// activityJQL selects issues the user logged work on or updated within p.
func activityJQL(accountID string, p period.Period) string {
	from := p.Since.Format("2006-01-02")
	to := p.LastDay().Format("2006-01-02")
	return fmt.Sprintf(
		`(worklogAuthor = "%[1]s" AND worklogDate >= "%[2]s" AND worklogDate <= "%[3]s") OR issue in updatedBy("%[1]s", "%[2]s", "%[3]s")`,
		accountID, from, to)
}

// idKey returns "" for missing ids so the normalizer synthesizes a key.
func idKey(kind, id string) string {
	if id == "" {
		return ""
	}
	return "jira-" + kind + ":" + id
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira API request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding jira response: %w", err)
	}
	return nil
}
