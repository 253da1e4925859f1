// Package github fetches a single author's commits from the GitHub REST API
// and turns them into raw events for the analysis pipeline.
package github

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
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/normalize"
	"github.com/Tiliavir/work-hours/internal/period"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

const (
	perPage       = 100
	acceptJSON    = "application/vnd.github+json"
	acceptPreview = "application/vnd.github.groot-preview+json"
)

// Options configures a Client.
type Options struct {
	Owner  string
	Repo   string
	Author string
	// Token is optional; anonymous requests work for public repositories.
	Token string
	// BranchLimit caps the number of branches scanned. Zero means 20.
	BranchLimit int
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// HTTPClient is the underlying transport. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Limiter throttles outgoing requests. Nil means 10 requests/second.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Client is a GitHub REST API client scoped to one repository and author.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	owner       string
	repo        string
	author      string
	branchLimit int
	limiter     *rate.Limiter
	log         *slog.Logger
}

// NewClient creates a new GitHub client. When a token is given, requests are
// authorised through an oauth2 static token source.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	if opts.Author == "" {
		return nil, errors.New("github author is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     DefaultBaseURL,
		owner:       opts.Owner,
		repo:        opts.Repo,
		author:      opts.Author,
		branchLimit: opts.BranchLimit,
		limiter:     opts.Limiter,
		log:         opts.Logger,
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if c.branchLimit <= 0 {
		c.branchLimit = 20
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 5)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// APIError is a non-2xx response from GitHub.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API error %d: %s", e.StatusCode, e.Body)
}

// Commit is the subset of a GitHub commit object wh uses.
type Commit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	// Branches is filled by BranchesFor, not by the API.
	Branches []string `json:"-"`
}

type namedRef struct {
	Name string `json:"name"`
}

type pullRequest struct {
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

// Fetch implements analysis.Source: it collects the author's commits across
// the active branches within p, deduplicated by SHA in first-seen order, and
// attributes each commit to its branch.
func (c *Client) Fetch(ctx context.Context, p period.Period) ([]model.RawEvent, error) {
	commits, err := c.Commits(ctx, p.Since, p.Until)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawEvent, 0, len(commits))
	for _, cm := range commits {
		out = append(out, c.toRawEvent(cm))
	}
	return out, nil
}

// Commits returns the author's unique commits in [since, until) with branch
// information attached. Merge commits are kept so the normalizer can count
// them, but no branch lookup is spent on them.
func (c *Client) Commits(ctx context.Context, since, until time.Time) ([]Commit, error) {
	branches, err := c.ActiveBranches(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Debug("scanning branches", "count", len(branches))

	seen := make(map[string]bool)
	var all []Commit
	for _, branch := range branches {
		commits, err := c.branchCommits(ctx, branch, since, until)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				// Branches we cannot read are skipped.
				c.log.Warn("skipping branch", "branch", branch, "status", apiErr.StatusCode)
				continue
			}
			return nil, err
		}
		if len(commits) > 0 {
			c.log.Debug("branch commits", "branch", branch, "count", len(commits))
		}
		for _, cm := range commits {
			if seen[cm.SHA] {
				continue
			}
			seen[cm.SHA] = true
			all = append(all, cm)
		}
	}

	for i := range all {
		if normalize.IsMerge(all[i].Commit.Message) {
			continue
		}
		branches, err := c.BranchesFor(ctx, all[i].SHA)
		if err != nil {
			return nil, err
		}
		all[i].Branches = branches
	}
	c.log.Debug("unique commits", "count", len(all))
	return all, nil
}

// ActiveBranches lists up to the configured number of branch names.
func (c *Client) ActiveBranches(ctx context.Context) ([]string, error) {
	var refs []namedRef
	q := url.Values{"per_page": {strconv.Itoa(c.branchLimit)}}
	if err := c.getJSON(ctx, c.repoPath("branches"), q, acceptJSON, &refs); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names, nil
}

func (c *Client) branchCommits(ctx context.Context, branch string, since, until time.Time) ([]Commit, error) {
	var all []Commit
	for page := 1; ; page++ {
		q := url.Values{
			"author":   {c.author},
			"since":    {since.UTC().Format(time.RFC3339)},
			"until":    {until.UTC().Format(time.RFC3339)},
			"sha":      {branch},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		var batch []Commit
		if err := c.getJSON(ctx, c.repoPath("commits"), q, acceptJSON, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

// BranchesFor names the branch a commit belongs to: the head ref of the
// first pull request containing it, otherwise every branch whose head it is.
// Lookup failures other than cancellation yield no branches.
func (c *Client) BranchesFor(ctx context.Context, sha string) ([]string, error) {
	var prs []pullRequest
	err := c.getJSON(ctx, c.repoPath("commits", sha, "pulls"), nil, acceptPreview, &prs)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err == nil && len(prs) > 0 && prs[0].Head.Ref != "" {
		return []string{prs[0].Head.Ref}, nil
	}
	if err != nil {
		c.log.Debug("pull request lookup failed", "sha", sha, "err", err)
	}

	var refs []namedRef
	err = c.getJSON(ctx, c.repoPath("commits", sha, "branches-where-head"), nil, acceptJSON, &refs)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		c.log.Debug("branch lookup failed", "sha", sha, "err", err)
		return nil, nil
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names, nil
}

func (c *Client) toRawEvent(cm Commit) model.RawEvent {
	ref := cm.SHA
	if len(ref) > 7 {
		ref = ref[:7]
	}
	link := cm.HTMLURL
	if link == "" {
		link = fmt.Sprintf("https://github.com/%s/%s/commit/%s", c.owner, c.repo, cm.SHA)
	}
	return model.RawEvent{
		Timestamp: cm.Commit.Author.Date,
		Kind:      model.KindCommit,
		Labels:    cm.Branches,
		Text:      cm.Commit.Message,
		Key:       cm.SHA,
		Ref:       ref,
		URL:       link,
	}
}

func (c *Client) repoPath(parts ...string) string {
	p := "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, accept string, v any) error {
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
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github API request failed: %w", err)
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
		return fmt.Errorf("decoding github response: %w", err)
	}
	return nil
}
