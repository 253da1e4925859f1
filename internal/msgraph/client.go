// Package msgraph reads Outlook calendar meetings from Microsoft Graph and
// offers them to the analysis pipeline as events with a fixed duration.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/period"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Options configures a Client.
type Options struct {
	// HTTPClient must add authorisation (see Authenticator.HTTPClient).
	HTTPClient *http.Client
	BaseURL    string
	// Timezone is an IANA name Graph renders event times in. Empty means UTC.
	Timezone string
	// Category labels every meeting. Empty leaves categorization to the
	// meeting subject.
	Category string
	Limiter  *rate.Limiter
	Logger   *slog.Logger
}

// Client is an authenticated Microsoft Graph API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	category   string
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient creates a new Graph API client.
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		timezone:   opts.Timezone,
		category:   opts.Category,
		limiter:    opts.Limiter,
		log:        opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 5)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// CalendarEvent represents a Microsoft Graph calendar event.
type CalendarEvent struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	WebLink     string `json:"webLink"`
	IsAllDay    bool   `json:"isAllDay"`
	IsCancelled bool   `json:"isCancelled"`
	Sensitivity string `json:"sensitivity"` // "normal", "personal", "private", "confidential"
	ShowAs      string `json:"showAs"`      // "free", "tentative", "busy", "oof", "workingElsewhere", "unknown"
	Start       struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"end"`
}

// calendarViewResponse is the Graph API paged response for calendar events.
type calendarViewResponse struct {
	Value    []CalendarEvent `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// Fetch implements analysis.Source: it returns the meetings in p that
// represent time actually spent (see Skip).
func (c *Client) Fetch(ctx context.Context, p period.Period) ([]model.RawEvent, error) {
	events, err := c.CalendarView(ctx, p.Since, p.Until)
	if err != nil {
		return nil, err
	}
	var out []model.RawEvent
	for _, ev := range events {
		if Skip(ev) {
			continue
		}
		raw, err := ToRawEvent(ev, c.category)
		if err != nil {
			// Kept with an empty timestamp so it is counted as malformed.
			c.log.Warn("unreadable meeting time", "subject", ev.Subject, "err", err)
		}
		out = append(out, raw)
	}
	c.log.Debug("calendar meetings", "fetched", len(events), "kept", len(out))
	return out, nil
}

// CalendarView fetches calendar events in [from, to) using the calendarView
// endpoint, following @odata.nextLink paging.
func (c *Client) CalendarView(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	q := url.Values{
		"startDateTime": {from.UTC().Format(time.RFC3339)},
		"endDateTime":   {to.UTC().Format(time.RFC3339)},
		"$top":          {"100"},
	}
	endpoint := c.baseURL + "/me/calendarView?" + q.Encode()

	var all []CalendarEvent
	for endpoint != "" {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.timezone != "" {
			req.Header.Set("Prefer", fmt.Sprintf(`outlook.timezone="%s"`, c.timezone))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph API request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("graph API error %d: %s", resp.StatusCode, string(body))
		}

		var page calendarViewResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding graph response: %w", err)
		}

		all = append(all, page.Value...)
		endpoint = page.NextLink
	}
	return all, nil
}
