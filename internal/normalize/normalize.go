// Package normalize converts source-specific raw events into the uniform
// model.Event shape consumed by the engine.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/period"
)

// fallbackWords is how many leading words of the text form a category when
// neither a label nor a ticket id is available.
const fallbackWords = 3

var defaultTicketPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9}-\d+)\b`)

// Options tunes a normalization run.
type Options struct {
	// Location is the zone calendar days are computed in. Nil means time.Local.
	Location *time.Location
	// Period, when set, drops events outside [Since, Until).
	Period *period.Period
	// TicketPrefixes restricts ticket-id recognition to these project keys
	// (e.g. "PROJ"). Empty means any short alphanumeric prefix.
	TicketPrefixes []string
}

// Result is the output of Normalize.
type Result struct {
	Events     []model.Event
	Malformed  int
	Merges     int
	Duplicates int
	OutOfRange int

	reasons []string
}

// Dropped is the number of raw events that did not make it into Events.
func (r Result) Dropped() int {
	return r.Malformed + r.Merges + r.Duplicates + r.OutOfRange
}

// Err returns a *MalformedEventError describing dropped malformed events,
// or nil when there were none. It is diagnostic only.
func (r Result) Err() error {
	if r.Malformed == 0 {
		return nil
	}
	return &MalformedEventError{Count: r.Malformed, Reasons: r.reasons}
}

// MalformedEventError summarizes raw events dropped for missing or invalid
// required fields.
type MalformedEventError struct {
	Count   int
	Reasons []string
}

func (e *MalformedEventError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%d malformed events dropped", e.Count)
	}
	return fmt.Sprintf("%d malformed events dropped (first: %s)", e.Count, e.Reasons[0])
}

// Normalize filters, categorizes, deduplicates and orders raw events. It is
// deterministic: the first occurrence of a dedupe key wins, and the output
// is sorted ascending by timestamp with ties kept in arrival order.
func Normalize(raw []model.RawEvent, opts Options) Result {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	ticket := TicketPattern(opts.TicketPrefixes)

	var res Result
	seen := make(map[string]bool, len(raw))
	events := make([]model.Event, 0, len(raw))

	for _, r := range raw {
		if r.Kind == model.KindCommit && IsMerge(r.Text) {
			res.Merges++
			continue
		}

		ts, err := ParseTimestamp(r.Timestamp)
		if err != nil {
			res.malformed(fmt.Sprintf("%s %q: %v", r.Kind, r.Ref, err))
			continue
		}

		var declared *time.Duration
		if r.DeclaredSeconds != nil {
			if *r.DeclaredSeconds < 0 {
				res.malformed(fmt.Sprintf("%s %q: negative declared duration", r.Kind, r.Ref))
				continue
			}
			d := time.Duration(*r.DeclaredSeconds) * time.Second
			declared = &d
		}

		key := r.Key
		if key == "" {
			key = syntheticKey(r)
		}
		if seen[key] {
			res.Duplicates++
			continue
		}
		seen[key] = true

		if opts.Period != nil && !opts.Period.Contains(ts) {
			res.OutOfRange++
			continue
		}

		events = append(events, model.Event{
			Timestamp: ts.In(loc),
			Category:  Categorize(r.Labels, r.Text, ticket),
			Kind:      r.Kind,
			Key:       key,
			Declared:  declared,
			Text:      firstLine(r.Text),
			Ref:       r.Ref,
			URL:       r.URL,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	res.Events = events
	return res
}

func (r *Result) malformed(reason string) {
	r.Malformed++
	if len(r.reasons) < 5 {
		r.reasons = append(r.reasons, reason)
	}
}

// Categorize picks the bucket label: the first non-empty label, else a
// ticket id found in text, else the first words of text, else "unknown".
func Categorize(labels []string, text string, ticket *regexp.Regexp) string {
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	if ticket == nil {
		ticket = defaultTicketPattern
	}
	if m := ticket.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	words := strings.Fields(firstLine(text))
	if len(words) > fallbackWords {
		words = words[:fallbackWords]
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	return model.UnknownCategory
}

// TicketPattern builds the ticket-id matcher. With no prefixes it accepts
// any upper-case 2-10 character project key starting with a letter, so
// "utf-8" or "sha-256" in prose stay text. Configured prefixes match in
// any case.
func TicketPattern(prefixes []string) *regexp.Regexp {
	var quoted []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return defaultTicketPattern
	}
	return regexp.MustCompile(`(?i)\b((?:` + strings.Join(quoted, "|") + `)-\d+)\b`)
}

// IsMerge reports whether a commit message starts with a merge marker.
func IsMerge(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimRight(fields[0], ":"), "merge")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// ParseTimestamp parses the ISO-8601 variants emitted by GitHub and Jira.
// Timestamps without a zone are rejected rather than guessed.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// syntheticKey derives a stable identity for raw events the source did not
// give one.
func syntheticKey(r model.RawEvent) string {
	h := xxhash.New()
	for _, part := range []string{string(r.Kind), r.Timestamp, r.Ref, r.Text} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return string(r.Kind) + ":" + strconv.FormatUint(h.Sum64(), 16)
}
