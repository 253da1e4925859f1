package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// Format selects an output renderer.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatHTML     Format = "html"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatCSV, FormatJSON, FormatYAML, FormatHTML:
		return f, nil
	case "":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want md, csv, json, yaml or html)", s)
	}
}

// Options controls rendering.
type Options struct {
	Format Format
	Title  string
	// Top limits the ranked category list. 0 shows all categories.
	Top int
	// Events includes the per-event chronological lines in md output.
	Events bool
}

// DefaultTop is the number of category slots shown by default.
const DefaultTop = 4

// Render writes s to w in the requested format.
func Render(w io.Writer, s Summary, opts Options) error {
	switch opts.Format {
	case FormatCSV:
		return renderCSV(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(document(s, opts))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document(s, opts)); err != nil {
			return err
		}
		return enc.Close()
	case FormatHTML:
		return htmlTemplate.Execute(w, document(s, opts))
	default:
		_, err := io.WriteString(w, renderMarkdown(s, opts))
		return err
	}
}

// exportDoc is the shape shared by the json, yaml and html renderers.
type exportDoc struct {
	Title  string          `json:"title,omitempty" yaml:"title,omitempty"`
	Total  float64         `json:"total_hours" yaml:"total_hours"`
	Top    []CategoryTotal `json:"top" yaml:"top"`
	Ranked []CategoryTotal `json:"categories" yaml:"categories"`
	Counts Counts          `json:"counts" yaml:"counts"`
	Days   []Day           `json:"days" yaml:"days"`
}

func document(s Summary, opts Options) exportDoc {
	return exportDoc{
		Title:  opts.Title,
		Total:  s.Total,
		Top:    s.Top(opts.Top),
		Ranked: s.Ranked,
		Counts: s.Counts,
		Days:   s.Days,
	}
}

const labelWidth = 28

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dayStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// label pads or truncates s to labelWidth terminal cells.
func label(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func renderMarkdown(s Summary, opts Options) string {
	var b strings.Builder
	rule := strings.Repeat("-", labelWidth+12)

	if opts.Title != "" {
		b.WriteString(titleStyle.Render(opts.Title) + "\n")
	}
	b.WriteString(rule + "\n")
	for _, c := range s.Top(opts.Top) {
		fmt.Fprintf(&b, "%s%8s h\n", label(c.Category, labelWidth), timecalc.FormatHours(c.Hours))
	}
	if hidden := len(s.Ranked) - len(s.Top(opts.Top)); hidden > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("(+%d more categories)", hidden)) + "\n")
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%s%8s h\n", label("Total", labelWidth), timecalc.FormatHours(s.Total))

	for _, d := range s.Days {
		b.WriteString("\n")
		b.WriteString(dayStyle.Render(fmt.Sprintf("%s %s", d.Weekday, d.Date)))
		fmt.Fprintf(&b, "  %s h\n", timecalc.FormatHours(d.Total))
		if d.Defaulted() {
			b.WriteString(noteStyle.Render(fmt.Sprintf("  ! start %s assumed (no ledger entry)", d.DayStart)) + "\n")
		}
		for _, c := range d.Categories {
			fmt.Fprintf(&b, "  %s%8s h\n", label(c.Category, labelWidth-2), timecalc.FormatHours(c.Hours))
		}
		if stats := d.Counts.String(); stats != "" {
			b.WriteString(dimStyle.Render("  "+stats) + "\n")
		}
		if !opts.Events {
			continue
		}
		for _, l := range d.Lines {
			ref := l.Ref
			if ref == "" {
				ref = string(l.Kind)
			}
			fmt.Fprintf(&b, "    %s  %s %s  %s\n",
				l.Time, label(l.Category, 20), dimStyle.Render(label(ref, 10)), runewidth.Truncate(l.Text, 60, "…"))
		}
	}
	return b.String()
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"hours": timecalc.FormatHours,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<section class="summary">
{{- range .Top}}
  <div class="summary-card"><div class="card-label">{{.Category}}</div><div class="card-value">{{hours .Hours}}</div></div>
{{- end}}
  <div class="summary-total">Total: {{hours .Total}} h</div>
</section>
<h3>Per day</h3>
{{- range .Days}}
<div class="day-card">
  <div class="day-header"><strong>{{.Weekday}} {{.Date}}</strong> <span class="day-total">{{hours .Total}} h</span></div>
  {{- if .Defaulted}}
  <div class="day-note">Start time {{.DayStart}} assumed (no ledger entry)</div>
  {{- end}}
  <div class="day-stats">{{.Counts}}</div>
  <div class="day-breakdown">
  {{- range .Categories}}
    <div class="breakdown-item">{{.Category}}: {{hours .Hours}}h</div>
  {{- end}}
  </div>
  <div class="events">
  {{- range .Lines}}
    <div class="event-item"><span class="event-time">{{.Time}}</span> <span class="event-category">{{.Category}}</span> {{if .URL}}<a href="{{.URL}}" target="_blank">{{.Text}}</a>{{else}}{{.Text}}{{end}}</div>
  {{- end}}
  </div>
</div>
{{- end}}
</body>
</html>
`))
