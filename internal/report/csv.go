package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Tiliavir/work-hours/internal/timecalc"
)

func renderCSV(w io.Writer, s Summary) error {
	var b strings.Builder
	b.WriteString("date,category,hours,start_source\n")
	for _, d := range s.Days {
		for _, c := range d.Categories {
			fmt.Fprintf(&b, "%s,%s,%s,%s\n",
				csvEscape(d.Date),
				csvEscape(c.Category),
				timecalc.FormatHours(c.Hours),
				csvEscape(string(d.StartSource)),
			)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
