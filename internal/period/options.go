package period

import (
	"fmt"
	"time"
)

// Option is one selectable period.
type Option struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// Options lists the selectable periods relative to now: this month, last
// month, this week, last week, the week before and a custom range. Tokens
// are concrete ("month:2026-10", "week:2026-10-12") so a listing can be
// replayed later with the same meaning.
func Options(now time.Time) []Option {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonth := thisMonth.AddDate(0, -1, 0)

	opts := []Option{
		monthOption(thisMonth),
		monthOption(lastMonth),
	}
	for _, back := range []int{0, 7, 14} {
		opts = append(opts, weekOption(now.AddDate(0, 0, -back)))
	}
	return append(opts, Option{Token: Custom, Label: "Custom..."})
}

func monthOption(first time.Time) Option {
	return Option{
		Token: monthPrefix + first.Format("2006-01"),
		Label: first.Format("January 2006"),
	}
}

func weekOption(day time.Time) Option {
	start := Monday(day)
	end := start.AddDate(0, 0, 6)
	_, week := ISOWeek(day)
	return Option{
		Token: weekPrefix + start.Format("2006-01-02"),
		Label: fmt.Sprintf("Week %d (%d %s - %d %s)", week, start.Day(), start.Format("Jan"), end.Day(), end.Format("Jan")),
	}
}
