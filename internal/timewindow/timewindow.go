// Package timewindow maps relative time tokens ("today", "last week", ...)
// to concrete half-open time intervals anchored at an explicit "now".
package timewindow

import (
	"strings"
	"time"
)

// Tokens accepted by [Parse], in their normalized form.
const (
	Today     = "today"
	Yesterday = "yesterday"
	ThisWeek  = "thisweek"
	ThisMonth = "thismonth"
	ThisYear  = "thisyear"
	LastWeek  = "lastweek"
	LastMonth = "lastmonth"
	LastYear  = "lastyear"
)

var tokens = []string{Today, Yesterday, ThisWeek, ThisMonth, ThisYear, LastWeek, LastMonth, LastYear}

var humanNames = map[string]string{
	Today:     "Today",
	Yesterday: "Yesterday",
	ThisWeek:  "This week",
	ThisMonth: "This month",
	ThisYear:  "This year",
	LastWeek:  "Last week",
	LastMonth: "Last month",
	LastYear:  "Last year",
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Tokens returns the supported tokens in canonical order.
func Tokens() []string {
	out := make([]string, len(tokens))
	copy(out, tokens)

	return out
}

// Valid reports whether token is one of the supported tokens, already normalized.
func Valid(token string) bool {
	_, ok := humanNames[token]

	return ok
}

// HumanName returns the display name for a normalized token, or "" if unknown.
func HumanName(token string) string {
	return humanNames[token]
}

// Normalize lowercases the token and strips whitespace, underscores and dashes,
// so "This_Week", "this-week" and "ThisWeek" all become "thisweek".
func Normalize(token string) string {
	var b strings.Builder

	b.Grow(len(token))

	for _, r := range strings.ToLower(token) {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '-':
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// Parse resolves token to a window relative to now. Unknown tokens return
// false; callers treat that as "no constraint". Weeks start on Monday and all
// boundaries are computed in now's location.
func Parse(token string, now time.Time) (Window, bool) {
	switch Normalize(token) {
	case Today:
		return dayOf(now), true
	case Yesterday:
		return dayOf(now.AddDate(0, 0, -1)), true
	case ThisWeek:
		return weekOf(now), true
	case LastWeek:
		return weekOf(now.AddDate(0, 0, -7)), true
	case ThisMonth:
		return monthOf(now.Year(), now.Month(), now.Location()), true
	case LastMonth:
		return monthOf(now.Year(), now.Month()-1, now.Location()), true
	case ThisYear:
		return yearOf(now.Year(), now.Location()), true
	case LastYear:
		return yearOf(now.Year()-1, now.Location()), true
	default:
		return Window{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayOf(t time.Time) Window {
	start := startOfDay(t)

	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func weekOf(t time.Time) Window {
	// time.Weekday has Sunday == 0; shift so Monday is day zero.
	offset := (int(t.Weekday()) + 6) % 7
	start := startOfDay(t).AddDate(0, 0, -offset)

	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// monthOf relies on time.Date normalizing month 0 to December of the prior year.
func monthOf(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

func yearOf(year int, loc *time.Location) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)

	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}
