package timewindow_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/agent-cards/internal/timewindow"
)

// Wednesday.
var now = time.Date(2026, 10, 21, 15, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Test_Parse_Returns_Calendar_Bounds_When_Token_Is_Known(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  timewindow.Window
	}{
		{"today", timewindow.Window{Start: date(2026, 10, 21), End: date(2026, 10, 22)}},
		{"yesterday", timewindow.Window{Start: date(2026, 10, 20), End: date(2026, 10, 21)}},
		{"thisweek", timewindow.Window{Start: date(2026, 10, 19), End: date(2026, 10, 26)}},
		{"lastweek", timewindow.Window{Start: date(2026, 10, 12), End: date(2026, 10, 19)}},
		{"thismonth", timewindow.Window{Start: date(2026, 10, 1), End: date(2026, 11, 1)}},
		{"lastmonth", timewindow.Window{Start: date(2026, 9, 1), End: date(2026, 10, 1)}},
		{"thisyear", timewindow.Window{Start: date(2026, 1, 1), End: date(2027, 1, 1)}},
		{"lastyear", timewindow.Window{Start: date(2025, 1, 1), End: date(2026, 1, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()

			got, ok := timewindow.Parse(tt.token, now)
			if !ok {
				t.Fatalf("Parse(%q) returned no window", tt.token)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse(%q) mismatch (-want +got):\n%s", tt.token, diff)
			}
		})
	}
}

func Test_Parse_Ignores_Case_And_Separators(t *testing.T) {
	t.Parallel()

	want, ok := timewindow.Parse("thisweek", now)
	if !ok {
		t.Fatal("thisweek not parsed")
	}

	for _, variant := range []string{"ThisWeek", "this_week", "this-week", " This Week "} {
		got, ok := timewindow.Parse(variant, now)
		if !ok {
			t.Fatalf("Parse(%q) returned no window", variant)
		}

		if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
			t.Fatalf("Parse(%q) = %v, want %v", variant, got, want)
		}
	}
}

func Test_Parse_Returns_False_When_Token_Is_Unknown(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"", "tomorrow", "nextweek", "last decade"} {
		if _, ok := timewindow.Parse(token, now); ok {
			t.Fatalf("Parse(%q) unexpectedly returned a window", token)
		}
	}
}

func Test_Parse_Wraps_Year_When_Last_Month_Is_December(t *testing.T) {
	t.Parallel()

	got, ok := timewindow.Parse("lastmonth", time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("lastmonth not parsed")
	}

	want := timewindow.Window{Start: date(2025, 12, 1), End: date(2026, 1, 1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func Test_Parse_Starts_Week_On_Monday_When_Now_Is_Sunday(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, 10, 25, 23, 59, 0, 0, time.UTC)

	got, _ := timewindow.Parse("thisweek", sunday)
	if !got.Start.Equal(date(2026, 10, 19)) {
		t.Fatalf("start = %v, want 2026-10-19", got.Start)
	}

	if !got.Contains(sunday) {
		t.Fatal("window does not contain now")
	}

	if got.Contains(got.End) {
		t.Fatal("window must be half-open")
	}
}

func Test_Valid_Accepts_Only_Normalized_Tokens(t *testing.T) {
	t.Parallel()

	for _, token := range timewindow.Tokens() {
		if !timewindow.Valid(token) {
			t.Fatalf("Valid(%q) = false", token)
		}

		if timewindow.HumanName(token) == "" {
			t.Fatalf("HumanName(%q) empty", token)
		}
	}

	if timewindow.Valid("ThisWeek") {
		t.Fatal("Valid must not normalize")
	}
}
