package shared

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

var folder = cases.Fold()

// MatchesSearch reports whether any field contains query, ignoring case.
// An empty query matches everything.
func MatchesSearch(query string, fields ...string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	needle := folder.String(query)
	for _, field := range fields {
		if strings.Contains(folder.String(field), needle) {
			return true
		}
	}
	return false
}

// DateRange filters calendar dates inclusively. Zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange parses optional YYYY-MM-DD bounds. To is extended to the end of its day.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return DateRange{}, ErrInvalidDate
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return DateRange{}, ErrInvalidDate
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return r, nil
}

// Contains reports whether date (YYYY-MM-DD or RFC3339) falls in the range.
// Unparseable dates only match an open range.
func (r DateRange) Contains(date string) bool {
	if r.From.IsZero() && r.To.IsZero() {
		return true
	}
	t, ok := ParseDate(date)
	if !ok {
		return false
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ParseDate accepts YYYY-MM-DD and RFC3339 timestamps.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// MonthYear filters dates by month (1-12) and year. Zero values match any.
type MonthYear struct {
	Month int
	Year  int
}

// Contains reports whether date falls in the selected month/year.
func (m MonthYear) Contains(date string) bool {
	if m.Month == 0 && m.Year == 0 {
		return true
	}
	t, ok := ParseDate(date)
	if !ok {
		return false
	}
	if m.Year != 0 && t.Year() != m.Year {
		return false
	}
	if m.Month != 0 && int(t.Month()) != m.Month {
		return false
	}
	return true
}

// ParseMonthYear reads month (1-12) and year query values. Empty and "all"
// leave the field open.
func ParseMonthYear(month, year string) (MonthYear, error) {
	var m MonthYear
	if month != "" && month != "all" {
		n, err := strconv.Atoi(month)
		if err != nil || n < 1 || n > 12 {
			return MonthYear{}, ErrInvalidPeriod
		}
		m.Month = n
	}
	if year != "" && year != "all" {
		n, err := strconv.Atoi(year)
		if err != nil || n < 1 {
			return MonthYear{}, ErrInvalidPeriod
		}
		m.Year = n
	}
	return m, nil
}
