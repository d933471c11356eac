package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/adminquery/pkg/dialect"
)

// Форматы меток графика
const (
	dayLabel   = "02/01/2006"
	monthLabel = "Jan 06"
	yearLabel  = "2006"

	dateKeyLayout     = "02/01/2006 15:04:05"
	dateonlyKeyLayout = "02/01/2006"
)

// bucketLayouts are the bucket formats returned by the dialects.
var bucketLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// parseBucket reads a date bucket value. ok is false for NULL buckets.
// sqliteWeeks selects the SQLite '%Y-%W' week format.
func parseBucket(v any, sqliteWeeks bool) (time.Time, bool, error) {
	var s string
	switch b := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		y, m, d := b.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true, nil
	case string:
		s = strings.TrimSpace(b)
	default:
		s = fmt.Sprint(b)
	}

	if sqliteWeeks {
		t, err := parseSQLiteWeek(s)
		return t, err == nil, err
	}
	for _, layout := range bucketLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unexpected date bucket %q", s)
}

// parseSQLiteWeek parses STRFTIME('%Y-%W') into the Monday starting that
// week. Week 00 holds the days before the first Monday of the year, so it
// maps to the Monday of the previous year and merges with that year's
// last week.
func parseSQLiteWeek(s string) (time.Time, error) {
	year, week, ok := strings.Cut(s, "-")
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected week bucket %q", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected week bucket %q: %w", s, err)
	}
	w, err := strconv.Atoi(week)
	if err != nil || w < 0 || w > 53 {
		return time.Time{}, fmt.Errorf("unexpected week bucket %q", s)
	}
	return firstMonday(y).AddDate(0, 0, 7*(w-1)), nil
}

func firstMonday(year int) time.Time {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	shift := (8 - int(t.Weekday())) % 7
	return t.AddDate(0, 0, shift)
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// step advances t by one time range.
func step(t time.Time, tr dialect.TimeRange) time.Time {
	switch tr {
	case dialect.Week:
		return t.AddDate(0, 0, 7)
	case dialect.Month:
		return t.AddDate(0, 1, 0)
	case dialect.Year:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// formatLabel renders a bucket start as a chart label.
func formatLabel(t time.Time, tr dialect.TimeRange) string {
	switch tr {
	case dialect.Week:
		return fmt.Sprintf("W%d-%d", usWeek(t), t.Year())
	case dialect.Month:
		return t.Format(monthLabel)
	case dialect.Year:
		return t.Format(yearLabel)
	default:
		return t.Format(dayLabel)
	}
}

// usWeek returns the US week number: weeks start on Sunday and week 1 is
// the week containing January 1st.
func usWeek(t time.Time) int {
	saturday := t.AddDate(0, 0, 6-int(t.Weekday()))
	if saturday.Year() > t.Year() {
		return 1
	}
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return (t.YearDay()-1+int(jan1.Weekday()))/7 + 1
}
