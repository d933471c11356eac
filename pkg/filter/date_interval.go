package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Bound is one end of an interval.
type Bound struct {
	Time      time.Time
	Inclusive bool
}

// Interval is a time range. A nil end is unbounded.
type Interval struct {
	From *Bound
	To   *Bound
}

// DateInterval is a parsed date keyword such as $today or $previous7Days.
type DateInterval struct {
	Keyword  string
	Current  Interval
	previous *Interval
}

// HasPreviousInterval reports whether the keyword defines a comparison period.
func (d *DateInterval) HasPreviousInterval() bool {
	return d.previous != nil
}

// Previous returns the comparison period, if any.
func (d *DateInterval) Previous() (Interval, bool) {
	if d.previous == nil {
		return Interval{}, false
	}
	return *d.previous, true
}

var (
	previousXDaysRe       = regexp.MustCompile(`^\$previous(\d+)Days$`)
	previousXDaysToDateRe = regexp.MustCompile(`^\$previous(\d+)DaysToDate$`)
	xHoursBeforeRe        = regexp.MustCompile(`^\$(\d+)HoursBefore$`)
)

// IsDateKeyword reports whether value names a date interval.
func IsDateKeyword(value string) bool {
	switch value {
	case "$today", "$yesterday",
		"$previousWeek", "$previousMonth", "$previousQuarter", "$previousYear",
		"$weekToDate", "$monthToDate", "$quarterToDate", "$yearToDate",
		"$past", "$future":
		return true
	}
	return previousXDaysRe.MatchString(value) ||
		previousXDaysToDateRe.MatchString(value) ||
		xHoursBeforeRe.MatchString(value)
}

// ParseDateInterval resolves a date keyword against now in loc.
// Weeks start on Sunday.
func ParseDateInterval(value string, now time.Time, loc *time.Location) (*DateInterval, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)

	closedOpen := func(from, to time.Time) Interval {
		return Interval{From: &Bound{Time: from, Inclusive: true}, To: &Bound{Time: to}}
	}
	closed := func(from, to time.Time) Interval {
		return Interval{From: &Bound{Time: from, Inclusive: true}, To: &Bound{Time: to, Inclusive: true}}
	}
	withPrev := func(cur, prev Interval) *DateInterval {
		return &DateInterval{Keyword: value, Current: cur, previous: &prev}
	}

	switch value {
	case "$today":
		return withPrev(
			closedOpen(today, today.AddDate(0, 0, 1)),
			closedOpen(today.AddDate(0, 0, -1), today),
		), nil
	case "$yesterday":
		return withPrev(
			closedOpen(today.AddDate(0, 0, -1), today),
			closedOpen(today.AddDate(0, 0, -2), today.AddDate(0, 0, -1)),
		), nil

	case "$previousWeek", "$previousMonth", "$previousQuarter", "$previousYear":
		start, step := periodStart(value, today)
		return withPrev(
			closedOpen(step(start, -1), start),
			closedOpen(step(start, -2), step(start, -1)),
		), nil

	case "$weekToDate", "$monthToDate", "$quarterToDate", "$yearToDate":
		start, step := periodStart(value, today)
		return withPrev(
			closed(start, now),
			closed(step(start, -1), step(now, -1)),
		), nil

	case "$past":
		return &DateInterval{Keyword: value, Current: Interval{To: &Bound{Time: now, Inclusive: true}}}, nil
	case "$future":
		return &DateInterval{Keyword: value, Current: Interval{From: &Bound{Time: now, Inclusive: true}}}, nil
	}

	if m := previousXDaysToDateRe.FindStringSubmatch(value); m != nil {
		x, err := keywordNumber(value, m[1])
		if err != nil {
			return nil, err
		}
		return withPrev(
			closed(today.AddDate(0, 0, -(x-1)), now),
			closed(today.AddDate(0, 0, -(2*x-1)), now.AddDate(0, 0, -x)),
		), nil
	}

	if m := previousXDaysRe.FindStringSubmatch(value); m != nil {
		x, err := keywordNumber(value, m[1])
		if err != nil {
			return nil, err
		}
		return withPrev(
			closedOpen(today.AddDate(0, 0, -x), today),
			closedOpen(today.AddDate(0, 0, -2*x), today.AddDate(0, 0, -x)),
		), nil
	}

	if m := xHoursBeforeRe.FindStringSubmatch(value); m != nil {
		x, err := keywordNumber(value, m[1])
		if err != nil {
			return nil, err
		}
		return &DateInterval{
			Keyword: value,
			Current: Interval{To: &Bound{Time: now.Add(-time.Duration(x) * time.Hour)}},
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown date keyword %q", ErrInvalidFilterValue, value)
}

func keywordNumber(value, digits string) (int, error) {
	x, err := strconv.Atoi(digits)
	if err != nil || x <= 0 {
		return 0, fmt.Errorf("%w: %q needs a positive count", ErrInvalidFilterValue, value)
	}
	return x, nil
}

// periodStart returns the start of the week, month, quarter or year that
// contains today, and a function stepping a time by whole periods.
func periodStart(keyword string, today time.Time) (time.Time, func(time.Time, int) time.Time) {
	y, m, _ := today.Date()
	loc := today.Location()
	keyword = strings.ToLower(keyword)

	switch {
	case strings.Contains(keyword, "week"):
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return start, func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
	case strings.Contains(keyword, "month"):
		return time.Date(y, m, 1, 0, 0, 0, 0, loc),
			func(t time.Time, n int) time.Time { return addMonths(t, n) }
	case strings.Contains(keyword, "quarter"):
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, loc),
			func(t time.Time, n int) time.Time { return addMonths(t, 3*n) }
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc),
			func(t time.Time, n int) time.Time { return addMonths(t, 12*n) }
	}
}

// addMonths shifts t by n months, clamping the day to the end of the
// target month (Mar 31 - 1 month = Feb 28).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var offsetRe = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)

// LoadLocation resolves a request timezone: an IANA name or a ±HH:MM
// offset. An empty timezone is UTC.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "utc") {
		return time.UTC, nil
	}

	if m := offsetRe.FindStringSubmatch(tz); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		if h > 14 || mins > 59 {
			return nil, fmt.Errorf("%w: invalid timezone offset %q", ErrInvalidFilterValue, tz)
		}
		secs := h*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(tz, secs), nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q", ErrInvalidFilterValue, tz)
	}
	return loc, nil
}
