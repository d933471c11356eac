package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// TimeRange is the bucket width of a line chart.
type TimeRange string

const (
	Day   TimeRange = "day"
	Week  TimeRange = "week"
	Month TimeRange = "month"
	Year  TimeRange = "year"
)

// ErrInvalidTimeRange is returned for unknown bucket widths.
var ErrInvalidTimeRange = errors.New("invalid time range")

// ParseTimeRange normalizes a time_range parameter.
func ParseTimeRange(s string) (TimeRange, error) {
	switch tr := TimeRange(strings.ToLower(strings.TrimSpace(s))); tr {
	case Day, Week, Month, Year:
		return tr, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
	}
}

// DateBucket returns the SQL expression that truncates column to the start of
// its bucket, rendered as a sortable label.
//
// PostgreSQL, MySQL and MS SQL produce 'YYYY-MM-DD 00:00:00'. SQLite produces
// 'YYYY-MM-DD' and, for weeks, 'YYYY-WW' (Monday-based week number).
func (d Dialect) DateBucket(tr TimeRange, column, timezone string) (string, []any, error) {
	switch d {
	case Postgres:
		if timezone == "" {
			timezone = "UTC"
		}
		return "to_char(date_trunc(?, " + column + " AT TIME ZONE ?), 'YYYY-MM-DD 00:00:00')",
			[]any{string(tr), timezone}, nil

	case MySQL:
		switch tr {
		case Day:
			return "DATE_FORMAT(" + column + ", '%Y-%m-%d 00:00:00')", nil, nil
		case Week:
			return "DATE_FORMAT(DATE_SUB(" + column + ", INTERVAL ((7 + WEEKDAY(" + column + ")) % 7) DAY), '%Y-%m-%d 00:00:00')", nil, nil
		case Month:
			return "DATE_FORMAT(" + column + ", '%Y-%m-01 00:00:00')", nil, nil
		case Year:
			return "DATE_FORMAT(" + column + ", '%Y-01-01 00:00:00')", nil, nil
		}

	case MSSQL:
		switch tr {
		case Day:
			return "FORMAT(" + column + ", 'yyyy-MM-dd 00:00:00')", nil, nil
		case Week:
			// DATEPART(dw) is 1 for Sunday with the default DATEFIRST.
			return "FORMAT(DATEADD(DAY, 1 - DATEPART(dw, " + column + "), " + column + "), 'yyyy-MM-dd 00:00:00')", nil, nil
		case Month:
			return "FORMAT(" + column + ", 'yyyy-MM-01 00:00:00')", nil, nil
		case Year:
			return "FORMAT(" + column + ", 'yyyy-01-01 00:00:00')", nil, nil
		}

	case SQLite:
		switch tr {
		case Day:
			return "STRFTIME('%Y-%m-%d', " + column + ")", nil, nil
		case Week:
			return "STRFTIME('%Y-%W', " + column + ")", nil, nil
		case Month:
			return "STRFTIME('%Y-%m-01', " + column + ")", nil, nil
		case Year:
			return "STRFTIME('%Y-01-01', " + column + ")", nil, nil
		}

	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, string(d))
	}

	return "", nil, fmt.Errorf("%w: %q", ErrInvalidTimeRange, string(tr))
}
