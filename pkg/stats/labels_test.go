package stats

import (
	"testing"
	"time"

	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/schema"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUSWeek(t *testing.T) {
	tests := []struct {
		t    time.Time
		want int
	}{
		{date(2024, 1, 1), 1},
		{date(2024, 1, 6), 1},
		{date(2024, 1, 7), 2},
		{date(2024, 4, 29), 18},
		{date(2024, 12, 29), 1}, // неделя с 1 января 2025
		{date(2023, 1, 1), 1},
		{date(2023, 12, 30), 52},
		{date(2023, 12, 31), 1},
	}
	for _, tt := range tests {
		if got := usWeek(tt.t); got != tt.want {
			t.Errorf("usWeek(%s) = %d, want %d", tt.t.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestParseSQLiteWeek(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01", date(2024, 1, 1)},
		{"2024-18", date(2024, 4, 29)},
		{"2025-00", date(2024, 12, 30)},
		{"2025-01", date(2025, 1, 6)},
	}
	for _, tt := range tests {
		got, err := parseSQLiteWeek(tt.in)
		if err != nil {
			t.Errorf("parseSQLiteWeek(%q) failed: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseSQLiteWeek(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"2024", "2024-xx", "2024-60"} {
		if _, err := parseSQLiteWeek(bad); err == nil {
			t.Errorf("parseSQLiteWeek(%q): expected error", bad)
		}
	}
}

func TestParseBucket(t *testing.T) {
	tests := []struct {
		in     any
		want   time.Time
		wantOK bool
	}{
		{"2024-05-01 00:00:00", date(2024, 5, 1), true},
		{"2024-05-01", date(2024, 5, 1), true},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("x", 3600)), date(2024, 5, 1), true},
		{nil, time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok, err := parseBucket(tt.in, false)
		if err != nil {
			t.Errorf("parseBucket(%v) failed: %v", tt.in, err)
			continue
		}
		if ok != tt.wantOK || !got.Equal(tt.want) {
			t.Errorf("parseBucket(%v) = %s, %v", tt.in, got, ok)
		}
	}

	if _, _, err := parseBucket("May 2024", false); err == nil {
		t.Error("Expected error for unknown bucket format")
	}
}

func TestFillEmptyIntervals_SumsDuplicates(t *testing.T) {
	// 2024-53 и 2025-00 - одна и та же неделя
	buckets := map[int64]int64{}
	var keys []int64
	for _, w := range []struct {
		label string
		value int64
	}{{"2024-52", 1}, {"2024-53", 2}, {"2025-00", 3}} {
		tm, _ := parseSQLiteWeek(w.label)
		k := tm.Unix()
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] += w.value
	}

	points := fillEmptyIntervals(buckets, keys, dialect.Week)
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %+v", points)
	}
	if points[1].Values.Value != 5 || points[1].Label != "W1-2024" {
		t.Errorf("merged week = %+v", points[1])
	}
}

func TestFormatLabel(t *testing.T) {
	d := date(2024, 3, 5)
	tests := []struct {
		tr   dialect.TimeRange
		want string
	}{
		{dialect.Day, "05/03/2024"},
		{dialect.Week, "W10-2024"},
		{dialect.Month, "Mar 24"},
		{dialect.Year, "2024"},
	}
	for _, tt := range tests {
		if got := formatLabel(d, tt.tr); got != tt.want {
			t.Errorf("formatLabel(%s) = %q, want %q", tt.tr, got, tt.want)
		}
	}
}

func TestPieKey(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	tests := []struct {
		v    any
		typ  schema.FieldType
		want string
	}{
		{nil, schema.TypeString, "null"},
		{int64(3), schema.TypeNumber, "3"},
		{true, schema.TypeBoolean, "true"},
		{"2024-05-15 09:00:00", schema.TypeDate, "15/05/2024 11:00:00"},
		{time.Date(2024, 1, 2, 23, 30, 0, 0, time.UTC), schema.TypeDate, "03/01/2024 00:30:00"},
		{time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), schema.TypeDateonly, "02/05/2024"},
		{"2024-05-02", schema.TypeDateonly, "02/05/2024"},
	}
	for _, tt := range tests {
		if got := pieKey(tt.v, tt.typ, paris); got != tt.want {
			t.Errorf("pieKey(%v, %s) = %q, want %q", tt.v, tt.typ, got, tt.want)
		}
	}
}
