package stats

import (
	"context"
	"fmt"
	"math"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/orm"
)

// LineValues is the value of one line chart point.
type LineValues struct {
	Value int64 `json:"value"`
}

// LinePoint is one bucket of a line chart.
type LinePoint struct {
	Label  string     `json:"label"`
	Values LineValues `json:"values"`
}

// LineResult is the line chart payload.
type LineResult struct {
	Value []LinePoint `json:"value"`
}

// Line aggregates the collection per date bucket of group_by_date_field.
// Buckets without rows between the first and the last one are filled
// with zeros.
func (s *Service) Line(ctx context.Context, p Params) (*LineResult, error) {
	r, err := s.prepare(p)
	if err != nil {
		return nil, err
	}
	opts, tr, err := s.lineOptions(r)
	if err != nil {
		return nil, err
	}

	records, err := s.session.FindAll(ctx, r.collection.Table(), opts)
	if err != nil {
		return nil, fmt.Errorf("line stat on %s: %w", p.Collection, err)
	}

	d := s.session.Dialect()
	sqliteWeeks := d == dialect.SQLite && tr == dialect.Week
	buckets := make(map[int64]int64, len(records))
	var keys []int64
	for _, rec := range records {
		t, ok, err := parseBucket(rec["date"], sqliteWeeks)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Строки с NULL датой не попадают ни в один интервал
			continue
		}
		k := t.Unix()
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}
		buckets[k] += lineValue(rec["value"])
	}

	return &LineResult{Value: fillEmptyIntervals(buckets, keys, tr)}, nil
}

// lineOptions selects the date bucket and the aggregate, grouped and
// ordered by bucket.
func (s *Service) lineOptions(r *request) (orm.FindOptions, dialect.TimeRange, error) {
	p := r.params
	tr, err := dialect.ParseTimeRange(p.TimeRange)
	if err != nil {
		return orm.FindOptions{}, "", err
	}
	date, err := r.builder.Resolve(p.GroupByDateField, ":")
	if err != nil {
		return orm.FindOptions{}, "", err
	}

	d := s.session.Dialect()
	bucket, args, err := d.DateBucket(tr, date.Column, p.Timezone)
	if err != nil {
		return orm.FindOptions{}, "", err
	}

	// MS SQL не принимает порядковый номер в GROUP BY
	groupBy := "1"
	if !d.GroupByOrdinal() {
		groupBy = bucket
	}

	return orm.FindOptions{
		Columns: []sq.Sqlizer{
			orm.Col(bucket+" AS "+d.Quote("date"), args...),
			orm.Col(r.fn + "(" + r.aggColumn + ") AS " + d.Quote("value")),
		},
		Joins:   r.joins,
		Where:   r.where,
		GroupBy: []string{groupBy},
		OrderBy: []string{groupBy},
	}, tr, nil
}

// lineValue truncates the aggregate to an integer.
func lineValue(v any) int64 {
	switch n := orm.Number(v).(type) {
	case int64:
		return n
	case float64:
		return int64(math.Trunc(n))
	default:
		return 0
	}
}

// fillEmptyIntervals walks from the first to the last bucket one time
// range at a time and emits a labelled point per step.
func fillEmptyIntervals(buckets map[int64]int64, keys []int64, tr dialect.TimeRange) []LinePoint {
	points := []LinePoint{}
	if len(keys) == 0 {
		return points
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	first := unixUTC(keys[0])
	last := unixUTC(keys[len(keys)-1])
	for t := first; !t.After(last); t = step(t, tr) {
		points = append(points, LinePoint{
			Label:  formatLabel(t, tr),
			Values: LineValues{Value: buckets[t.Unix()]},
		})
	}
	return points
}
