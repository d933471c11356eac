package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// Псевдонимы колонок пирога, без camelCase
const (
	aliasGroupBy   = "alias_groupby"
	aliasAggregate = "alias_aggregate"
)

// PieEntry is one slice of a pie chart.
type PieEntry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// PieResult is the pie chart payload.
type PieResult struct {
	Value []PieEntry `json:"value"`
}

// Pie aggregates the collection per value of group_by_field, largest
// slice first. group_by_field may be "assoc:field".
func (s *Service) Pie(ctx context.Context, p Params) (*PieResult, error) {
	r, err := s.prepare(p)
	if err != nil {
		return nil, err
	}
	opts, group, err := s.pieOptions(r)
	if err != nil {
		return nil, err
	}

	records, err := s.session.FindAll(ctx, r.collection.Table(), opts)
	if err != nil {
		return nil, fmt.Errorf("pie stat on %s: %w", p.Collection, err)
	}

	loc := r.builder.Parser().Location()
	res := &PieResult{Value: make([]PieEntry, 0, len(records))}
	for _, rec := range records {
		res.Value = append(res.Value, PieEntry{
			Key:   pieKey(rec[aliasGroupBy], group.Field.Type, loc),
			Value: toFloat(rec[aliasAggregate]),
		})
	}
	return res, nil
}

func (s *Service) pieOptions(r *request) (orm.FindOptions, query.Resolved, error) {
	group, err := r.builder.Resolve(r.params.GroupByField, ":")
	if err != nil {
		return orm.FindOptions{}, query.Resolved{}, err
	}

	d := s.session.Dialect()
	groupBy := d.Quote(aliasGroupBy)
	if !d.GroupByOrdinal() {
		groupBy = group.Column
	}

	return orm.FindOptions{
		Columns: []sq.Sqlizer{
			orm.Col(group.Column + " AS " + d.Quote(aliasGroupBy)),
			orm.Col(r.fn + "(" + r.aggColumn + ") AS " + d.Quote(aliasAggregate)),
		},
		Joins:   r.joins,
		Where:   r.where,
		GroupBy: []string{groupBy},
		OrderBy: []string{d.Quote(aliasAggregate) + " DESC"},
	}, group, nil
}

// pieKey formats a group value. Date keys are shown in the request
// timezone; Dateonly keys keep their calendar date. Text timestamps are
// stored in UTC.
func pieKey(v any, t schema.FieldType, loc *time.Location) string {
	if v == nil {
		return "null"
	}
	switch t {
	case schema.TypeDate:
		if tm, ok := asTime(v); ok {
			return tm.In(loc).Format(dateKeyLayout)
		}
	case schema.TypeDateonly:
		if tm, ok := asTime(v); ok {
			return tm.Format(dateonlyKeyLayout)
		}
	}
	return fmt.Sprint(v)
}

// asTime accepts driver time values and SQLite text timestamps.
func asTime(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv, true
	case string:
		s := strings.TrimSpace(tv)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		for _, layout := range bucketLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
