package stats

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ruslano69/adminquery/pkg/filter"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// ValueCounts holds the current aggregate and, when a date filter defines
// one, the aggregate of the previous period.
type ValueCounts struct {
	CountCurrent  float64  `json:"countCurrent"`
	CountPrevious *float64 `json:"countPrevious,omitempty"`
}

// ValueResult is the value chart payload.
type ValueResult struct {
	Value ValueCounts `json:"value"`
}

// Value aggregates the filtered collection. With filterType "and" and a
// date keyword filter that has a previous interval, the aggregate is
// computed a second time over that previous interval.
func (s *Service) Value(ctx context.Context, p Params) (*ValueResult, error) {
	r, err := s.prepare(p)
	if err != nil {
		return nil, err
	}

	current, err := s.aggregate(ctx, r, r.where)
	if err != nil {
		return nil, err
	}
	res := &ValueResult{Value: ValueCounts{CountCurrent: current}}

	// Для OR предыдущий период не имеет смысла
	if r.filterType != query.FilterAnd {
		return res, nil
	}
	prevField, ok := previousIntervalFilter(r, p.Filters)
	if !ok {
		return res, nil
	}

	where, err := previousWhere(r, p.Filters, prevField)
	if err != nil {
		return nil, err
	}
	previous, err := s.aggregate(ctx, r, where)
	if err != nil {
		return nil, err
	}
	res.Value.CountPrevious = &previous
	return res, nil
}

func (s *Service) aggregate(ctx context.Context, r *request, where sq.Sqlizer) (float64, error) {
	v, err := s.session.Aggregate(ctx, r.collection.Table(), r.fn, r.aggColumn, orm.CountOptions{
		Joins: r.joins,
		Where: where,
	})
	if err != nil {
		return 0, fmt.Errorf("value stat on %s: %w", r.params.Collection, err)
	}
	return toFloat(v), nil
}

// previousIntervalFilter returns the field of the last filter whose value
// is a date keyword with a previous interval.
func previousIntervalFilter(r *request, filters []schema.Filter) (string, bool) {
	parser := r.builder.Parser()
	var field string
	for _, f := range filters {
		if !filter.IsDateKeyword(f.Value) {
			continue
		}
		iv, err := filter.ParseDateInterval(f.Value, parser.Now(), parser.Location())
		if err == nil && iv.HasPreviousInterval() {
			field = f.Field
		}
	}
	return field, field != ""
}

// previousWhere rebuilds the filter group with every date keyword filter
// on field replaced by its previous interval.
func previousWhere(r *request, filters []schema.Filter, field string) (sq.Sqlizer, error) {
	parser := r.builder.Parser()
	conds := make([]sq.Sqlizer, 0, len(filters))
	for _, f := range filters {
		if f.Field == field && filter.IsDateKeyword(f.Value) {
			iv, err := filter.ParseDateInterval(f.Value, parser.Now(), parser.Location())
			if err != nil {
				return nil, err
			}
			if prev, ok := iv.Previous(); ok {
				col, err := r.builder.Resolve(f.Field, ":")
				if err != nil {
					return nil, err
				}
				conds = append(conds, parser.IntervalCondition(col.Column, col.Field, prev))
				continue
			}
		}
		cond, err := r.builder.FilterCondition(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return query.Combine(conds, query.FilterAnd), nil
}
