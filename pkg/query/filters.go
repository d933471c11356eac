package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ruslano69/adminquery/pkg/schema"
)

const (
	FilterAnd = "and"
	FilterOr  = "or"
)

// ParseFilterType normalizes filterType. An empty value means "and".
func ParseFilterType(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FilterAnd:
		return FilterAnd, nil
	case FilterOr:
		return FilterOr, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilterType, s)
	}
}

// Combine joins conditions with AND or OR. It returns nil when there is
// nothing to combine.
func Combine(conds []sq.Sqlizer, filterType string) sq.Sqlizer {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	}
	if filterType == FilterOr {
		return sq.Or(conds)
	}
	return sq.And(conds)
}

// FilterCondition builds the condition of one {field, value} filter.
// field may be "assoc:field".
func (b *Builder) FilterCondition(f schema.Filter) (sq.Sqlizer, error) {
	r, err := b.Resolve(f.Field, ":")
	if err != nil {
		return nil, err
	}
	cond, err := b.parser.Condition(r.Column, r.Field, f.Value)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", f.Field, err)
	}
	return cond, nil
}

// FilterGroup combines filters with filterType. It returns nil for an
// empty list.
func (b *Builder) FilterGroup(filters []schema.Filter, filterType string) (sq.Sqlizer, error) {
	ft, err := ParseFilterType(filterType)
	if err != nil {
		return nil, err
	}

	conds := make([]sq.Sqlizer, 0, len(filters))
	for _, f := range filters {
		cond, err := b.FilterCondition(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return Combine(conds, ft), nil
}

// FilterAssociations returns the associations referenced by "assoc:field"
// filters, once each.
func FilterAssociations(filters []schema.Filter) []string {
	var names []string
	seen := make(map[string]bool)
	for _, f := range filters {
		if assoc, _, ok := strings.Cut(f.Field, ":"); ok && !seen[assoc] {
			seen[assoc] = true
			names = append(names, assoc)
		}
	}
	return names
}
