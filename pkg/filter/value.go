// Package filter turns admin filter values ("!x", ">10", "*abc*", "$today"...)
// into squirrel conditions on a single column.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// ErrInvalidFilterValue is returned when a value cannot be cast to the
// field type or names an unknown keyword.
var ErrInvalidFilterValue = errors.New("invalid filter value")

const (
	keywordPresent = "$present"
	keywordBlank   = "$blank"
)

// Parser builds column conditions for one request.
type Parser struct {
	dialect dialect.Dialect
	loc     *time.Location
	now     time.Time
	convert *schema.Converter
}

// NewParser creates a parser. Date keywords resolve against now in loc.
func NewParser(d dialect.Dialect, loc *time.Location, now time.Time) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		dialect: d,
		loc:     loc,
		now:     now,
		convert: schema.NewConverter(),
	}
}

// Location returns the request timezone.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Now returns the reference time of the request.
func (p *Parser) Now() time.Time {
	return p.now
}

// Condition parses value into a condition on column, a quoted column
// reference whose type is given by field.
func (p *Parser) Condition(column string, field schema.Field, value string) (sq.Sqlizer, error) {
	switch {
	case strings.HasPrefix(value, "!") && !strings.HasPrefix(value, "!*"):
		v, err := p.cast(value[1:], field)
		if err != nil {
			return nil, err
		}
		if field.Type == schema.TypeBoolean {
			return sq.Or{sq.NotEq{column: v}, sq.Eq{column: nil}}, nil
		}
		return sq.NotEq{column: v}, nil

	case strings.HasPrefix(value, ">"):
		v, err := p.cast(value[1:], field)
		if err != nil {
			return nil, err
		}
		return sq.Gt{column: v}, nil

	case strings.HasPrefix(value, "<"):
		v, err := p.cast(value[1:], field)
		if err != nil {
			return nil, err
		}
		return sq.Lt{column: v}, nil

	case len(value) >= 2 && strings.HasPrefix(value, "*") && strings.HasSuffix(value, "*"):
		return sq.Like{column: "%" + value[1:len(value)-1] + "%"}, nil

	case len(value) >= 3 && strings.HasPrefix(value, "!*") && strings.HasSuffix(value, "*"):
		return sq.Or{sq.NotLike{column: "%" + value[2:len(value)-1] + "%"}, sq.Eq{column: nil}}, nil

	case strings.HasPrefix(value, "*"):
		return sq.Like{column: "%" + value[1:]}, nil

	case strings.HasSuffix(value, "*"):
		return sq.Like{column: value[:len(value)-1] + "%"}, nil

	case value == keywordPresent:
		return sq.NotEq{column: nil}, nil

	case value == keywordBlank:
		if field.Type == schema.TypeString {
			return sq.Or{sq.Eq{column: nil}, sq.Eq{column: ""}}, nil
		}
		return sq.Eq{column: nil}, nil

	case IsDateKeyword(value):
		if !schema.IsDateTimeType(field.Type) {
			return nil, fmt.Errorf("%w: %s is only valid on date fields (field %q)", ErrInvalidFilterValue, value, field.Field)
		}
		iv, err := ParseDateInterval(value, p.now, p.loc)
		if err != nil {
			return nil, err
		}
		return p.IntervalCondition(column, field, iv.Current), nil
	}

	v, err := p.cast(value, field)
	if err != nil {
		return nil, err
	}
	return sq.Eq{column: v}, nil
}

// IntervalCondition renders an interval as bound comparisons on column.
// An unbounded interval matches every row.
func (p *Parser) IntervalCondition(column string, field schema.Field, iv Interval) sq.Sqlizer {
	var cond sq.And
	if iv.From != nil {
		arg := p.timeArg(iv.From.Time, field)
		if iv.From.Inclusive {
			cond = append(cond, sq.GtOrEq{column: arg})
		} else {
			cond = append(cond, sq.Gt{column: arg})
		}
	}
	if iv.To != nil {
		arg := p.timeArg(iv.To.Time, field)
		if iv.To.Inclusive {
			cond = append(cond, sq.LtOrEq{column: arg})
		} else {
			cond = append(cond, sq.Lt{column: arg})
		}
	}
	if len(cond) == 1 {
		return cond[0]
	}
	return cond
}

// cast converts a raw value to the field type and binds dates for the dialect.
func (p *Parser) cast(raw string, field schema.Field) (any, error) {
	v, err := p.convert.Cast(raw, field, p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilterValue, err)
	}
	if t, ok := v.(time.Time); ok {
		return p.timeArg(t, field), nil
	}
	return v, nil
}

// timeArg binds a time. SQLite keeps DATEONLY as 'YYYY-MM-DD' text, so the
// local calendar date is compared instead of the UTC instant.
func (p *Parser) timeArg(t time.Time, field schema.Field) any {
	if p.dialect == dialect.SQLite && field.Type == schema.TypeDateonly {
		return t.In(p.loc).Format("2006-01-02")
	}
	return p.dialect.TimeArg(t)
}
