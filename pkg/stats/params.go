// Package stats computes dashboard charts (line, pie and value) for a
// collection from admin stat request parameters.
package stats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruslano69/adminquery/pkg/schema"
)

// Типы графиков
const (
	TypeLine  = "Line"
	TypePie   = "Pie"
	TypeValue = "Value"
)

var (
	// ErrInvalidAggregate is returned for an aggregate other than
	// count/sum/avg/min/max.
	ErrInvalidAggregate = errors.New("invalid aggregate")
	// ErrInvalidStatType is returned for an unknown chart type.
	ErrInvalidStatType = errors.New("invalid stat type")
)

// Params are the stat request parameters, with their wire names.
type Params struct {
	Type             string          `json:"type" yaml:"type"`
	Collection       string          `json:"collection" yaml:"collection"`
	Aggregate        string          `json:"aggregate" yaml:"aggregate"`
	AggregateField   string          `json:"aggregate_field,omitempty" yaml:"aggregate_field,omitempty"`
	GroupByField     string          `json:"group_by_field,omitempty" yaml:"group_by_field,omitempty"`
	GroupByDateField string          `json:"group_by_date_field,omitempty" yaml:"group_by_date_field,omitempty"`
	TimeRange        string          `json:"time_range,omitempty" yaml:"time_range,omitempty"`
	Filters          []schema.Filter `json:"filters,omitempty" yaml:"filters,omitempty"`
	FilterType       string          `json:"filterType,omitempty" yaml:"filterType,omitempty"`
	Timezone         string          `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// normalizeType accepts the chart type in any case.
func normalizeType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "line":
		return TypeLine, nil
	case "pie":
		return TypePie, nil
	case "value":
		return TypeValue, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatType, t)
	}
}

// aggregateFunc maps the aggregate parameter to an SQL function name.
func aggregateFunc(a string) (string, error) {
	switch fn := strings.ToUpper(strings.TrimSpace(a)); fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return fn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAggregate, a)
	}
}
