package orm

import (
	"strconv"
	"strings"
)

// Record is one row keyed by column alias.
type Record map[string]any

// normalizeRow converts driver byte slices to strings. MySQL returns
// DECIMAL and TEXT columns as []byte.
func normalizeRow(row map[string]any) Record {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Record(row)
}

// Number converts an aggregate result to int64 or float64. Drivers return
// numerics as integers, floats, strings or bytes depending on the dialect.
// Values that are not numeric are returned unchanged; nil stays nil.
func Number(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case []byte:
		return Number(string(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return n
	default:
		return v
	}
}
