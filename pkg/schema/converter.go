package schema

import (
	"strconv"
	"strings"
	"time"
)

// Converter отвечает за приведение строковых значений фильтров к типу поля
type Converter struct{}

// NewConverter создает новый конвертер
func NewConverter() *Converter {
	return &Converter{}
}

// dateLayouts - форматы дат, принимаемые в значениях фильтров
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Cast приводит строковое значение к Go-типу поля.
// Даты без явной зоны интерпретируются в loc (nil = UTC).
func (c *Converter) Cast(raw string, field Field, loc *time.Location) (any, error) {
	switch NormalizeType(field.Type) {
	case TypeNumber:
		return c.parseNumber(raw, field)
	case TypeBoolean:
		return c.ParseBool(raw, field)
	case TypeDate, TypeDateonly:
		return c.parseDate(raw, field, loc)
	default:
		// String, Enum, Uuid, Json, Time передаются драйверу как есть
		return raw, nil
	}
}

// parseNumber парсит целое или дробное число
func (c *Converter) parseNumber(raw string, field Field) (any, error) {
	s := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, &ValidationError{
		Field:   field.Field,
		Message: "invalid number",
		Value:   raw,
	}
}

// ParseBool парсит логическое значение (true/false, 1/0, yes/no)
func (c *Converter) ParseBool(raw string, field Field) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, &ValidationError{
			Field:   field.Field,
			Message: "boolean must be true or false",
			Value:   raw,
		}
	}
}

// parseDate парсит дату (RFC3339, 'YYYY-MM-DD HH:MM:SS' или 'YYYY-MM-DD')
func (c *Converter) parseDate(raw string, field Field, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{
		Field:   field.Field,
		Message: "invalid date format, expected RFC3339 or YYYY-MM-DD",
		Value:   raw,
	}
}
