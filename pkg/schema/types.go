package schema

import (
	"fmt"
	"strings"
)

// FieldType представляет тип поля коллекции в терминах админ-панели
type FieldType string

// Поддерживаемые типы полей
const (
	TypeString   FieldType = "String"
	TypeNumber   FieldType = "Number"
	TypeBoolean  FieldType = "Boolean"
	TypeDate     FieldType = "Date"
	TypeDateonly FieldType = "Dateonly"
	TypeTime     FieldType = "Time"
	TypeEnum     FieldType = "Enum"
	TypeUUID     FieldType = "Uuid"
	TypeJSON     FieldType = "Json"
)

// ValidationError ошибка валидации значения поля
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: '%s')",
		e.Field, e.Message, e.Value)
}

// NormalizeType нормализует синонимы типов (в том числе SQL-типы) к типам админ-панели.
// Неизвестный тип возвращается как есть, IsValidType его отклонит.
func NormalizeType(t FieldType) FieldType {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "string", "text", "varchar", "char", "citext":
		return TypeString
	case "number", "integer", "int", "bigint", "smallint", "real", "float", "double", "decimal", "numeric":
		return TypeNumber
	case "boolean", "bool", "bit":
		return TypeBoolean
	case "date", "datetime", "timestamp", "timestamptz", "datetime2":
		return TypeDate
	case "dateonly":
		return TypeDateonly
	case "time":
		return TypeTime
	case "enum":
		return TypeEnum
	case "uuid", "uniqueidentifier":
		return TypeUUID
	case "json", "jsonb":
		return TypeJSON
	default:
		return t
	}
}

// IsValidType проверяет валидность типа поля
func IsValidType(t FieldType) bool {
	switch NormalizeType(t) {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeDateonly,
		TypeTime, TypeEnum, TypeUUID, TypeJSON:
		return true
	default:
		return false
	}
}

// IsDateTimeType проверяет является ли тип временным
func IsDateTimeType(t FieldType) bool {
	switch NormalizeType(t) {
	case TypeDate, TypeDateonly:
		return true
	default:
		return false
	}
}
