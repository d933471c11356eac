package schema

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// AssociationType describes how a collection relates to another one.
type AssociationType string

const (
	BelongsTo     AssociationType = "BelongsTo"
	HasOne        AssociationType = "HasOne"
	HasMany       AssociationType = "HasMany"
	BelongsToMany AssociationType = "BelongsToMany"
)

// SearchFunc is a smart-field search hook. It returns a condition that is
// OR-ed into the search, or nil when the field does not apply.
type SearchFunc func(search string) (sq.Sqlizer, error)

// WhereFunc computes a segment condition at request time.
type WhereFunc func(ctx context.Context) (sq.Sqlizer, error)

// Filter is a single {field, value} pair in the admin filter syntax.
type Filter struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// Field describes one column (or virtual field) of a collection.
type Field struct {
	Field      string    `yaml:"field"`
	ColumnName string    `yaml:"columnName,omitempty"`
	Type       FieldType `yaml:"type"`
	Enums      []string  `yaml:"enums,omitempty"`
	// Reference points at "collection.key" for foreign-key fields.
	Reference string `yaml:"reference,omitempty"`
	// IsVirtual marks smart fields that have no column.
	IsVirtual bool `yaml:"isVirtual,omitempty"`

	Search SearchFunc `yaml:"-"`
}

// Column returns the database column behind the field.
func (f Field) Column() string {
	if f.ColumnName != "" {
		return f.ColumnName
	}
	return f.Field
}

// Association describes a relation to another collection.
//
// For BelongsTo, ForeignKey is a column of the source table and TargetKey a
// column of the target (defaults to the target primary key). For HasOne,
// ForeignKey is a column of the target and SourceKey a column of the source
// (defaults to the source primary key).
type Association struct {
	Name       string          `yaml:"name"`
	Type       AssociationType `yaml:"type"`
	Target     string          `yaml:"target"`
	ForeignKey string          `yaml:"foreignKey"`
	TargetKey  string          `yaml:"targetKey,omitempty"`
	SourceKey  string          `yaml:"sourceKey,omitempty"`
}

// IsSingle reports whether the association points at a single record and
// therefore can be joined.
func (a Association) IsSingle() bool {
	return a.Type == BelongsTo || a.Type == HasOne
}

// Segment is a named, pre-filtered view of a collection.
type Segment struct {
	Name       string   `yaml:"name"`
	FilterType string   `yaml:"filterType,omitempty"`
	Filters    []Filter `yaml:"filters,omitempty"`

	Where WhereFunc `yaml:"-"`
}

// Collection is the schema description of one table.
type Collection struct {
	Name         string        `yaml:"name"`
	TableName    string        `yaml:"table,omitempty"`
	PrimaryKeys  []string      `yaml:"primaryKeys,omitempty"`
	Fields       []Field       `yaml:"fields"`
	Associations []Association `yaml:"associations,omitempty"`
	Segments     []Segment     `yaml:"segments,omitempty"`
	// SearchFields restricts the search to the listed fields.
	SearchFields []string `yaml:"searchFields,omitempty"`
}

// Table returns the database table of the collection.
func (c *Collection) Table() string {
	if c.TableName != "" {
		return c.TableName
	}
	return c.Name
}

// PrimaryKey returns the first primary key field name, or "" when the
// collection has none.
func (c *Collection) PrimaryKey() string {
	if len(c.PrimaryKeys) > 0 {
		return c.PrimaryKeys[0]
	}
	return ""
}

// FieldByName finds a field by its name.
func (c *Collection) FieldByName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnOf maps a field name to its column. Unknown names are returned as is.
func (c *Collection) ColumnOf(name string) string {
	if f, ok := c.FieldByName(name); ok {
		return f.Column()
	}
	return name
}

// Association finds an association by name.
func (c *Collection) Association(name string) (Association, bool) {
	for _, a := range c.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// SingleAssociations returns the BelongsTo and HasOne associations.
func (c *Collection) SingleAssociations() []Association {
	var out []Association
	for _, a := range c.Associations {
		if a.IsSingle() {
			out = append(out, a)
		}
	}
	return out
}

// Segment finds a segment by name.
func (c *Collection) Segment(name string) (Segment, bool) {
	for _, s := range c.Segments {
		if s.Name == name {
			return s, true
		}
	}
	return Segment{}, false
}

// DefaultAggregateField picks the field aggregated when the request names
// none: the first primary key, or the first field. MySQL rejects
// COUNT(table.*), so '*' is never used.
func (c *Collection) DefaultAggregateField() string {
	if pk := c.PrimaryKey(); pk != "" {
		return pk
	}
	if len(c.Fields) > 0 {
		return c.Fields[0].Field
	}
	return ""
}

// Validate проверяет корректность описания коллекции
func (c *Collection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection must have a name")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("collection %q must have at least one field", c.Name)
	}

	names := make(map[string]bool, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Field == "" {
			return fmt.Errorf("collection %q: field at index %d has empty name", c.Name, i)
		}
		if names[f.Field] {
			return fmt.Errorf("collection %q: duplicate field name: %s", c.Name, f.Field)
		}
		names[f.Field] = true

		if !IsValidType(f.Type) {
			return fmt.Errorf("collection %q: invalid type '%s' for field '%s'", c.Name, f.Type, f.Field)
		}
		f.Type = NormalizeType(f.Type)

		if f.Type == TypeEnum && len(f.Enums) == 0 {
			return fmt.Errorf("collection %q: enum field '%s' has no values", c.Name, f.Field)
		}
	}

	for _, pk := range c.PrimaryKeys {
		if !names[pk] {
			return fmt.Errorf("collection %q: primary key '%s' is not a field", c.Name, pk)
		}
	}

	assocs := make(map[string]bool, len(c.Associations))
	for _, a := range c.Associations {
		if a.Name == "" || a.Target == "" {
			return fmt.Errorf("collection %q: association must have a name and a target", c.Name)
		}
		if assocs[a.Name] {
			return fmt.Errorf("collection %q: duplicate association: %s", c.Name, a.Name)
		}
		assocs[a.Name] = true

		switch a.Type {
		case BelongsTo, HasOne, HasMany, BelongsToMany:
		default:
			return fmt.Errorf("collection %q: association '%s' has invalid type '%s'", c.Name, a.Name, a.Type)
		}
		if a.IsSingle() && a.ForeignKey == "" {
			return fmt.Errorf("collection %q: association '%s' needs a foreignKey", c.Name, a.Name)
		}
	}

	for _, s := range c.Segments {
		if s.Name == "" {
			return fmt.Errorf("collection %q: segment must have a name", c.Name)
		}
	}

	return nil
}
