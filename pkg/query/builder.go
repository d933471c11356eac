// Package query translates admin request parameters (field paths, filters,
// search, sort and paging) into squirrel conditions and ORM options for one
// collection.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/filter"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// ErrInvalidFilterType is returned for a filterType other than and/or.
var ErrInvalidFilterType = errors.New("invalid filter type")

// Builder builds query parts for one collection and one request.
type Builder struct {
	registry   *schema.Registry
	collection *schema.Collection
	dialect    dialect.Dialect
	parser     *filter.Parser
	log        zerolog.Logger
}

// NewBuilder creates a builder. parser carries the request timezone.
func NewBuilder(reg *schema.Registry, c *schema.Collection, parser *filter.Parser, d dialect.Dialect, log zerolog.Logger) *Builder {
	return &Builder{
		registry:   reg,
		collection: c,
		dialect:    d,
		parser:     parser,
		log:        log,
	}
}

// Parser returns the filter value parser.
func (b *Builder) Parser() *filter.Parser {
	return b.parser
}

// Resolved is a field path mapped to a quoted column.
type Resolved struct {
	// Column is the qualified, quoted column reference.
	Column string
	Field  schema.Field
	// Association is the association name, or "" for an own field.
	Association string
}

// Column returns the quoted column of an own field of the collection.
func (b *Builder) Column(name string) string {
	return b.dialect.Column(b.collection.Table(), b.collection.ColumnOf(name))
}

// Resolve maps "field" or "assoc<sep>field" to a column. sep is ":" for
// filters and group-by, "." for sort.
func (b *Builder) Resolve(path, sep string) (Resolved, error) {
	assocName, fieldName, nested := strings.Cut(path, sep)
	if !nested {
		f, ok := b.collection.FieldByName(path)
		if !ok || f.IsVirtual {
			return Resolved{}, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, b.collection.Name, path)
		}
		return Resolved{Column: b.dialect.Column(b.collection.Table(), f.Column()), Field: f}, nil
	}

	assoc, target, err := b.singleAssociation(assocName)
	if err != nil {
		return Resolved{}, err
	}
	f, ok := target.FieldByName(fieldName)
	if !ok || f.IsVirtual {
		return Resolved{}, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, target.Name, fieldName)
	}
	return Resolved{
		Column:      b.dialect.Column(assoc.Name, f.Column()),
		Field:       f,
		Association: assoc.Name,
	}, nil
}

func (b *Builder) singleAssociation(name string) (schema.Association, *schema.Collection, error) {
	assoc, ok := b.collection.Association(name)
	if !ok || !assoc.IsSingle() {
		return schema.Association{}, nil, fmt.Errorf("%w: %s has no single association %q",
			schema.ErrUnknownField, b.collection.Name, name)
	}
	target, err := b.registry.Target(assoc)
	if err != nil {
		return schema.Association{}, nil, err
	}
	return assoc, target, nil
}

// Join returns the LEFT JOIN for a BelongsTo or HasOne association, aliased
// as the association name.
func (b *Builder) Join(name string) (orm.Join, error) {
	assoc, target, err := b.singleAssociation(name)
	if err != nil {
		return orm.Join{}, err
	}

	source := b.collection.Table()
	var on string
	switch assoc.Type {
	case schema.BelongsTo:
		targetKey := assoc.TargetKey
		if targetKey == "" {
			targetKey = target.ColumnOf(target.PrimaryKey())
		}
		on = b.dialect.Column(assoc.Name, targetKey) + " = " + b.dialect.Column(source, assoc.ForeignKey)
	default:
		sourceKey := assoc.SourceKey
		if sourceKey == "" {
			sourceKey = b.collection.ColumnOf(b.collection.PrimaryKey())
		}
		on = b.dialect.Column(assoc.Name, assoc.ForeignKey) + " = " + b.dialect.Column(source, sourceKey)
	}

	return orm.Join{Table: target.Table(), Alias: assoc.Name, On: on}, nil
}

// Joins returns the joins for the named associations, once each, in
// declaration order.
func (b *Builder) Joins(names []string) ([]orm.Join, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var joins []orm.Join
	for _, a := range b.collection.SingleAssociations() {
		if !want[a.Name] {
			continue
		}
		j, err := b.Join(a.Name)
		if err != nil {
			return nil, err
		}
		joins = append(joins, j)
		delete(want, a.Name)
	}
	for n := range want {
		return nil, fmt.Errorf("%w: %s has no single association %q", schema.ErrUnknownField, b.collection.Name, n)
	}
	return joins, nil
}

// AllJoins joins every BelongsTo and HasOne association.
func (b *Builder) AllJoins() ([]orm.Join, error) {
	var names []string
	for _, a := range b.collection.SingleAssociations() {
		names = append(names, a.Name)
	}
	return b.Joins(names)
}
