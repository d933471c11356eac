// Package resources lists the records of a collection for an admin list
// view: search, filters, segment, sort and paging, plus the matching count.
package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/filter"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// ErrSegmentNotFound is returned when the segment parameter names no
// segment of the collection.
var ErrSegmentNotFound = errors.New("segment not found")

// Getter lists records on one database session.
type Getter struct {
	session  *orm.Session
	registry *schema.Registry
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Getter.
type Option func(*Getter)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Getter) { g.log = l }
}

// WithClock overrides the clock used to resolve date keywords.
func WithClock(now func() time.Time) Option {
	return func(g *Getter) { g.now = now }
}

// NewGetter creates a resources getter.
func NewGetter(session *orm.Session, reg *schema.Registry, opts ...Option) *Getter {
	g := &Getter{
		session:  session,
		registry: reg,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// plan is a list request resolved against the schema.
type plan struct {
	collection *schema.Collection
	builder    *query.Builder
	requested  map[string]bool
	joins      []orm.Join
	where      sq.Sqlizer
	search     *query.SearchResult
}

// noMatch reports whether a search was given but cannot match anything.
func (pl *plan) noMatch(p Params) bool {
	return p.Search != "" && pl.search.Empty(p.SearchExtended)
}

// normalize trims the search term; a blank search is no search. Params
// built without ParseParams are checked here as well.
func (p Params) normalize() (Params, error) {
	p.Search = strings.TrimSpace(p.Search)
	if err := p.Page.Validate(); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return p, nil
}

func (g *Getter) prepare(ctx context.Context, p Params) (*plan, error) {
	c, err := g.registry.Get(p.Collection)
	if err != nil {
		return nil, err
	}
	ft, err := query.ParseFilterType(p.FilterType)
	if err != nil {
		return nil, err
	}
	loc, err := filter.LoadLocation(p.Timezone)
	if err != nil {
		return nil, err
	}

	d := g.session.Dialect()
	b := query.NewBuilder(g.registry, c, filter.NewParser(d, loc, g.now()), d, g.log)
	pl := &plan{
		collection: c,
		builder:    b,
		requested:  p.RequestedFields(c.PrimaryKey()),
		search:     &query.SearchResult{},
	}

	var conds []sq.Sqlizer
	if p.Search != "" {
		pl.search = b.Search(p.Search, p.SearchExtended, pl.requested)
		if pl.search.Condition != nil {
			conds = append(conds, pl.search.Condition)
		}
	}

	if filters := p.Filters(); len(filters) > 0 {
		cond, err := b.FilterGroup(filters, ft)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}

	if p.Segment != "" {
		cond, err := g.segmentCondition(ctx, b, c, p.Segment)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}
	pl.where = query.Combine(conds, query.FilterAnd)

	pl.joins, err = g.joins(b, c, p, pl.requested)
	if err != nil {
		return nil, err
	}
	return pl, nil
}

// joins selects the associations to join: all of them without a field
// list or with an extended search, otherwise those requested.
func (g *Getter) joins(b *query.Builder, c *schema.Collection, p Params, requested map[string]bool) ([]orm.Join, error) {
	if requested == nil || (p.Search != "" && p.SearchExtended) {
		return b.AllJoins()
	}
	var names []string
	for _, a := range c.SingleAssociations() {
		if requested[a.Name] {
			names = append(names, a.Name)
		}
	}
	return b.Joins(names)
}

func (g *Getter) segmentCondition(ctx context.Context, b *query.Builder, c *schema.Collection, name string) (sq.Sqlizer, error) {
	seg, ok := c.Segment(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrSegmentNotFound, c.Name, name)
	}
	if seg.Where != nil {
		cond, err := seg.Where(ctx)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", name, err)
		}
		return cond, nil
	}
	return b.FilterGroup(seg.Filters, seg.FilterType)
}

// Perform returns one page of records and the fields the search matched.
// fieldsSearched is nil without a search. Association values are nested
// under the association name.
func (g *Getter) Perform(ctx context.Context, p Params) ([]orm.Record, []string, error) {
	p, err := p.normalize()
	if err != nil {
		return nil, nil, err
	}
	pl, err := g.prepare(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	var fieldsSearched []string
	if p.Search != "" {
		fieldsSearched = append([]string{}, pl.search.FieldsSearched...)
	}
	if pl.noMatch(p) {
		g.log.Debug().Str("collection", p.Collection).Str("search", p.Search).Msg("search matches no field")
		return []orm.Record{}, fieldsSearched, nil
	}

	order, _, err := pl.builder.Order(p.Sort)
	if err != nil {
		return nil, nil, err
	}

	records, err := g.session.FindAll(ctx, pl.collection.Table(), orm.FindOptions{
		Columns: g.columns(pl, p),
		Joins:   pl.joins,
		Where:   pl.where,
		OrderBy: order,
		Offset:  p.Page.Offset(),
		Limit:   p.Page.Limit(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", p.Collection, err)
	}

	if records == nil {
		records = []orm.Record{}
	}
	for _, rec := range records {
		nestAssociations(rec, pl.joins)
	}
	return records, fieldsSearched, nil
}

// Count returns the number of records matching the request. Joined rows
// are counted once.
func (g *Getter) Count(ctx context.Context, p Params) (int64, error) {
	p, err := p.normalize()
	if err != nil {
		return 0, err
	}
	pl, err := g.prepare(ctx, p)
	if err != nil {
		return 0, err
	}
	if pl.noMatch(p) {
		return 0, nil
	}

	opts := orm.CountOptions{
		Joins:    pl.joins,
		Where:    pl.where,
		Distinct: len(pl.joins) > 0,
	}
	if pk := pl.collection.PrimaryKey(); pk != "" {
		opts.Column = pl.builder.Column(pk)
	} else {
		opts.Distinct = false
	}

	n, err := g.session.Count(ctx, pl.collection.Table(), opts)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", p.Collection, err)
	}
	return n, nil
}

// columns lists the selected columns aliased by field name, association
// columns as "assoc.field".
func (g *Getter) columns(pl *plan, p Params) []sq.Sqlizer {
	d := g.session.Dialect()
	c := pl.collection

	var cols []sq.Sqlizer
	for _, f := range c.Fields {
		if f.IsVirtual || (pl.requested != nil && !pl.requested[f.Field]) {
			continue
		}
		cols = append(cols, orm.Col(d.Column(c.Table(), f.Column())+" AS "+d.Quote(f.Field)))
	}

	for _, j := range pl.joins {
		assoc, _ := c.Association(j.Alias)
		target, err := g.registry.Target(assoc)
		if err != nil {
			continue
		}
		only := fieldList(p.Fields, j.Alias)
		for _, f := range target.Fields {
			if f.IsVirtual || (only != nil && !only[f.Field]) {
				continue
			}
			cols = append(cols, orm.Col(d.Column(j.Alias, f.Column())+" AS "+d.Quote(j.Alias+"."+f.Field)))
		}
	}
	return cols
}

// fieldList parses fields[name]; nil means every field.
func fieldList(fields map[string]string, name string) map[string]bool {
	list, ok := fields[name]
	if !ok {
		return nil
	}
	out := make(map[string]bool)
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out[f] = true
		}
	}
	return out
}

// nestAssociations moves "assoc.field" values into rec[assoc]. An
// association whose values are all NULL becomes nil.
func nestAssociations(rec orm.Record, joins []orm.Join) {
	for _, j := range joins {
		prefix := j.Alias + "."
		nested := orm.Record{}
		present := false
		for k, v := range rec {
			name, ok := strings.CutPrefix(k, prefix)
			if !ok {
				continue
			}
			nested[name] = v
			if v != nil {
				present = true
			}
			delete(rec, k)
		}
		if present {
			rec[j.Alias] = nested
		} else {
			rec[j.Alias] = nil
		}
	}
}
