package query

import (
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ruslano69/adminquery/pkg/schema"
)

// SearchResult is the OR of every condition a search term produced.
type SearchResult struct {
	// Condition is nil when nothing matched.
	Condition sq.Sqlizer
	// FieldsSearched lists the own fields that produced a condition.
	FieldsSearched []string
	// HasSmartConditions is set when a smart-field hook contributed.
	HasSmartConditions bool
	// HasExtendedConditions is set when an association field contributed.
	HasExtendedConditions bool
}

// Empty reports whether the search cannot match any record.
func (r *SearchResult) Empty(extended bool) bool {
	if len(r.FieldsSearched) > 0 || r.HasSmartConditions {
		return false
	}
	return !extended || !r.HasExtendedConditions
}

// Search builds the search condition. requested restricts the own fields
// searched; nil means no restriction. extended also searches the fields of
// BelongsTo and HasOne associations.
// A blank term yields an empty result.
func (b *Builder) Search(search string, extended bool, requested map[string]bool) *SearchResult {
	res := &SearchResult{}
	search = strings.TrimSpace(search)
	if search == "" {
		return res
	}
	var conds sq.Or

	for _, f := range b.searchCandidates() {
		if requested != nil && !requested[f.Field] {
			continue
		}
		col := b.dialect.Column(b.collection.Table(), f.Column())
		if cond := b.fieldSearch(col, f, search, f.Field == b.collection.PrimaryKey()); cond != nil {
			conds = append(conds, cond)
			res.FieldsSearched = append(res.FieldsSearched, f.Field)
		}
	}

	for _, f := range b.collection.Fields {
		if f.Search == nil {
			continue
		}
		cond, err := f.Search(search)
		if err != nil {
			b.log.Error().Err(err).Str("field", f.Field).Msg("cannot search properly on smart field")
			continue
		}
		if cond != nil {
			conds = append(conds, cond)
			res.HasSmartConditions = true
		}
	}

	if extended {
		for _, a := range b.collection.SingleAssociations() {
			target, err := b.registry.Target(a)
			if err != nil {
				b.log.Warn().Err(err).Str("association", a.Name).Msg("skipping extended search")
				continue
			}
			for _, f := range target.Fields {
				if f.IsVirtual {
					continue
				}
				col := b.dialect.Column(a.Name, f.Column())
				if cond := b.fieldSearch(col, f, search, f.Field == target.PrimaryKey()); cond != nil {
					conds = append(conds, cond)
					res.HasExtendedConditions = true
				}
			}
		}
	}

	if len(conds) > 0 {
		res.Condition = conds
	}
	return res
}

// searchCandidates returns SearchFields when set, otherwise every column field.
func (b *Builder) searchCandidates() []schema.Field {
	var out []schema.Field
	if len(b.collection.SearchFields) > 0 {
		for _, name := range b.collection.SearchFields {
			if f, ok := b.collection.FieldByName(name); ok && !f.IsVirtual {
				out = append(out, f)
			}
		}
		return out
	}
	for _, f := range b.collection.Fields {
		if !f.IsVirtual {
			out = append(out, f)
		}
	}
	return out
}

// fieldSearch returns the condition a search term yields on one field, or nil.
func (b *Builder) fieldSearch(col string, f schema.Field, search string, primaryKey bool) sq.Sqlizer {
	term := strings.TrimSpace(search)

	switch f.Type {
	case schema.TypeNumber:
		if i, err := strconv.ParseInt(term, 10, 64); err == nil {
			return sq.Eq{col: i}
		}
		if fv, err := strconv.ParseFloat(term, 64); err == nil && !primaryKey {
			return sq.Eq{col: fv}
		}
		return nil

	case schema.TypeUUID:
		id, err := uuid.Parse(term)
		if err != nil {
			return nil
		}
		return sq.Eq{col: id.String()}

	case schema.TypeEnum:
		for _, e := range f.Enums {
			if strings.EqualFold(e, term) {
				return sq.Eq{col: e}
			}
		}
		return nil

	case schema.TypeString:
		if primaryKey {
			return sq.Eq{col: term}
		}
		return b.dialect.ILike(col, "%"+term+"%")

	default:
		return nil
	}
}
