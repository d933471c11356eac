package resources

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// ErrInvalidParams is returned for malformed list parameters.
var ErrInvalidParams = errors.New("invalid list parameters")

// Params are the list request parameters.
type Params struct {
	Collection string
	// Fields maps a collection or association name to its comma-separated
	// field list (fields[name]=a,b).
	Fields map[string]string
	// Filter maps a field path to comma-separated values (filter[path]=v1,v2).
	Filter         map[string]string
	FilterType     string
	Search         string
	SearchExtended bool
	Sort           string
	Page           query.Page
	Segment        string
	Timezone       string
}

// ParseParams reads list parameters from a URL query.
func ParseParams(collection string, v url.Values) (Params, error) {
	p := Params{
		Collection: collection,
		FilterType: v.Get("filterType"),
		Search:     strings.TrimSpace(v.Get("search")),
		Sort:       v.Get("sort"),
		Segment:    v.Get("segment"),
		Timezone:   v.Get("timezone"),
	}

	if s := v.Get("searchExtended"); s != "" {
		ext, err := schema.NewConverter().ParseBool(s, schema.Field{Field: "searchExtended"})
		if err != nil {
			return Params{}, fmt.Errorf("%w: searchExtended=%q", ErrInvalidParams, s)
		}
		p.SearchExtended = ext
	}

	var err error
	if p.Page.Number, err = parseUint(v, "page[number]"); err != nil {
		return Params{}, err
	}
	if p.Page.Size, err = parseUint(v, "page[size]"); err != nil {
		return Params{}, err
	}
	if err := p.Page.Validate(); err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	for key := range v {
		if name, ok := bracketKey(key, "fields"); ok {
			if p.Fields == nil {
				p.Fields = make(map[string]string)
			}
			p.Fields[name] = v.Get(key)
		}
		if path, ok := bracketKey(key, "filter"); ok {
			if p.Filter == nil {
				p.Filter = make(map[string]string)
			}
			p.Filter[path] = v.Get(key)
		}
	}
	return p, nil
}

// bracketKey extracts name from "prefix[name]".
func bracketKey(key, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+"[")
	if !ok || !strings.HasSuffix(rest, "]") || len(rest) < 2 {
		return "", false
	}
	return rest[:len(rest)-1], true
}

func parseUint(v url.Values, key string) (uint64, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParams, key, s)
	}
	return n, nil
}

// Filters expands the filter map into {field, value} pairs, one per
// comma-separated value, in field order.
func (p Params) Filters() []schema.Filter {
	paths := make([]string, 0, len(p.Filter))
	for path := range p.Filter {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []schema.Filter
	for _, path := range paths {
		for _, value := range strings.Split(p.Filter[path], ",") {
			out = append(out, schema.Filter{Field: path, Value: value})
		}
	}
	return out
}

// RequestedFields returns the field names the response needs, or nil when
// fields[collection] is absent: the primary key, the listed fields, and the
// associations used by filters and sort.
func (p Params) RequestedFields(primaryKey string) map[string]bool {
	list, ok := p.Fields[p.Collection]
	if !ok {
		return nil
	}

	requested := make(map[string]bool)
	if primaryKey != "" {
		requested[primaryKey] = true
	}
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			requested[name] = true
		}
	}
	for _, assoc := range query.FilterAssociations(p.Filters()) {
		requested[assoc] = true
	}
	if assoc := query.SortAssociation(p.Sort); assoc != "" {
		requested[assoc] = true
	}
	return requested
}
