package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
)

// Page is the page[number] / page[size] pair. Zero values take the defaults.
type Page struct {
	Number uint64
	Size   uint64
}

// Limit returns the page size.
func (p Page) Limit() uint64 {
	if p.Size == 0 {
		return DefaultPageSize
	}
	return p.Size
}

// ErrPageOutOfRange is returned when page[number] * page[size] does not
// fit an offset.
var ErrPageOutOfRange = errors.New("page out of range")

// Validate reports a page whose offset would overflow.
func (p Page) Validate() error {
	if p.Number > 1 && p.Number-1 > math.MaxUint64/p.Limit() {
		return fmt.Errorf("%w: number %d, size %d", ErrPageOutOfRange, p.Number, p.Limit())
	}
	return nil
}

// Offset returns the number of rows to skip. Call Validate first.
func (p Page) Offset() uint64 {
	n := p.Number
	if n == 0 {
		n = DefaultPageNumber
	}
	return (n - 1) * p.Limit()
}

// Order builds ORDER BY from sort ("field", "-field", "assoc.field").
// It also returns the association the sort needs joined, if any. An empty
// sort orders by primary key DESC, or not at all without a primary key.
func (b *Builder) Order(sort string) ([]string, string, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		pk := b.collection.PrimaryKey()
		if pk == "" {
			return nil, "", nil
		}
		return []string{b.Column(pk) + " DESC"}, "", nil
	}

	dir := " ASC"
	if strings.HasPrefix(sort, "-") {
		dir = " DESC"
		sort = sort[1:]
	}

	r, err := b.Resolve(sort, ".")
	if err != nil {
		return nil, "", err
	}
	return []string{r.Column + dir}, r.Association, nil
}

// SortAssociation returns the association named by an "assoc.field" sort.
func SortAssociation(sort string) string {
	sort = strings.TrimPrefix(strings.TrimSpace(sort), "-")
	if assoc, _, ok := strings.Cut(sort, "."); ok {
		return assoc
	}
	return ""
}
