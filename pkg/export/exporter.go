// Package export writes the records of a list request to CSV or XLSX,
// page by page, and optionally uploads the file to S3.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/resources"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// DefaultBatchSize - размер страницы выгрузки по умолчанию
const DefaultBatchSize = 1000

// Source lists records page by page.
type Source interface {
	Perform(ctx context.Context, p resources.Params) ([]orm.Record, []string, error)
}

// Exporter выгружает записи коллекции батчами
type Exporter struct {
	source    Source
	registry  *schema.Registry
	batchSize uint64
	log       zerolog.Logger
}

// NewExporter создает экспортер. batchSize <= 0 означает DefaultBatchSize.
func NewExporter(source Source, reg *schema.Registry, batchSize int, log zerolog.Logger) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{source: source, registry: reg, batchSize: uint64(batchSize), log: log}
}

// Export writes every record matching p to w and returns the number of
// rows written. p.Page is ignored. w is not closed.
func (e *Exporter) Export(ctx context.Context, p resources.Params, w Writer) (int, error) {
	columns, err := e.Columns(p)
	if err != nil {
		return 0, err
	}
	if err := w.WriteHeader(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	total := 0
	for page := uint64(1); ; page++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		p.Page = query.Page{Number: page, Size: e.batchSize}
		records, _, err := e.source.Perform(ctx, p)
		if err != nil {
			return total, fmt.Errorf("export batch %d: %w", page, err)
		}

		for _, rec := range records {
			if err := w.WriteRow(Flatten(rec, columns)); err != nil {
				return total, fmt.Errorf("failed to write row %d: %w", total+1, err)
			}
			total++
		}

		e.log.Debug().
			Str("collection", p.Collection).
			Uint64("batch", page).
			Int("rows", len(records)).
			Msg("export batch written")

		if uint64(len(records)) < e.batchSize {
			break
		}
	}

	e.log.Info().Str("collection", p.Collection).Int("rows", total).Msg("export completed")
	return total, nil
}

// Columns returns the exported columns in schema order: own fields, then
// "assoc.field" for each single association.
func (e *Exporter) Columns(p resources.Params) ([]string, error) {
	c, err := e.registry.Get(p.Collection)
	if err != nil {
		return nil, err
	}
	requested := p.RequestedFields(c.PrimaryKey())

	var cols []string
	for _, f := range c.Fields {
		if f.IsVirtual || (requested != nil && !requested[f.Field]) {
			continue
		}
		cols = append(cols, f.Field)
	}

	for _, a := range c.SingleAssociations() {
		if requested != nil && !requested[a.Name] {
			continue
		}
		target, err := e.registry.Target(a)
		if err != nil {
			return nil, err
		}
		only := fieldSet(p.Fields, a.Name)
		for _, f := range target.Fields {
			if f.IsVirtual || (only != nil && !only[f.Field]) {
				continue
			}
			cols = append(cols, a.Name+"."+f.Field)
		}
	}
	return cols, nil
}

// Flatten reads the values of columns from a record, following nested
// associations for "assoc.field" columns.
func Flatten(rec orm.Record, columns []string) []any {
	values := make([]any, len(columns))
	for i, col := range columns {
		if v, ok := rec[col]; ok {
			values[i] = v
			continue
		}
		assoc, field, ok := strings.Cut(col, ".")
		if !ok {
			continue
		}
		if nested, ok := rec[assoc].(orm.Record); ok {
			values[i] = nested[field]
		}
	}
	return values
}

func fieldSet(fields map[string]string, name string) map[string]bool {
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
