package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/adminquery/pkg/export"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/resources"
	"github.com/ruslano69/adminquery/pkg/stats"
)

// ListResult - ответ команды --list
type ListResult struct {
	Records        []orm.Record `json:"records"`
	FieldsSearched []string     `json:"fieldsSearched,omitempty"`
}

// ExportOptions contains options for --export
type ExportOptions struct {
	Collection string
	Query      string
	Format     string
	Sheet      string
	OutputFile string
	Upload     bool
}

func (a *App) getter() *resources.Getter {
	return resources.NewGetter(a.session, a.registry, resources.WithLogger(a.log))
}

func (a *App) parseParams(collection, rawQuery string) (resources.Params, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return resources.Params{}, fmt.Errorf("%w: %v", resources.ErrInvalidParams, err)
	}
	return resources.ParseParams(collection, values)
}

// List prints one page of records as JSON.
func (a *App) List(ctx context.Context, collection, rawQuery string, out io.Writer) error {
	p, err := a.parseParams(collection, rawQuery)
	if err != nil {
		return err
	}

	records, searched, err := a.getter().Perform(ctx, p)
	if err != nil {
		return err
	}

	a.log.Info().Str("collection", collection).Int("rows", len(records)).Msg("list completed")
	return writeJSON(out, ListResult{Records: records, FieldsSearched: searched})
}

// Count prints the number of matching records.
func (a *App) Count(ctx context.Context, collection, rawQuery string, out io.Writer) error {
	p, err := a.parseParams(collection, rawQuery)
	if err != nil {
		return err
	}

	n, err := a.getter().Count(ctx, p)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]int64{"count": n})
}

// Stat reads chart params from a JSON or YAML file and prints the chart.
func (a *App) Stat(ctx context.Context, paramsFile string, out io.Writer) error {
	data, err := os.ReadFile(paramsFile)
	if err != nil {
		return fmt.Errorf("failed to read params file: %w", err)
	}

	var p stats.Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse params file: %w", err)
	}

	opts := []stats.Option{stats.WithLogger(a.log)}
	if a.cache != nil {
		opts = append(opts, stats.WithCache(a.cache))
	}

	result, err := stats.NewService(a.session, a.registry, opts...).Perform(ctx, p)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

// Export writes every matching record to a file and optionally uploads it.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	p, err := a.parseParams(opts.Collection, opts.Query)
	if err != nil {
		return err
	}

	file, err := os.Create(opts.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	w, err := export.NewWriter(opts.Format, file, opts.Sheet)
	if err != nil {
		return err
	}

	exporter := export.NewExporter(a.getter(), a.registry, a.config.Export.BatchSize, a.log)
	n, err := exporter.Export(ctx, p, w)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	a.log.Info().Str("file", opts.OutputFile).Int("rows", n).Msg("export written")

	if !opts.Upload {
		return nil
	}

	uploader, err := export.NewS3Uploader(ctx, a.config.Export.S3Config())
	if err != nil {
		return err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind output file: %w", err)
	}
	location, err := uploader.Upload(ctx, filepath.Base(opts.OutputFile), file, export.ContentType(opts.Format))
	if err != nil {
		return err
	}

	a.log.Info().Str("location", location).Msg("export uploaded")
	return nil
}

// Invalidate drops the cached charts of a collection.
func (a *App) Invalidate(ctx context.Context, collection string, out io.Writer) error {
	if a.cache == nil {
		return fmt.Errorf("cache is not enabled in config")
	}
	n, err := a.cache.Invalidate(ctx, collection)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]int64{"invalidated": n})
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
