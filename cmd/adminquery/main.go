package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/adapters"
	_ "github.com/ruslano69/adminquery/pkg/adapters/mssql"
	_ "github.com/ruslano69/adminquery/pkg/adapters/mysql"
	_ "github.com/ruslano69/adminquery/pkg/adapters/postgres"
	_ "github.com/ruslano69/adminquery/pkg/adapters/sqlite"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/resultcache"
	"github.com/ruslano69/adminquery/pkg/retry"
	"github.com/ruslano69/adminquery/pkg/schema"
)

var errNoCommand = errors.New("no command specified")

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errNoCommand):
		PrintHelp()
		os.Exit(1)
	default:
		fatal("%v", err)
	}
}

// run parses args and executes one command. Results go to stdout, logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adminquery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags, err := ParseFlags(fs, args)
	if err != nil {
		return err
	}

	if *flags.Version {
		PrintVersion()
		return nil
	}
	if *flags.Help {
		PrintHelp()
		return nil
	}
	if *flags.CreateConfig != "" {
		return createConfigTemplate(*flags.CreateConfig, *flags.Config, stdout)
	}
	if !flags.commandWasSpecified() {
		return errNoCommand
	}

	config, err := LoadConfig(*flags.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(config.Logging, stderr)
	if err != nil {
		return err
	}

	app, err := openApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	var cmdErr error
	switch {
	case *flags.List != "":
		cmdErr = app.List(ctx, *flags.List, *flags.Query, stdout)
	case *flags.Count != "":
		cmdErr = app.Count(ctx, *flags.Count, *flags.Query, stdout)
	case *flags.Stat != "":
		cmdErr = app.Stat(ctx, *flags.Stat, stdout)
	case *flags.Export != "":
		cmdErr = app.Export(ctx, ExportOptions{
			Collection: *flags.Export,
			Query:      *flags.Query,
			Format:     strings.ToLower(*flags.Format),
			Sheet:      *flags.Sheet,
			OutputFile: determineOutputFile(*flags.Output, *flags.Export, strings.ToLower(*flags.Format)),
			Upload:     *flags.Upload,
		})
	case *flags.Invalidate != "":
		cmdErr = app.Invalidate(ctx, *flags.Invalidate, stdout)
	}

	if config.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(config.MetricsFile, prometheus.DefaultGatherer); err != nil {
			logger.Warn().Err(err).Str("file", config.MetricsFile).Msg("failed to write metrics")
		}
	}

	return cmdErr
}

// newLogger builds the zerolog logger from the logging section.
func newLogger(cfg LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
		}
		level = l
	}

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid logging.format %q", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// App holds the connection and services of one CLI run.
type App struct {
	config   *Config
	log      zerolog.Logger
	registry *schema.Registry
	adapter  adapters.Adapter
	session  *orm.Session
	cache    *resultcache.Cache
}

// openApp loads the schema, connects to the database and, if enabled, Redis.
func openApp(ctx context.Context, config *Config, logger zerolog.Logger) (*App, error) {
	reg, err := schema.LoadFile(config.SchemaFile)
	if err != nil {
		return nil, err
	}

	connectTimeout, queryTimeout := config.Database.Timeouts()
	adapter, err := adapters.New(ctx, adapters.Config{
		Type:     config.Database.Type,
		DSN:      config.Database.BuildDSN(),
		Schema:   config.Database.Schema,
		MaxConns: config.Database.MaxConns,
		MinConns: config.Database.MinConns,
		Timeout:  connectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Database.Type, err)
	}

	opts := []orm.Option{orm.WithLogger(logger)}
	if queryTimeout > 0 {
		opts = append(opts, orm.WithTimeout(queryTimeout))
	}
	if config.Retry.Enabled {
		retryer, err := retry.NewRetryer(config.Retry.RetryConfig())
		if err != nil {
			adapter.Close(ctx)
			return nil, fmt.Errorf("invalid retry config: %w", err)
		}
		opts = append(opts, orm.WithRetryer(retryer))
	}

	app := &App{
		config:   config,
		log:      logger,
		registry: reg,
		adapter:  adapter,
		session:  orm.NewSession(adapter, opts...),
	}

	if config.Cache.Enabled {
		cache, err := resultcache.New(config.Cache.CacheConfig())
		if err != nil {
			adapter.Close(ctx)
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		app.cache = cache
	}

	logger.Debug().
		Str("db", adapter.GetDatabaseType()).
		Strs("collections", reg.Names()).
		Bool("cache", app.cache != nil).
		Msg("connected")

	return app, nil
}

// Close releases the database and Redis connections.
func (a *App) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close cache")
		}
	}
	if err := a.adapter.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate(dbType, path string, out io.Writer) error {
	switch dbType {
	case "postgres", "mysql", "mssql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	if err := SaveConfig(path, CreateSampleConfig(dbType)); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Created sample %s config: %s\n", dbType, path)
	fmt.Fprintln(out, "Edit the file with your database credentials and run:")
	fmt.Fprintf(out, "  adminquery --list <collection> --config %s\n", path)
	return nil
}

// determineOutputFile determines output file name
func determineOutputFile(output, baseName, ext string) string {
	if output != "" {
		return output
	}
	if !strings.HasSuffix(baseName, "."+ext) {
		return baseName + "." + ext
	}
	return baseName
}

// fatal prints error and exits
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
