// Package orm is a thin query facade over sqlx and squirrel: it renders
// SELECT statements for the connection dialect, executes them with retries
// and returns rows as records.
package orm

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/retry"
)

// Conn is the part of a database adapter the session needs.
type Conn interface {
	DB() *sqlx.DB
	Dialect() dialect.Dialect
	IsRetryable(err error) bool
}

// Join is a LEFT JOIN of Table aliased as Alias.
type Join struct {
	Table string
	Alias string
	On    string
}

// FindOptions describes a SELECT. Columns, GroupBy and OrderBy are SQL
// fragments already quoted for the dialect.
type FindOptions struct {
	Columns []sq.Sqlizer
	Joins   []Join
	Where   sq.Sqlizer
	GroupBy []string
	OrderBy []string
	Offset  uint64
	Limit   uint64
}

// CountOptions describes a COUNT query. An empty Column counts rows.
type CountOptions struct {
	Column   string
	Distinct bool
	Joins    []Join
	Where    sq.Sqlizer
}

// Session executes queries on one connection.
type Session struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	retryer *retry.Retryer
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the query logger. Statements are logged at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithRetryer retries transient errors. The adapter classifier decides
// which errors are transient.
func WithRetryer(r *retry.Retryer) Option {
	return func(s *Session) { s.retryer = r }
}

// WithTimeout bounds every statement.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// NewSession creates a session on an adapter connection.
func NewSession(conn Conn, opts ...Option) *Session {
	s := &Session{
		db:      conn.DB(),
		dialect: conn.Dialect(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retryer != nil {
		s.retryer = s.retryer.WithClassifier(conn.IsRetryable)
	}
	return s
}

// Dialect returns the connection dialect.
func (s *Session) Dialect() dialect.Dialect {
	return s.dialect
}

// Col is a column expression with optional bound arguments.
func Col(expr string, args ...any) sq.Sqlizer {
	return sq.Expr(expr, args...)
}

// Select renders a SELECT builder for table. Nothing is executed.
func (s *Session) Select(table string, opts FindOptions) sq.SelectBuilder {
	b := sq.Select().From(s.dialect.Quote(table))
	for _, c := range opts.Columns {
		b = b.Column(c)
	}
	if len(opts.Columns) == 0 {
		b = b.Column(s.dialect.Quote(table) + ".*")
	}
	b = s.applyJoins(b, opts.Joins)
	if opts.Where != nil {
		b = b.Where(opts.Where)
	}
	if len(opts.GroupBy) > 0 {
		b = b.GroupBy(opts.GroupBy...)
	}
	if len(opts.OrderBy) > 0 {
		b = b.OrderBy(opts.OrderBy...)
	}
	return s.dialect.Paginate(b, opts.Offset, opts.Limit, len(opts.OrderBy) > 0, "")
}

func (s *Session) applyJoins(b sq.SelectBuilder, joins []Join) sq.SelectBuilder {
	for _, j := range joins {
		b = b.LeftJoin(fmt.Sprintf("%s AS %s ON %s", s.dialect.Quote(j.Table), s.dialect.Quote(j.Alias), j.On))
	}
	return b
}

// FindAll runs a SELECT on table and returns the rows.
func (s *Session) FindAll(ctx context.Context, table string, opts FindOptions) ([]Record, error) {
	return s.Query(ctx, "find_all", s.Select(table, opts))
}

// Count returns the number of rows matching opts.
func (s *Session) Count(ctx context.Context, table string, opts CountOptions) (int64, error) {
	expr := "COUNT(*)"
	if opts.Column != "" {
		if opts.Distinct {
			expr = "COUNT(DISTINCT " + opts.Column + ")"
		} else {
			expr = "COUNT(" + opts.Column + ")"
		}
	}

	b := sq.Select(expr + " AS " + s.dialect.Quote("count")).From(s.dialect.Quote(table))
	b = s.applyJoins(b, opts.Joins)
	if opts.Where != nil {
		b = b.Where(opts.Where)
	}

	rows, err := s.Query(ctx, "count", b)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	switch n := Number(rows[0]["count"]).(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, nil
	}
}

// Aggregate computes fn(column) over the rows matching opts. fn is one of
// COUNT, SUM, AVG, MIN, MAX. The result is int64, float64 or nil.
func (s *Session) Aggregate(ctx context.Context, table, fn, column string, opts CountOptions) (any, error) {
	fn = strings.ToUpper(fn)
	switch fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
	default:
		return nil, fmt.Errorf("unsupported aggregate function: %s", fn)
	}
	if column == "" {
		column = "*"
	}

	b := sq.Select(fn + "(" + column + ") AS " + s.dialect.Quote("value")).From(s.dialect.Quote(table))
	b = s.applyJoins(b, opts.Joins)
	if opts.Where != nil {
		b = b.Where(opts.Where)
	}

	rows, err := s.Query(ctx, "aggregate", b)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return Number(rows[0]["value"]), nil
}

// Render returns the SQL and arguments of b with the dialect placeholders.
func (s *Session) Render(b sq.SelectBuilder) (string, []any, error) {
	return b.PlaceholderFormat(s.dialect.Placeholder()).ToSql()
}

// Query renders b for the dialect, executes it and scans every row.
// op labels the statement in logs and metrics.
func (s *Session) Query(ctx context.Context, op string, b sq.SelectBuilder) ([]Record, error) {
	query, args, err := s.Render(b)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}

	var records []Record
	start := time.Now()
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var qerr error
		records, qerr = s.run(ctx, query, args)
		return qerr
	})
	elapsed := time.Since(start)

	queryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		queryErrors.WithLabelValues(op).Inc()
		s.log.Debug().Err(err).Str("op", op).Str("sql", query).Msg("query failed")
		return nil, fmt.Errorf("%s query failed: %w", op, err)
	}

	s.log.Debug().
		Str("op", op).
		Str("sql", query).
		Interface("args", args).
		Dur("duration", elapsed).
		Int("rows", len(records)).
		Msg("query")

	return records, nil
}

func (s *Session) run(ctx context.Context, query string, args []any) ([]Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
