package stats

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ruslano69/adminquery/pkg/adapters"
	"github.com/ruslano69/adminquery/pkg/adapters/sqlite"
	"github.com/ruslano69/adminquery/pkg/dialect"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

const ordersSchema = `
collections:
  - name: orders
    primaryKeys: [id]
    fields:
      - {field: id, type: Number}
      - {field: status, type: Enum, enums: [paid, pending, refunded]}
      - {field: amount, type: Number}
      - {field: createdAt, columnName: created_at, type: Date}
      - {field: shippedOn, columnName: shipped_on, type: Dateonly}
      - {field: customerId, columnName: customer_id, type: Number}
    associations:
      - {name: customer, type: BelongsTo, target: customers, foreignKey: customer_id}
  - name: customers
    primaryKeys: [id]
    fields:
      - {field: id, type: Number}
      - {field: name, type: String}
`

// testNow - среда, 15 мая 2024
var testNow = time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)

func setupService(t *testing.T, opts ...Option) (*Service, *sqlite.Adapter) {
	t.Helper()
	ctx := context.Background()

	a := &sqlite.Adapter{}
	if err := a.Connect(ctx, adapters.Config{Type: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { a.Close(ctx) })

	stmts := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			status TEXT,
			amount INTEGER,
			created_at TEXT,
			shipped_on TEXT,
			customer_id INTEGER
		)`,
		`INSERT INTO customers (id, name) VALUES (1, 'Alice'), (2, 'Bob')`,
		`INSERT INTO orders (id, status, amount, created_at, shipped_on, customer_id) VALUES
			(1, 'paid',     100, '2024-05-01 10:00:00', '2024-05-02', 1),
			(2, 'paid',      50, '2024-05-01 18:00:00', NULL,         1),
			(3, 'pending',   20, '2024-05-03 09:00:00', NULL,         2),
			(4, 'paid',      30, '2024-05-14 08:00:00', NULL,         2),
			(5, 'refunded',  10, '2024-05-15 09:00:00', NULL,         1),
			(6, 'pending',    5, '2024-05-15 11:00:00', NULL,         NULL)`,
	}
	for _, s := range stmts {
		if _, err := a.DB().ExecContext(ctx, s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}

	reg := schema.NewRegistry()
	if err := reg.Parse([]byte(ordersSchema)); err != nil {
		t.Fatalf("Parse schema: %v", err)
	}

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(orm.NewSession(a), reg, opts...), a
}

func TestLine_Day(t *testing.T) {
	s, _ := setupService(t)

	res, err := s.Line(context.Background(), Params{
		Type:             "Line",
		Collection:       "orders",
		Aggregate:        "Count",
		GroupByDateField: "createdAt",
		TimeRange:        "Day",
	})
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}

	if len(res.Value) != 15 {
		t.Fatalf("Expected 15 points, got %d: %+v", len(res.Value), res.Value)
	}
	checks := map[int]LinePoint{
		0:  {Label: "01/05/2024", Values: LineValues{Value: 2}},
		1:  {Label: "02/05/2024", Values: LineValues{Value: 0}},
		2:  {Label: "03/05/2024", Values: LineValues{Value: 1}},
		13: {Label: "14/05/2024", Values: LineValues{Value: 1}},
		14: {Label: "15/05/2024", Values: LineValues{Value: 2}},
	}
	for i, want := range checks {
		if res.Value[i] != want {
			t.Errorf("point %d = %+v, want %+v", i, res.Value[i], want)
		}
	}
}

func TestLine_Week(t *testing.T) {
	s, _ := setupService(t)

	res, err := s.Line(context.Background(), Params{
		Collection:       "orders",
		Aggregate:        "count",
		GroupByDateField: "createdAt",
		TimeRange:        "week",
	})
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}

	want := []LinePoint{
		{Label: "W18-2024", Values: LineValues{Value: 3}},
		{Label: "W19-2024", Values: LineValues{Value: 0}},
		{Label: "W20-2024", Values: LineValues{Value: 3}},
	}
	if !reflect.DeepEqual(res.Value, want) {
		t.Errorf("Line week = %+v, want %+v", res.Value, want)
	}
}

func TestLine_MonthWithFilter(t *testing.T) {
	s, _ := setupService(t)

	res, err := s.Line(context.Background(), Params{
		Collection:       "orders",
		Aggregate:        "sum",
		AggregateField:   "amount",
		GroupByDateField: "createdAt",
		TimeRange:        "month",
		Filters:          []schema.Filter{{Field: "status", Value: "paid"}},
	})
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}

	want := []LinePoint{{Label: "May 24", Values: LineValues{Value: 180}}}
	if !reflect.DeepEqual(res.Value, want) {
		t.Errorf("Line month = %+v, want %+v", res.Value, want)
	}
}

func TestLine_Empty(t *testing.T) {
	s, _ := setupService(t)

	res, err := s.Line(context.Background(), Params{
		Collection:       "orders",
		Aggregate:        "count",
		GroupByDateField: "createdAt",
		TimeRange:        "year",
		Filters:          []schema.Filter{{Field: "status", Value: "cancelled"}},
	})
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}
	if res.Value == nil || len(res.Value) != 0 {
		t.Errorf("Expected empty non-nil points, got %#v", res.Value)
	}
}

func TestPie(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params Params
		want   []PieEntry
	}{
		{
			name:   "own field",
			params: Params{Collection: "orders", Aggregate: "count", GroupByField: "status"},
			want:   []PieEntry{{"paid", 3}, {"pending", 2}, {"refunded", 1}},
		},
		{
			name: "association field",
			params: Params{
				Collection:     "orders",
				Aggregate:      "sum",
				AggregateField: "amount",
				GroupByField:   "customer:name",
			},
			want: []PieEntry{{"Alice", 160}, {"Bob", 50}, {"null", 5}},
		},
		{
			name: "date key in timezone",
			params: Params{
				Collection:   "orders",
				Aggregate:    "count",
				GroupByField: "createdAt",
				Filters:      []schema.Filter{{Field: "status", Value: "refunded"}},
				Timezone:     "+02:00",
			},
			want: []PieEntry{{"15/05/2024 11:00:00", 1}},
		},
		{
			name:   "dateonly key",
			params: Params{Collection: "orders", Aggregate: "count", GroupByField: "shippedOn"},
			want:   []PieEntry{{"null", 5}, {"02/05/2024", 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Pie(ctx, tt.params)
			if err != nil {
				t.Fatalf("Pie failed: %v", err)
			}
			if !reflect.DeepEqual(res.Value, tt.want) {
				t.Errorf("Pie = %+v, want %+v", res.Value, tt.want)
			}
		})
	}
}

func TestValue(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		params       Params
		wantCurrent  float64
		wantPrevious *float64
	}{
		{
			name:        "no filters",
			params:      Params{Collection: "orders", Aggregate: "count"},
			wantCurrent: 6,
		},
		{
			name: "today with previous",
			params: Params{
				Collection: "orders",
				Aggregate:  "count",
				Filters:    []schema.Filter{{Field: "createdAt", Value: "$today"}},
			},
			wantCurrent:  2,
			wantPrevious: ptr(1),
		},
		{
			name: "previous days combined with another filter",
			params: Params{
				Collection:     "orders",
				Aggregate:      "sum",
				AggregateField: "amount",
				Filters: []schema.Filter{
					{Field: "status", Value: "paid"},
					{Field: "createdAt", Value: "$previous7Days"},
				},
				FilterType: "and",
			},
			wantCurrent:  30,
			wantPrevious: ptr(150),
		},
		{
			name: "or filter type skips previous",
			params: Params{
				Collection: "orders",
				Aggregate:  "count",
				Filters: []schema.Filter{
					{Field: "createdAt", Value: "$today"},
					{Field: "status", Value: "refunded"},
				},
				FilterType: "or",
			},
			wantCurrent: 2,
		},
		{
			name: "keyword without previous interval",
			params: Params{
				Collection:     "orders",
				Aggregate:      "max",
				AggregateField: "amount",
				Filters:        []schema.Filter{{Field: "createdAt", Value: "$past"}},
			},
			wantCurrent: 100,
		},
		{
			name: "empty aggregate is zero",
			params: Params{
				Collection:     "orders",
				Aggregate:      "sum",
				AggregateField: "amount",
				Filters:        []schema.Filter{{Field: "status", Value: "cancelled"}},
			},
			wantCurrent: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Value(ctx, tt.params)
			if err != nil {
				t.Fatalf("Value failed: %v", err)
			}
			if res.Value.CountCurrent != tt.wantCurrent {
				t.Errorf("countCurrent = %v, want %v", res.Value.CountCurrent, tt.wantCurrent)
			}
			if !reflect.DeepEqual(res.Value.CountPrevious, tt.wantPrevious) {
				t.Errorf("countPrevious = %v, want %v", res.Value.CountPrevious, tt.wantPrevious)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestPerform_Errors(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"unknown type", Params{Type: "Leaderboard", Collection: "orders", Aggregate: "count"}, ErrInvalidStatType},
		{"unknown collection", Params{Type: "Value", Collection: "nope", Aggregate: "count"}, schema.ErrUnknownCollection},
		{"invalid aggregate", Params{Type: "Value", Collection: "orders", Aggregate: "median"}, ErrInvalidAggregate},
		{"invalid filter type", Params{Type: "Value", Collection: "orders", Aggregate: "count", FilterType: "xor"}, query.ErrInvalidFilterType},
		{"invalid time range", Params{Type: "Line", Collection: "orders", Aggregate: "count", GroupByDateField: "createdAt", TimeRange: "hour"}, dialect.ErrInvalidTimeRange},
		{"unknown group field", Params{Type: "Pie", Collection: "orders", Aggregate: "count", GroupByField: "color"}, schema.ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Perform(ctx, tt.params); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// memCache - кеш в памяти для тестов
type memCache struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func (c *memCache) key(collection string, params any) string {
	b, _ := json.Marshal(params)
	return collection + ":" + string(b)
}

func (c *memCache) Get(_ context.Context, collection string, params any, dst any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.data[c.key(collection, params)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, collection string, params any, result any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	c.data[c.key(collection, params)] = b
	c.sets++
	return nil
}

func TestPerform_Cache(t *testing.T) {
	cache := &memCache{data: make(map[string][]byte)}
	s, a := setupService(t, WithCache(cache))
	ctx := context.Background()

	p := Params{Type: "Value", Collection: "orders", Aggregate: "count"}

	first, err := s.Perform(ctx, p)
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("Expected 1 cache write, got %d", cache.sets)
	}

	if _, err := a.DB().ExecContext(ctx, `INSERT INTO orders (id, status, amount) VALUES (7, 'paid', 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	second, err := s.Perform(ctx, p)
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected cached result %+v, got %+v", first, second)
	}
	if cache.sets != 1 {
		t.Errorf("Cache hit must not write, got %d writes", cache.sets)
	}

	// Ошибка кеша не ломает расчет
	cache.getErr = errors.New("connection refused")
	res, err := s.Perform(ctx, p)
	if err != nil {
		t.Fatalf("Perform with failing cache: %v", err)
	}
	if got := res.(*ValueResult).Value.CountCurrent; got != 7 {
		t.Errorf("Expected fresh count 7, got %v", got)
	}
}

func TestPerform_CacheDayRollover(t *testing.T) {
	cache := &memCache{data: make(map[string][]byte)}
	now := testNow
	s, a := setupService(t, WithCache(cache), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	utc := Params{Type: "Value", Collection: "orders", Aggregate: "count"}
	tokyo := utc
	tokyo.Timezone = "Asia/Tokyo"

	for _, p := range []Params{utc, tokyo} {
		if _, err := s.Perform(ctx, p); err != nil {
			t.Fatalf("Perform(%q) failed: %v", p.Timezone, err)
		}
	}
	if cache.sets != 2 {
		t.Fatalf("Expected 2 cache writes, got %d", cache.sets)
	}

	if _, err := a.DB().ExecContext(ctx, `INSERT INTO orders (id, status, amount) VALUES (7, 'paid', 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// 15:30 UTC: в Токио уже 16 мая, в UTC еще 15
	now = testNow.Add(time.Hour)

	res, err := s.Perform(ctx, utc)
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if got := res.(*ValueResult).Value.CountCurrent; got != 6 {
		t.Errorf("same day must be served from cache, got count %v", got)
	}

	res, err = s.Perform(ctx, tokyo)
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if got := res.(*ValueResult).Value.CountCurrent; got != 7 {
		t.Errorf("next day must recompute, got count %v", got)
	}
	if cache.sets != 3 {
		t.Errorf("Expected 3 cache writes, got %d", cache.sets)
	}
}

// renderConn - соединение без базы, только рендер SQL
type renderConn struct{ d dialect.Dialect }

func (c renderConn) DB() *sqlx.DB { return nil }

func (c renderConn) Dialect() dialect.Dialect { return c.d }

func (c renderConn) IsRetryable(error) bool { return false }

const plainOrdersSchema = `
collections:
  - name: orders
    primaryKeys: [id]
    fields:
      - {field: id, type: Number}
      - {field: status, type: String}
      - {field: createdAt, columnName: created_at, type: Date}
`

func renderService(t *testing.T, d dialect.Dialect) *Service {
	t.Helper()
	reg := schema.NewRegistry()
	if err := reg.Parse([]byte(plainOrdersSchema)); err != nil {
		t.Fatalf("Parse schema: %v", err)
	}
	return NewService(orm.NewSession(renderConn{d}), reg, WithClock(func() time.Time { return testNow }))
}

func sameArgs(got, want []any) bool {
	if len(got) == 0 && len(want) == 0 {
		return true
	}
	return reflect.DeepEqual(got, want)
}

func TestLineSQL_Dialects(t *testing.T) {
	const mssqlWeek = `FORMAT(DATEADD(DAY, 1 - DATEPART(dw, [orders].[created_at]), [orders].[created_at]), 'yyyy-MM-dd 00:00:00')`

	tests := []struct {
		name     string
		d        dialect.Dialect
		params   Params
		wantSQL  string
		wantArgs []any
	}{
		{
			name:   "postgres binds range and timezone",
			d:      dialect.Postgres,
			params: Params{Timezone: "Europe/Paris", Filters: []schema.Filter{{Field: "status", Value: "paid"}}},
			wantSQL: `SELECT to_char(date_trunc($1, "orders"."created_at" AT TIME ZONE $2), 'YYYY-MM-DD 00:00:00') AS "date", ` +
				`COUNT("orders"."id") AS "value" FROM "orders" WHERE "orders"."status" = $3 GROUP BY 1 ORDER BY 1`,
			wantArgs: []any{"week", "Europe/Paris", "paid"},
		},
		{
			name:     "postgres default timezone",
			d:        dialect.Postgres,
			wantSQL:  `SELECT to_char(date_trunc($1, "orders"."created_at" AT TIME ZONE $2), 'YYYY-MM-DD 00:00:00') AS "date", COUNT("orders"."id") AS "value" FROM "orders" GROUP BY 1 ORDER BY 1`,
			wantArgs: []any{"week", "UTC"},
		},
		{
			name:    "mssql groups by expression",
			d:       dialect.MSSQL,
			wantSQL: `SELECT ` + mssqlWeek + ` AS [date], COUNT([orders].[id]) AS [value] FROM [orders] GROUP BY ` + mssqlWeek + ` ORDER BY ` + mssqlWeek,
		},
		{
			name:    "mysql groups by ordinal",
			d:       dialect.MySQL,
			wantSQL: "SELECT DATE_FORMAT(DATE_SUB(`orders`.`created_at`, INTERVAL ((7 + WEEKDAY(`orders`.`created_at`)) % 7) DAY), '%Y-%m-%d 00:00:00') AS `date`, COUNT(`orders`.`id`) AS `value` FROM `orders` GROUP BY 1 ORDER BY 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := renderService(t, tt.d)
			p := tt.params
			p.Collection, p.Aggregate, p.GroupByDateField, p.TimeRange = "orders", "Count", "createdAt", "Week"

			r, err := s.prepare(p)
			if err != nil {
				t.Fatalf("prepare failed: %v", err)
			}
			opts, tr, err := s.lineOptions(r)
			if err != nil {
				t.Fatalf("lineOptions failed: %v", err)
			}
			if tr != dialect.Week {
				t.Errorf("time range = %s", tr)
			}

			sql, args, err := s.session.Render(s.session.Select(r.collection.Table(), opts))
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql  %s\nwant %s", sql, tt.wantSQL)
			}
			if !sameArgs(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestPieSQL_Dialects(t *testing.T) {
	tests := []struct {
		d       dialect.Dialect
		wantSQL string
	}{
		{
			d:       dialect.Postgres,
			wantSQL: `SELECT "orders"."status" AS "alias_groupby", SUM("orders"."id") AS "alias_aggregate" FROM "orders" GROUP BY "alias_groupby" ORDER BY "alias_aggregate" DESC`,
		},
		{
			d:       dialect.MSSQL,
			wantSQL: `SELECT [orders].[status] AS [alias_groupby], SUM([orders].[id]) AS [alias_aggregate] FROM [orders] GROUP BY [orders].[status] ORDER BY [alias_aggregate] DESC`,
		},
		{
			d:       dialect.MySQL,
			wantSQL: "SELECT `orders`.`status` AS `alias_groupby`, SUM(`orders`.`id`) AS `alias_aggregate` FROM `orders` GROUP BY `alias_groupby` ORDER BY `alias_aggregate` DESC",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.d), func(t *testing.T) {
			s := renderService(t, tt.d)
			r, err := s.prepare(Params{Collection: "orders", Aggregate: "sum", GroupByField: "status"})
			if err != nil {
				t.Fatalf("prepare failed: %v", err)
			}
			opts, group, err := s.pieOptions(r)
			if err != nil {
				t.Fatalf("pieOptions failed: %v", err)
			}
			if group.Field.Field != "status" {
				t.Errorf("group field = %+v", group.Field)
			}

			sql, args, err := s.session.Render(s.session.Select(r.collection.Table(), opts))
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql  %s\nwant %s", sql, tt.wantSQL)
			}
			if len(args) != 0 {
				t.Errorf("args = %v", args)
			}
		})
	}
}

func TestPerform_Dispatch(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		params Params
		want   any
	}{
		{Params{Type: "line", Collection: "orders", Aggregate: "count", GroupByDateField: "createdAt", TimeRange: "year"}, &LineResult{}},
		{Params{Type: "PIE", Collection: "orders", Aggregate: "count", GroupByField: "status"}, &PieResult{}},
		{Params{Type: "Value", Collection: "orders", Aggregate: "count"}, &ValueResult{}},
	}
	for _, tt := range tests {
		res, err := s.Perform(ctx, tt.params)
		if err != nil {
			t.Fatalf("Perform(%s) failed: %v", tt.params.Type, err)
		}
		if reflect.TypeOf(res) != reflect.TypeOf(tt.want) {
			t.Errorf("Perform(%s) returned %T", tt.params.Type, res)
		}
	}
}
