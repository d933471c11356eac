package stats

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/ruslano69/adminquery/pkg/filter"
	"github.com/ruslano69/adminquery/pkg/orm"
	"github.com/ruslano69/adminquery/pkg/query"
	"github.com/ruslano69/adminquery/pkg/schema"
)

// Cache stores computed chart results. Get decodes a hit into dst.
type Cache interface {
	Get(ctx context.Context, collection string, params any, dst any) (bool, error)
	Set(ctx context.Context, collection string, params any, result any) error
}

// Service computes charts on one database session.
type Service struct {
	session  *orm.Session
	registry *schema.Registry
	cache    Cache
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the clock used to resolve date keywords.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a stat service.
func NewService(session *orm.Session, reg *schema.Registry, opts ...Option) *Service {
	s := &Service{
		session:  session,
		registry: reg,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Perform dispatches on params.Type and returns *LineResult, *PieResult or
// *ValueResult. With a cache configured, a hit skips the database.
func (s *Service) Perform(ctx context.Context, p Params) (any, error) {
	typ, err := normalizeType(p.Type)
	if err != nil {
		return nil, err
	}

	key, cacheable := s.cacheKey(p)
	if cacheable {
		dst := newResult(typ)
		hit, err := s.cache.Get(ctx, p.Collection, key, dst)
		if err != nil {
			s.log.Warn().Err(err).Str("collection", p.Collection).Msg("stat cache read failed")
		} else if hit {
			s.log.Debug().Str("collection", p.Collection).Str("type", typ).Msg("stat cache hit")
			return dst, nil
		}
	}

	var res any
	switch typ {
	case TypeLine:
		res, err = s.Line(ctx, p)
	case TypePie:
		res, err = s.Pie(ctx, p)
	default:
		res, err = s.Value(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, p.Collection, key, res); err != nil {
			s.log.Warn().Err(err).Str("collection", p.Collection).Msg("stat cache write failed")
		}
	}
	return res, nil
}

// cacheKey identifies a cached chart. Date keywords such as $today resolve
// against the current day of the request timezone, so the day is part of
// the key.
type cacheKey struct {
	Params Params `json:"params"`
	Day    string `json:"day"`
}

func (s *Service) cacheKey(p Params) (cacheKey, bool) {
	if s.cache == nil {
		return cacheKey{}, false
	}
	loc, err := filter.LoadLocation(p.Timezone)
	if err != nil {
		// prepare вернет ту же ошибку
		return cacheKey{}, false
	}
	return cacheKey{Params: p, Day: s.now().In(loc).Format("2006-01-02")}, true
}

func newResult(typ string) any {
	switch typ {
	case TypeLine:
		return &LineResult{}
	case TypePie:
		return &PieResult{}
	default:
		return &ValueResult{}
	}
}

// request holds what every chart needs: the resolved collection, the
// aggregate and the joined, filtered source.
type request struct {
	params     Params
	collection *schema.Collection
	builder    *query.Builder
	fn         string
	aggColumn  string
	filterType string
	joins      []orm.Join
	where      sq.Sqlizer
}

func (s *Service) prepare(p Params) (*request, error) {
	c, err := s.registry.Get(p.Collection)
	if err != nil {
		return nil, err
	}
	fn, err := aggregateFunc(p.Aggregate)
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

	d := s.session.Dialect()
	b := query.NewBuilder(s.registry, c, filter.NewParser(d, loc, s.now()), d, s.log)

	// MySQL не поддерживает COUNT(table.*), поэтому '*' не используется
	aggField := p.AggregateField
	if aggField == "" {
		aggField = c.DefaultAggregateField()
	}
	agg, err := b.Resolve(aggField, ":")
	if err != nil {
		return nil, err
	}

	joins, err := b.AllJoins()
	if err != nil {
		return nil, err
	}
	where, err := b.FilterGroup(p.Filters, ft)
	if err != nil {
		return nil, err
	}

	return &request{
		params:     p,
		collection: c,
		builder:    b,
		fn:         fn,
		aggColumn:  agg.Column,
		filterType: ft,
		joins:      joins,
		where:      where,
	}, nil
}

// toFloat converts an aggregate result to float64; nil becomes 0.
func toFloat(v any) float64 {
	switch n := orm.Number(v).(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
