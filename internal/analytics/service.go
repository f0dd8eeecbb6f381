package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Source runs the aggregate queries for one window.
type Source interface {
	Summary(ctx context.Context, f Filter) (Summary, error)
	Trend(ctx context.Context, f Filter) ([]TrendPoint, error)
	Engineers(ctx context.Context, f Filter) ([]EngineerStat, error)
	Parts(ctx context.Context, f Filter) ([]PartUsage, error)
}

type Service struct {
	source   Source
	cache    Cache
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(source Source, cache Cache, cacheTTL time.Duration, log zerolog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		source:   source,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "analytics").Logger(),
		now:      time.Now,
	}
}

func (s *Service) Overview(ctx context.Context, f Filter) (Overview, error) {
	summary, err := s.source.Summary(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	return overviewFrom(summary), nil
}

func (s *Service) Trends(ctx context.Context, f Filter) (Trends, error) {
	points, err := s.source.Trend(ctx, f)
	if err != nil {
		return Trends{}, err
	}
	if points == nil {
		points = []TrendPoint{}
	}
	return Trends{Period: f.Period, Points: points}, nil
}

func (s *Service) Performance(ctx context.Context, f Filter) (Performance, error) {
	summary, err := s.source.Summary(ctx, f)
	if err != nil {
		return Performance{}, err
	}
	return performanceFrom(summary), nil
}

func (s *Service) Engineers(ctx context.Context, f Filter) ([]EngineerStat, error) {
	stats, err := s.source.Engineers(ctx, f)
	if stats == nil && err == nil {
		stats = []EngineerStat{}
	}
	return stats, err
}

func (s *Service) Parts(ctx context.Context, f Filter) ([]PartUsage, error) {
	parts, err := s.source.Parts(ctx, f)
	if parts == nil && err == nil {
		parts = []PartUsage{}
	}
	return parts, err
}

// Comparison contrasts f with the window of the same length just before it.
func (s *Service) Comparison(ctx context.Context, f Filter) (Comparison, error) {
	prev := f.Previous()

	var current, previous Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.source.Summary(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.source.Summary(gctx, prev)
		return err
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Current:  f,
		Previous: prev,
		Metrics: map[string]ComparisonMetric{
			"total":                compare(float64(current.Total), float64(previous.Total)),
			"completed":            compare(float64(current.Completed), float64(previous.Completed)),
			"active":               compare(float64(current.ByStatus.Active()), float64(previous.ByStatus.Active())),
			"avg_resolution_hours": compare(current.AvgResolutionHours, previous.AvgResolutionHours),
			"first_visit_fix_rate": compare(ratio(current.FirstVisitFixes, current.Completed), ratio(previous.FirstVisitFixes, previous.Completed)),
		},
	}, nil
}

// Dashboard returns the cached batch for f or computes it.
func (s *Service) Dashboard(ctx context.Context, f Filter) (Dashboard, error) {
	cached, ok, err := s.cache.Get(ctx, f.Key())
	if err != nil {
		s.log.Warn().Err(err).Str("key", f.Key()).Msg("analytics cache read failed")
	}
	if ok {
		return cached, nil
	}
	return s.Compute(ctx, f)
}

// Compute fetches every document for f in parallel and stores the result.
func (s *Service) Compute(ctx context.Context, f Filter) (Dashboard, error) {
	d := Dashboard{Filter: f}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.Overview, err = s.Overview(gctx, f); return })
	g.Go(func() (err error) { d.Trends, err = s.Trends(gctx, f); return })
	g.Go(func() (err error) { d.Performance, err = s.Performance(gctx, f); return })
	g.Go(func() (err error) { d.Engineers, err = s.Engineers(gctx, f); return })
	g.Go(func() (err error) { d.Parts, err = s.Parts(gctx, f); return })
	g.Go(func() (err error) { d.Comparison, err = s.Comparison(gctx, f); return })
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	d.GeneratedAt = s.now().UTC()

	if err := s.cache.Set(ctx, f.Key(), d, s.cacheTTL); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Str("key", f.Key()).Msg("analytics cache write failed")
	}
	return d, nil
}
