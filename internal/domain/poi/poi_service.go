package poi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Options tunes a single pipeline run. Zero values select the defaults.
type Options struct {
	RadiusMeters     int
	LimitPerCategory int
	Categories       []types.POICategory
	Locale           string
}

// Service defines the business logic contract for the POI enrichment pipeline.
type Service interface {
	// FetchNearby runs build, fetch, classify and rank without persisting.
	// Upstream failures degrade to an empty list per requested category.
	FetchNearby(ctx context.Context, lat, lng float64, opts Options) (map[types.POICategory][]types.NearbyPOI, error)
	// EnrichProperty fetches POIs around the coordinates and replaces the
	// property's cached set.
	EnrichProperty(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (*types.EnrichmentResult, error)
	// NearbyForProperty returns the cached POIs grouped by category.
	NearbyForProperty(ctx context.Context, propertyID uuid.UUID) (map[string][]types.PropertyPOI, error)
	// Invalidate drops the read cache of a property.
	Invalidate(propertyID uuid.UUID)
}

type ServiceImpl struct {
	logger   *slog.Logger
	fetcher  Fetcher
	repo     Repository
	defaults Options
	locks    *keyedMutex
	cache    *cache.Cache
}

func NewServiceImpl(fetcher Fetcher, repo Repository, defaults Options, logger *slog.Logger) *ServiceImpl {
	if defaults.RadiusMeters <= 0 {
		defaults.RadiusMeters = DefaultRadiusMeters
	}
	if defaults.LimitPerCategory <= 0 {
		defaults.LimitPerCategory = DefaultLimitPerCategory
	}
	if len(defaults.Categories) == 0 {
		defaults.Categories = AllCategories()
	}
	if defaults.Locale == "" {
		defaults.Locale = "ar"
	}
	return &ServiceImpl{
		logger:   logger,
		fetcher:  fetcher,
		repo:     repo,
		defaults: defaults,
		locks:    newKeyedMutex(),
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *ServiceImpl) withDefaults(opts Options) Options {
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = s.defaults.RadiusMeters
	}
	if opts.LimitPerCategory <= 0 {
		opts.LimitPerCategory = s.defaults.LimitPerCategory
	}
	if len(opts.Categories) == 0 {
		opts.Categories = s.defaults.Categories
	}
	if opts.Locale == "" {
		opts.Locale = s.defaults.Locale
	}
	return opts
}

func (s *ServiceImpl) FetchNearby(ctx context.Context, lat, lng float64, opts Options) (map[types.POICategory][]types.NearbyPOI, error) {
	ranked, _, err := s.fetchNearby(ctx, lat, lng, opts)
	return ranked, err
}

// fetchNearby also reports whether the upstream fetch failed.
func (s *ServiceImpl) fetchNearby(ctx context.Context, lat, lng float64, opts Options) (map[types.POICategory][]types.NearbyPOI, bool, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "FetchNearby", trace.WithAttributes(
		attribute.Float64("location.latitude", lat),
		attribute.Float64("location.longitude", lng),
	))
	defer span.End()

	opts = s.withDefaults(opts)
	l := s.logger.With(slog.String("method", "FetchNearby"))

	query, err := BuildQuery(QueryParams{
		Lat:          lat,
		Lng:          lng,
		RadiusMeters: opts.RadiusMeters,
		Categories:   opts.Categories,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query parameters")
		return nil, false, err
	}

	origin := orb.Point{lng, lat}
	elements, err := s.fetcher.Fetch(ctx, query)
	if err != nil {
		l.WarnContext(ctx, "POI fetch failed, degrading to empty result", slog.Any("error", err))
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("poi.degraded", true))
		return Rank(origin, nil, opts.Categories, opts.LimitPerCategory), true, nil
	}

	candidates := make([]types.NearbyPOI, 0, len(elements))
	skipped := 0
	for _, el := range elements {
		p, ok := Project(el, opts.Locale)
		if !ok {
			skipped++
			continue
		}
		candidates = append(candidates, p)
	}

	ranked := Rank(origin, candidates, opts.Categories, opts.LimitPerCategory)
	_, total := countByCategory(ranked)
	span.SetAttributes(
		attribute.Int("poi.elements", len(elements)),
		attribute.Int("poi.skipped", skipped),
		attribute.Int("poi.total", total),
	)
	l.DebugContext(ctx, "POIs classified",
		slog.Int("elements", len(elements)),
		slog.Int("skipped", skipped),
		slog.Int("kept", total))
	return ranked, false, nil
}

func (s *ServiceImpl) EnrichProperty(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (*types.EnrichmentResult, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "EnrichProperty", trace.WithAttributes(
		attribute.String("property.id", propertyID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "EnrichProperty"), slog.String("property_id", propertyID.String()))

	release := s.locks.Lock(propertyID)
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked, degraded, err := s.fetchNearby(ctx, lat, lng, Options{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("failed to fetch nearby POIs: %w", err)
	}

	rows := toRows(propertyID, ranked)
	if err := s.repo.ReplaceForProperty(ctx, propertyID, rows); err != nil {
		l.ErrorContext(ctx, "Failed to cache POIs", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("failed to cache POIs for property %s: %w", propertyID, err)
	}
	s.cache.Delete(generateNearbyCacheKey(propertyID))

	counts, total := countByCategory(ranked)
	span.SetAttributes(attribute.Int("poi.total", total), attribute.Bool("poi.degraded", degraded))
	l.InfoContext(ctx, "Property POIs cached", slog.Int("total", total), slog.Bool("degraded", degraded))

	return &types.EnrichmentResult{
		PropertyID: propertyID,
		Counts:     counts,
		Total:      total,
		Degraded:   degraded,
	}, nil
}

func (s *ServiceImpl) NearbyForProperty(ctx context.Context, propertyID uuid.UUID) (map[string][]types.PropertyPOI, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "NearbyForProperty", trace.WithAttributes(
		attribute.String("property.id", propertyID.String()),
	))
	defer span.End()

	cacheKey := generateNearbyCacheKey(propertyID)
	if cached, found := s.cache.Get(cacheKey); found {
		if grouped, ok := cached.(map[string][]types.PropertyPOI); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return grouped, nil
		}
	}

	rows, err := s.repo.GetByProperty(ctx, propertyID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load cached POIs",
			slog.String("property_id", propertyID.String()),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	grouped := groupRows(rows)
	s.cache.Set(cacheKey, grouped, cache.DefaultExpiration)
	return grouped, nil
}

func (s *ServiceImpl) Invalidate(propertyID uuid.UUID) {
	s.cache.Delete(generateNearbyCacheKey(propertyID))
}
