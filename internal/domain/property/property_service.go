package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/aqarbay-api/internal/search"
	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

// Enqueuer schedules background POI enrichment.
type Enqueuer interface {
	Submit(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (types.EnrichmentJob, error)
}

// POICache is notified when a property's cached POIs become stale.
type POICache interface {
	Invalidate(propertyID uuid.UUID)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Create(ctx context.Context, params types.CreatePropertyParams) (*types.Property, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Property, error)
	GetPublishedBySlug(ctx context.Context, slug, locale string) (*types.Property, error)
	List(ctx context.Context, filter types.PropertyFilter) (*types.PropertyPage, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdatePropertyParams) (*types.Property, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (*types.Property, error)
	Duplicate(ctx context.Context, id uuid.UUID) (*types.Property, error)
	RefreshPOIs(ctx context.Context, id uuid.UUID) (types.EnrichmentJob, error)
	Bulk(ctx context.Context, req types.BulkRequest) (*types.BulkResult, error)
	Export(ctx context.Context, publishedOnly bool) ([]types.Property, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	indexer  search.Indexer
	enqueuer Enqueuer
	pois     POICache
}

func NewServiceImpl(repo Repository, indexer search.Indexer, enqueuer Enqueuer, pois POICache, logger *slog.Logger) *ServiceImpl {
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		indexer:  indexer,
		enqueuer: enqueuer,
		pois:     pois,
	}
}

func validCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return fmt.Errorf("%w: lat and lng must be set together", types.ErrBadRequest)
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *lng < -180 || *lng > 180) {
		return fmt.Errorf("%w: lat=%f lng=%f", types.ErrInvalidCoordinates, *lat, *lng)
	}
	return nil
}

func validateCreate(p *types.CreatePropertyParams) error {
	if p.TitleEN == "" || p.TitleAR == "" {
		return fmt.Errorf("%w: title_en and title_ar are required", types.ErrBadRequest)
	}
	if !p.Purpose.Valid() {
		return fmt.Errorf("%w: invalid purpose %q", types.ErrBadRequest, p.Purpose)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", types.ErrBadRequest, p.Type)
	}
	if p.Status == "" {
		p.Status = types.StatusAvailable
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", types.ErrBadRequest, p.Status)
	}
	if p.PriceCurrency == "" {
		p.PriceCurrency = types.CurrencyILS
	}
	if !p.PriceCurrency.Valid() {
		return fmt.Errorf("%w: invalid currency %q", types.ErrBadRequest, p.PriceCurrency)
	}
	if p.PriceAmount < 0 {
		return fmt.Errorf("%w: price_amount must not be negative", types.ErrBadRequest)
	}
	if p.SlugEN == "" {
		p.SlugEN = Slugify(p.TitleEN)
	}
	if p.SlugAR == "" {
		p.SlugAR = Slugify(p.TitleAR)
	}
	if p.SlugEN == "" || p.SlugAR == "" {
		return fmt.Errorf("%w: could not derive slugs from titles", types.ErrBadRequest)
	}
	return validCoordinates(p.Lat, p.Lng)
}

func validateUpdate(p types.UpdatePropertyParams) error {
	if p.Purpose != nil && !p.Purpose.Valid() {
		return fmt.Errorf("%w: invalid purpose %q", types.ErrBadRequest, *p.Purpose)
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", types.ErrBadRequest, *p.Type)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", types.ErrBadRequest, *p.Status)
	}
	if p.PriceCurrency != nil && !p.PriceCurrency.Valid() {
		return fmt.Errorf("%w: invalid currency %q", types.ErrBadRequest, *p.PriceCurrency)
	}
	if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90) {
		return fmt.Errorf("%w: lat=%f", types.ErrInvalidCoordinates, *p.Lat)
	}
	if p.Lng != nil && (*p.Lng < -180 || *p.Lng > 180) {
		return fmt.Errorf("%w: lng=%f", types.ErrInvalidCoordinates, *p.Lng)
	}
	return nil
}

// enqueueEnrichment schedules POI enrichment without failing the caller.
func (s *ServiceImpl) enqueueEnrichment(ctx context.Context, p *types.Property, reason string) {
	if s.enqueuer == nil || !p.HasCoordinates() {
		return
	}
	job, err := s.enqueuer.Submit(ctx, p.ID, *p.Lat, *p.Lng)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to schedule POI enrichment",
			slog.String("property_id", p.ID.String()),
			slog.String("reason", reason),
			slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "POI enrichment scheduled",
		slog.String("property_id", p.ID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("reason", reason))
}

func (s *ServiceImpl) reindex(ctx context.Context, p *types.Property) {
	if err := s.indexer.IndexProperty(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "Failed to index property",
			slog.String("property_id", p.ID.String()),
			slog.Any("error", err))
	}
}

func (s *ServiceImpl) Create(ctx context.Context, params types.CreatePropertyParams) (*types.Property, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Create")
	defer span.End()

	if err := validateCreate(&params); err != nil {
		span.RecordError(err)
		return nil, err
	}

	p, err := s.repo.Create(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("property.id", p.ID.String()))

	s.reindex(ctx, p)
	s.enqueueEnrichment(ctx, p, "created")
	return p, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Property, error) {
	return s.repo.Get(ctx, id)
}

func (s *ServiceImpl) GetPublishedBySlug(ctx context.Context, slug, locale string) (*types.Property, error) {
	p, err := s.repo.GetBySlug(ctx, slug, locale)
	if err != nil {
		return nil, err
	}
	if !p.Published {
		return nil, fmt.Errorf("property %q: %w", slug, types.ErrNotFound)
	}
	return p, nil
}

func (s *ServiceImpl) List(ctx context.Context, filter types.PropertyFilter) (*types.PropertyPage, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "List")
	defer span.End()

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, pageSize
	l := s.logger.With(slog.String("method", "List"))

	if filter.Query != "" {
		res, err := s.indexer.Search(ctx, search.Query{
			Text:          filter.Query,
			Purpose:       filter.Purpose,
			Types:         filter.Types,
			PublishedOnly: filter.Published != nil && *filter.Published,
			Sort:          filter.Sort,
			Page:          page,
			PageSize:      pageSize,
		})
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("search.indexed", true))
			return s.pageFromSearch(ctx, filter, res)
		case errors.Is(err, search.ErrUnavailable):
		default:
			l.WarnContext(ctx, "Search index query failed, falling back to database", slog.Any("error", err))
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	return newPage(items, total, page, pageSize), nil
}

// pageFromSearch loads the properties matched by the index. The index decides
// paging, the database filters the rest.
func (s *ServiceImpl) pageFromSearch(ctx context.Context, filter types.PropertyFilter, res *search.Result) (*types.PropertyPage, error) {
	if len(res.IDs) == 0 {
		return newPage(nil, int(res.Total), filter.Page, filter.PageSize), nil
	}
	byID := filter
	byID.Query = ""
	byID.IDs = res.IDs
	byID.Page = 1
	byID.PageSize = len(res.IDs)

	items, _, err := s.repo.List(ctx, byID)
	if err != nil {
		return nil, err
	}

	position := make(map[uuid.UUID]int, len(res.IDs))
	for i, id := range res.IDs {
		position[id] = i
	}
	sort.SliceStable(items, func(i, j int) bool {
		return position[items[i].ID] < position[items[j].ID]
	})
	return newPage(items, int(res.Total), filter.Page, filter.PageSize), nil
}

func newPage(items []types.Property, total, page, pageSize int) *types.PropertyPage {
	if items == nil {
		items = []types.Property{}
	}
	return &types.PropertyPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}

func coordinatesChanged(before, after *types.Property) bool {
	return !sameCoord(before.Lat, after.Lat) || !sameCoord(before.Lng, after.Lng)
}

func sameCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, params types.UpdatePropertyParams) (*types.Property, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Update")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", id.String()))

	if err := validateUpdate(params); err != nil {
		span.RecordError(err)
		return nil, err
	}

	before, err := s.repo.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	after, err := s.repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}

	s.reindex(ctx, after)
	if coordinatesChanged(before, after) && after.HasCoordinates() {
		span.SetAttributes(attribute.Bool("coordinates.changed", true))
		s.enqueueEnrichment(ctx, after, "coordinates changed")
	}
	return after, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Delete")
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	s.forget(ctx, id)
	return nil
}

// forget drops cached POIs and the search document of a deleted property.
func (s *ServiceImpl) forget(ctx context.Context, id uuid.UUID) {
	if s.pois != nil {
		s.pois.Invalidate(id)
	}
	if err := s.indexer.DeleteProperty(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove property from index",
			slog.String("property_id", id.String()),
			slog.Any("error", err))
	}
}

func (s *ServiceImpl) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*types.Property, error) {
	p, err := s.repo.SetPublished(ctx, id, published)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, p)
	return p, nil
}

// duplicateSuffixes are tried in order until the copied slugs are unique.
var duplicateSuffixes = []string{"-copy", "-copy-2", "-copy-3", "-copy-4", "-copy-5"}

func (s *ServiceImpl) Duplicate(ctx context.Context, id uuid.UUID) (*types.Property, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Duplicate")
	defer span.End()

	var lastErr error
	for _, suffix := range duplicateSuffixes {
		p, err := s.repo.Duplicate(ctx, id, suffix)
		if err == nil {
			span.SetAttributes(attribute.String("copy.id", p.ID.String()))
			s.reindex(ctx, p)
			s.enqueueEnrichment(ctx, p, "duplicated")
			return p, nil
		}
		if !errors.Is(err, types.ErrConflict) {
			span.RecordError(err)
			return nil, err
		}
		lastErr = err
	}
	span.RecordError(lastErr)
	return nil, lastErr
}

func (s *ServiceImpl) RefreshPOIs(ctx context.Context, id uuid.UUID) (types.EnrichmentJob, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.EnrichmentJob{}, err
	}
	if !p.HasCoordinates() {
		return types.EnrichmentJob{}, types.ErrMissingCoordinates
	}
	if s.enqueuer == nil {
		return types.EnrichmentJob{}, fmt.Errorf("%w: enrichment is disabled", types.ErrUnavailable)
	}
	job, err := s.enqueuer.Submit(ctx, p.ID, *p.Lat, *p.Lng)
	if err != nil {
		return types.EnrichmentJob{}, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return job, nil
}

func bulkChanges(req types.BulkRequest) (map[string]any, error) {
	switch req.Operation {
	case types.BulkPublish:
		return map[string]any{"published": true}, nil
	case types.BulkUnpublish:
		return map[string]any{"published": false}, nil
	case types.BulkSetStatus:
		if req.Value == nil || *req.Value == "" {
			return nil, fmt.Errorf("%w: status value required", types.ErrBadRequest)
		}
		status := types.PropertyStatus(*req.Value)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: invalid status %q", types.ErrBadRequest, status)
		}
		return map[string]any{"status": status}, nil
	case types.BulkSetFeatured:
		if req.Value == nil {
			return nil, fmt.Errorf("%w: featured value required", types.ErrBadRequest)
		}
		featured, err := strconv.ParseBool(strings.TrimSpace(*req.Value))
		if err != nil {
			return nil, fmt.Errorf("%w: featured value must be true or false", types.ErrBadRequest)
		}
		return map[string]any{"featured": featured}, nil
	case types.BulkDelete:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", types.ErrBadRequest, req.Operation)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Bulk applies one operation to every listed property that exists. Unknown
// ids are skipped; if none exist the result is ErrNotFound.
func (s *ServiceImpl) Bulk(ctx context.Context, req types.BulkRequest) (*types.BulkResult, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Bulk")
	defer span.End()
	span.SetAttributes(
		attribute.String("operation", string(req.Operation)),
		attribute.Int("requested", len(req.PropertyIDs)))

	if len(req.PropertyIDs) == 0 {
		return nil, fmt.Errorf("%w: property_ids is required", types.ErrBadRequest)
	}
	changes, err := bulkChanges(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ids := uniqueIDs(req.PropertyIDs)

	var count int
	if req.Operation == types.BulkDelete {
		deleted, err := s.repo.BulkDelete(ctx, ids)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk delete failed")
			return nil, err
		}
		for _, id := range deleted {
			s.forget(ctx, id)
		}
		count = len(deleted)
	} else {
		updated, err := s.repo.BulkUpdate(ctx, ids, changes)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk update failed")
			return nil, err
		}
		for i := range updated {
			s.reindex(ctx, &updated[i])
		}
		count = len(updated)
	}

	if count == 0 {
		return nil, fmt.Errorf("%w: no valid properties found", types.ErrNotFound)
	}
	s.logger.InfoContext(ctx, "Bulk operation completed",
		slog.String("operation", string(req.Operation)),
		slog.Int("updated", count),
		slog.Int("requested", len(req.PropertyIDs)))
	return &types.BulkResult{
		Message:        fmt.Sprintf("Bulk operation '%s' completed", req.Operation),
		UpdatedCount:   count,
		TotalRequested: len(req.PropertyIDs),
	}, nil
}

func (s *ServiceImpl) Export(ctx context.Context, publishedOnly bool) ([]types.Property, error) {
	ctx, span := otel.Tracer("PropertyService").Start(ctx, "Export")
	defer span.End()

	properties, err := s.repo.Export(ctx, publishedOnly)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if properties == nil {
		properties = []types.Property{}
	}
	return properties, nil
}
