package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the contract for property persistence.
type Repository interface {
	Create(ctx context.Context, params types.CreatePropertyParams) (*types.Property, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Property, error)
	// GetBySlug matches slug_ar for locale "ar" and slug_en otherwise.
	GetBySlug(ctx context.Context, slug, locale string) (*types.Property, error)
	List(ctx context.Context, filter types.PropertyFilter) ([]types.Property, int, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdatePropertyParams) (*types.Property, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (*types.Property, error)
	// Duplicate copies a property under new slugs with featured and published cleared.
	Duplicate(ctx context.Context, id uuid.UUID, slugSuffix string) (*types.Property, error)
	// BulkUpdate sets the same columns on every listed property and returns the rows it changed.
	BulkUpdate(ctx context.Context, ids []uuid.UUID, changes map[string]any) ([]types.Property, error)
	// BulkDelete returns the ids that existed and were removed.
	BulkDelete(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Export(ctx context.Context, publishedOnly bool) ([]types.Property, error)
}

// DBPool is the subset of *pgxpool.Pool used by the repository.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool DBPool
}

func NewRepository(pgpool DBPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

var propertyColumns = []string{
	"id", "title_en", "title_ar", "slug_en", "slug_ar", "description_en", "description_ar",
	"purpose", "type", "status", "price_amount", "price_currency", "area_m2",
	"bedrooms", "bathrooms", "furnished", "parking", "floor", "year_built", "video_url",
	"lat", "lng", "show_exact_location", "featured", "published",
	"location_id", "agent_id", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func scanProperty(row pgx.Row) (*types.Property, error) {
	var p types.Property
	err := row.Scan(
		&p.ID, &p.TitleEN, &p.TitleAR, &p.SlugEN, &p.SlugAR, &p.DescriptionEN, &p.DescriptionAR,
		&p.Purpose, &p.Type, &p.Status, &p.PriceAmount, &p.PriceCurrency, &p.AreaM2,
		&p.Bedrooms, &p.Bathrooms, &p.Furnished, &p.Parking, &p.Floor, &p.YearBuilt, &p.VideoURL,
		&p.Lat, &p.Lng, &p.ShowExactLocation, &p.Featured, &p.Published,
		&p.LocationID, &p.AgentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mapPgError translates constraint violations into domain errors.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", types.ErrConflict, pgErr.ConstraintName)
		case "23503", "23514", "22P02":
			return fmt.Errorf("%w: %s", types.ErrBadRequest, pgErr.Message)
		}
	}
	return err
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL)
	return otel.Tracer("PropertyRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (r *RepositoryImpl) queryOne(ctx context.Context, b squirrel.Sqlizer) (*types.Property, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	p, err := scanProperty(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

func (r *RepositoryImpl) queryMany(ctx context.Context, b squirrel.Sqlizer) ([]types.Property, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var properties []types.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return properties, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, params types.CreatePropertyParams) (*types.Property, error) {
	ctx, span := startSpan(ctx, "Create")
	defer span.End()

	now := time.Now().UTC()
	insert := psql.Insert("properties").
		Columns(
			"id", "title_en", "title_ar", "slug_en", "slug_ar", "description_en", "description_ar",
			"purpose", "type", "status", "price_amount", "price_currency", "area_m2",
			"bedrooms", "bathrooms", "furnished", "parking", "floor", "year_built", "video_url",
			"lat", "lng", "show_exact_location", "featured", "published",
			"location_id", "agent_id", "created_at", "updated_at",
		).
		Values(
			uuid.New(), params.TitleEN, params.TitleAR, params.SlugEN, params.SlugAR, params.DescriptionEN, params.DescriptionAR,
			params.Purpose, params.Type, params.Status, params.PriceAmount, params.PriceCurrency, params.AreaM2,
			params.Bedrooms, params.Bathrooms, params.Furnished, params.Parking, params.Floor, params.YearBuilt, params.VideoURL,
			params.Lat, params.Lng, params.ShowExactLocation, params.Featured, params.Published,
			params.LocationID, params.AgentID, now, now,
		).
		Suffix("RETURNING " + joinColumns())

	p, err := r.queryOne(ctx, insert)
	if err != nil {
		fail(span, err, "insert failed")
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	span.SetAttributes(attribute.String("property.id", p.ID.String()))
	r.logger.InfoContext(ctx, "Property created", slog.String("id", p.ID.String()), slog.String("slug", p.SlugEN))
	return p, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*types.Property, error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("property.id", id.String()))
	defer span.End()

	p, err := r.queryOne(ctx, psql.Select(propertyColumns...).From("properties").Where(squirrel.Eq{"id": id}))
	if err != nil {
		fail(span, err, "select failed")
		return nil, fmt.Errorf("failed to get property %s: %w", id, err)
	}
	return p, nil
}

func (r *RepositoryImpl) GetBySlug(ctx context.Context, slug, locale string) (*types.Property, error) {
	ctx, span := startSpan(ctx, "GetBySlug", attribute.String("property.slug", slug), attribute.String("locale", locale))
	defer span.End()

	column := "slug_en"
	if locale == "ar" {
		column = "slug_ar"
	}
	p, err := r.queryOne(ctx, psql.Select(propertyColumns...).From("properties").Where(squirrel.Eq{column: slug}).Limit(1))
	if err != nil {
		fail(span, err, "select failed")
		return nil, fmt.Errorf("failed to get property by slug %q: %w", slug, err)
	}
	return p, nil
}

func applyFilter(b squirrel.SelectBuilder, f types.PropertyFilter) squirrel.SelectBuilder {
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + q + "%"
		b = b.Where(squirrel.Or{
			squirrel.ILike{"title_en": pattern},
			squirrel.ILike{"title_ar": pattern},
			squirrel.ILike{"description_en": pattern},
			squirrel.ILike{"description_ar": pattern},
		})
	}
	if f.Purpose != "" {
		b = b.Where(squirrel.Eq{"purpose": f.Purpose})
	}
	if len(f.Types) > 0 {
		b = b.Where(squirrel.Eq{"type": f.Types})
	}
	if len(f.IDs) > 0 {
		b = b.Where(squirrel.Eq{"id": f.IDs})
	}
	if f.MinPrice != nil {
		b = b.Where(squirrel.GtOrEq{"price_amount": *f.MinPrice})
	}
	if f.MaxPrice != nil {
		b = b.Where(squirrel.LtOrEq{"price_amount": *f.MaxPrice})
	}
	if f.Bedrooms != nil {
		b = b.Where(squirrel.GtOrEq{"bedrooms": *f.Bedrooms})
	}
	if f.Bathrooms != nil {
		b = b.Where(squirrel.GtOrEq{"bathrooms": *f.Bathrooms})
	}
	if f.MinArea != nil {
		b = b.Where(squirrel.GtOrEq{"area_m2": *f.MinArea})
	}
	if f.MaxArea != nil {
		b = b.Where(squirrel.LtOrEq{"area_m2": *f.MaxArea})
	}
	if f.YearBuilt != nil {
		b = b.Where(squirrel.GtOrEq{"year_built": *f.YearBuilt})
	}
	if f.Furnished != nil {
		b = b.Where(squirrel.Eq{"furnished": *f.Furnished})
	}
	if f.Parking != nil {
		b = b.Where(squirrel.Eq{"parking": *f.Parking})
	}
	if f.Floor != nil {
		b = b.Where(squirrel.Eq{"floor": *f.Floor})
	}
	if f.Featured != nil {
		b = b.Where(squirrel.Eq{"featured": *f.Featured})
	}
	if f.Published != nil {
		b = b.Where(squirrel.Eq{"published": *f.Published})
	}
	return b
}

func orderBy(s types.PropertySort) string {
	switch s {
	case types.SortPriceAsc:
		return "price_amount ASC"
	case types.SortPriceDesc:
		return "price_amount DESC"
	default:
		return "created_at DESC"
	}
}

func (r *RepositoryImpl) List(ctx context.Context, filter types.PropertyFilter) ([]types.Property, int, error) {
	ctx, span := startSpan(ctx, "List",
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize))
	defer span.End()

	countQuery, countArgs, err := applyFilter(psql.Select("COUNT(*)").From("properties"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.pgpool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		fail(span, err, "count failed")
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query, args, err := applyFilter(psql.Select(propertyColumns...).From("properties"), filter).
		OrderBy(orderBy(filter.Sort), "id").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		fail(span, err, "list failed")
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	properties := make([]types.Property, 0, pageSize)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			fail(span, err, "scan failed")
			return nil, 0, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		fail(span, err, "rows failed")
		return nil, 0, fmt.Errorf("error iterating properties: %w", err)
	}

	span.SetAttributes(attribute.Int("total", total), attribute.Int("returned", len(properties)))
	return properties, total, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, id uuid.UUID, params types.UpdatePropertyParams) (*types.Property, error) {
	ctx, span := startSpan(ctx, "Update", attribute.String("property.id", id.String()))
	defer span.End()

	updateBuilder := psql.Update("properties").Where(squirrel.Eq{"id": id})

	var hasUpdates bool
	set := func(column string, value any) {
		updateBuilder = updateBuilder.Set(column, value)
		hasUpdates = true
	}

	if params.TitleEN != nil {
		set("title_en", *params.TitleEN)
	}
	if params.TitleAR != nil {
		set("title_ar", *params.TitleAR)
	}
	if params.SlugEN != nil {
		set("slug_en", *params.SlugEN)
	}
	if params.SlugAR != nil {
		set("slug_ar", *params.SlugAR)
	}
	if params.DescriptionEN != nil {
		set("description_en", *params.DescriptionEN)
	}
	if params.DescriptionAR != nil {
		set("description_ar", *params.DescriptionAR)
	}
	if params.Purpose != nil {
		set("purpose", *params.Purpose)
	}
	if params.Type != nil {
		set("type", *params.Type)
	}
	if params.Status != nil {
		set("status", *params.Status)
	}
	if params.PriceAmount != nil {
		set("price_amount", *params.PriceAmount)
	}
	if params.PriceCurrency != nil {
		set("price_currency", *params.PriceCurrency)
	}
	if params.AreaM2 != nil {
		set("area_m2", *params.AreaM2)
	}
	if params.Bedrooms != nil {
		set("bedrooms", *params.Bedrooms)
	}
	if params.Bathrooms != nil {
		set("bathrooms", *params.Bathrooms)
	}
	if params.Furnished != nil {
		set("furnished", *params.Furnished)
	}
	if params.Parking != nil {
		set("parking", *params.Parking)
	}
	if params.Floor != nil {
		set("floor", *params.Floor)
	}
	if params.YearBuilt != nil {
		set("year_built", *params.YearBuilt)
	}
	if params.VideoURL != nil {
		set("video_url", *params.VideoURL)
	}
	if params.Lat != nil {
		set("lat", *params.Lat)
	}
	if params.Lng != nil {
		set("lng", *params.Lng)
	}
	if params.ShowExactLocation != nil {
		set("show_exact_location", *params.ShowExactLocation)
	}
	if params.Featured != nil {
		set("featured", *params.Featured)
	}
	if params.Published != nil {
		set("published", *params.Published)
	}
	if params.LocationID != nil {
		set("location_id", *params.LocationID)
	}
	if params.AgentID != nil {
		set("agent_id", *params.AgentID)
	}

	if !hasUpdates {
		return r.Get(ctx, id)
	}

	updateBuilder = updateBuilder.Set("updated_at", time.Now().UTC()).Suffix("RETURNING " + joinColumns())
	p, err := r.queryOne(ctx, updateBuilder)
	if err != nil {
		fail(span, err, "update failed")
		return nil, fmt.Errorf("failed to update property %s: %w", id, err)
	}
	return p, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", attribute.String("property.id", id.String()))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		fail(span, err, "delete failed")
		return fmt.Errorf("failed to delete property %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("property %s: %w", id, types.ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Property deleted", slog.String("id", id.String()))
	return nil
}

func (r *RepositoryImpl) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*types.Property, error) {
	ctx, span := startSpan(ctx, "SetPublished",
		attribute.String("property.id", id.String()),
		attribute.Bool("published", published))
	defer span.End()

	p, err := r.queryOne(ctx, psql.Update("properties").
		Set("published", published).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING "+joinColumns()))
	if err != nil {
		fail(span, err, "update failed")
		return nil, fmt.Errorf("failed to set published on property %s: %w", id, err)
	}
	return p, nil
}

func (r *RepositoryImpl) Duplicate(ctx context.Context, id uuid.UUID, slugSuffix string) (*types.Property, error) {
	ctx, span := startSpan(ctx, "Duplicate", attribute.String("property.id", id.String()))
	defer span.End()

	query := `
		INSERT INTO properties (
			id, title_en, title_ar, slug_en, slug_ar, description_en, description_ar,
			purpose, type, status, price_amount, price_currency, area_m2,
			bedrooms, bathrooms, furnished, parking, floor, year_built, video_url,
			lat, lng, show_exact_location, featured, published,
			location_id, agent_id, created_at, updated_at
		)
		SELECT $2, title_en || ' (Copy)', title_ar || ' (نسخة)', slug_en || $3, slug_ar || $3,
			description_en, description_ar, purpose, type, status, price_amount, price_currency, area_m2,
			bedrooms, bathrooms, furnished, parking, floor, year_built, video_url,
			lat, lng, show_exact_location, false, false,
			location_id, agent_id, now(), now()
		FROM properties
		WHERE id = $1
		RETURNING ` + joinColumns()

	p, err := scanProperty(r.pgpool.QueryRow(ctx, query, id, uuid.New(), slugSuffix))
	if err != nil {
		err = mapPgError(err)
		fail(span, err, "duplicate failed")
		return nil, fmt.Errorf("failed to duplicate property %s: %w", id, err)
	}
	span.SetAttributes(attribute.String("copy.id", p.ID.String()))
	return p, nil
}

func (r *RepositoryImpl) BulkUpdate(ctx context.Context, ids []uuid.UUID, changes map[string]any) ([]types.Property, error) {
	ctx, span := startSpan(ctx, "BulkUpdate", attribute.Int("requested", len(ids)))
	defer span.End()

	if len(ids) == 0 || len(changes) == 0 {
		return nil, nil
	}
	updated, err := r.queryMany(ctx, psql.Update("properties").
		SetMap(changes).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": ids}).
		Suffix("RETURNING "+joinColumns()))
	if err != nil {
		fail(span, err, "bulk update failed")
		return nil, fmt.Errorf("failed to bulk update properties: %w", err)
	}
	span.SetAttributes(attribute.Int("updated", len(updated)))
	return updated, nil
}

func (r *RepositoryImpl) BulkDelete(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	ctx, span := startSpan(ctx, "BulkDelete", attribute.Int("requested", len(ids)))
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Delete("properties").Where(squirrel.Eq{"id": ids}).Suffix("RETURNING id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bulk delete query: %w", err)
	}
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		fail(span, err, "bulk delete failed")
		return nil, fmt.Errorf("failed to bulk delete properties: %w", err)
	}
	defer rows.Close()

	var deleted []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			fail(span, err, "scan failed")
			return nil, fmt.Errorf("failed to scan deleted id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		fail(span, err, "rows failed")
		return nil, fmt.Errorf("error iterating deleted ids: %w", err)
	}
	r.logger.InfoContext(ctx, "Properties deleted", slog.Int("count", len(deleted)))
	return deleted, nil
}

// exportLimit caps a CSV export.
const exportLimit = 10000

func (r *RepositoryImpl) Export(ctx context.Context, publishedOnly bool) ([]types.Property, error) {
	ctx, span := startSpan(ctx, "Export", attribute.Bool("published_only", publishedOnly))
	defer span.End()

	b := psql.Select(propertyColumns...).From("properties")
	if publishedOnly {
		b = b.Where(squirrel.Eq{"published": true})
	}
	properties, err := r.queryMany(ctx, b.OrderBy("created_at DESC", "id").Limit(exportLimit))
	if err != nil {
		fail(span, err, "export failed")
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}
	span.SetAttributes(attribute.Int("exported", len(properties)))
	return properties, nil
}

func joinColumns() string {
	return strings.Join(propertyColumns, ", ")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
