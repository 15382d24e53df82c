package poi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

// Repository persists the per-property POI cache.
type Repository interface {
	// ReplaceForProperty swaps the whole cached set of a property atomically.
	ReplaceForProperty(ctx context.Context, propertyID uuid.UUID, pois []types.PropertyPOI) error
	GetByProperty(ctx context.Context, propertyID uuid.UUID) ([]types.PropertyPOI, error)
	DeleteByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error)
}

// DBPool is the subset of *pgxpool.Pool used by the repository.
type DBPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
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

var propertyPOIColumns = []string{
	"id", "property_id", "category", "name", "name_en", "name_ar",
	"lat", "lng", "distance", "poi_type", "address", "sort_order",
}

// PropertyPOISource feeds cache rows to COPY.
type PropertyPOISource struct {
	pois []types.PropertyPOI
	idx  int
}

func (s *PropertyPOISource) Next() bool {
	s.idx++
	return s.idx < len(s.pois)
}

func (s *PropertyPOISource) Values() ([]any, error) {
	p := s.pois[s.idx]
	return []any{
		p.ID, p.PropertyID, string(p.Category), p.Name, p.NameEN, p.NameAR,
		p.Lat, p.Lng, p.Distance, p.POIType, p.Address, p.SortOrder,
	}, nil
}

func (s *PropertyPOISource) Err() error {
	return nil
}

func (r *RepositoryImpl) ReplaceForProperty(ctx context.Context, propertyID uuid.UUID, pois []types.PropertyPOI) (err error) {
	ctx, span := otel.Tracer("PropertyPOIRepo").Start(ctx, "ReplaceForProperty", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("property.id", propertyID.String()),
		attribute.Int("pois.count", len(pois)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ReplaceForProperty"), slog.String("property_id", propertyID.String()))

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM property_pois WHERE property_id = $1`, propertyID)
	if err != nil {
		return fmt.Errorf("failed to delete cached POIs: %w", err)
	}

	var inserted int64
	if len(pois) > 0 {
		inserted, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_pois"},
			propertyPOIColumns,
			&PropertyPOISource{pois: pois, idx: -1},
		)
		if err != nil {
			return fmt.Errorf("failed to insert POIs: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("pois.deleted", tag.RowsAffected()),
		attribute.Int64("pois.inserted", inserted),
	)
	l.DebugContext(ctx, "POI cache replaced",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Int64("inserted", inserted))
	return nil
}

func (r *RepositoryImpl) GetByProperty(ctx context.Context, propertyID uuid.UUID) ([]types.PropertyPOI, error) {
	ctx, span := otel.Tracer("PropertyPOIRepo").Start(ctx, "GetByProperty", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("property.id", propertyID.String()),
	))
	defer span.End()

	query := `
		SELECT id, property_id, category, name, name_en, name_ar,
		       lat, lng, distance, poi_type, address, sort_order,
		       created_at, updated_at
		FROM property_pois
		WHERE property_id = $1
		ORDER BY category, sort_order`

	rows, err := r.pgpool.Query(ctx, query, propertyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query property POIs: %w", err)
	}
	defer rows.Close()

	var pois []types.PropertyPOI
	for rows.Next() {
		var p types.PropertyPOI
		if err := rows.Scan(
			&p.ID, &p.PropertyID, &p.Category, &p.Name, &p.NameEN, &p.NameAR,
			&p.Lat, &p.Lng, &p.Distance, &p.POIType, &p.Address, &p.SortOrder,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan property POI: %w", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating property POIs: %w", err)
	}

	span.SetAttributes(attribute.Int("pois.count", len(pois)))
	return pois, nil
}

func (r *RepositoryImpl) DeleteByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error) {
	ctx, span := otel.Tracer("PropertyPOIRepo").Start(ctx, "DeleteByProperty", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("property.id", propertyID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM property_pois WHERE property_id = $1`, propertyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, fmt.Errorf("failed to delete property POIs: %w", err)
	}
	return tag.RowsAffected(), nil
}
