package poi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

func newMockRepository(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func strPtr(s string) *string { return &s }

var deletePOIsSQL = regexp.QuoteMeta(`DELETE FROM property_pois WHERE property_id = $1`)

func TestRepository_ReplaceForProperty(t *testing.T) {
	propertyID := uuid.New()
	rows := []types.PropertyPOI{
		{ID: uuid.New(), PropertyID: propertyID, Category: types.CategoryBanks, Name: "Bank", Lat: 31.7, Lng: 35.2, Distance: 120.5},
		{ID: uuid.New(), PropertyID: propertyID, Category: types.CategoryParks, Name: "Park", NameEN: strPtr("Park"), Lat: 31.71, Lng: 35.21, Distance: 400},
	}

	t.Run("deletes then copies inside one transaction", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(deletePOIsSQL).WithArgs(propertyID).WillReturnResult(pgxmock.NewResult("DELETE", 5))
		mock.ExpectCopyFrom(pgx.Identifier{"property_pois"}, propertyPOIColumns).WillReturnResult(2)
		mock.ExpectCommit()

		require.NoError(t, repo.ReplaceForProperty(context.Background(), propertyID, rows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set only clears", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(deletePOIsSQL).WithArgs(propertyID).WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectCommit()

		require.NoError(t, repo.ReplaceForProperty(context.Background(), propertyID, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("copy failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(deletePOIsSQL).WithArgs(propertyID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"property_pois"}, propertyPOIColumns).WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err := repo.ReplaceForProperty(context.Background(), propertyID, rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert POIs")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(deletePOIsSQL).WithArgs(propertyID).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		require.Error(t, repo.ReplaceForProperty(context.Background(), propertyID, rows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err := repo.ReplaceForProperty(context.Background(), propertyID, rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPropertyPOISource(t *testing.T) {
	propertyID := uuid.New()
	src := &PropertyPOISource{
		pois: []types.PropertyPOI{
			{ID: uuid.New(), PropertyID: propertyID, Category: types.CategoryBanks, Name: "a", SortOrder: 0},
			{ID: uuid.New(), PropertyID: propertyID, Category: types.CategoryBanks, Name: "b", SortOrder: 1},
		},
		idx: -1,
	}

	var names []any
	for src.Next() {
		v, err := src.Values()
		require.NoError(t, err)
		require.Len(t, v, len(propertyPOIColumns))
		assert.Equal(t, "banks", v[2])
		names = append(names, v[3])
	}
	assert.Equal(t, []any{"a", "b"}, names)
	assert.NoError(t, src.Err())
}

func TestRepository_GetByProperty(t *testing.T) {
	propertyID := uuid.New()
	now := time.Now().UTC()
	columns := []string{
		"id", "property_id", "category", "name", "name_en", "name_ar",
		"lat", "lng", "distance", "poi_type", "address", "sort_order",
		"created_at", "updated_at",
	}

	t.Run("scans rows", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery(`FROM property_pois\s+WHERE property_id = \$1\s+ORDER BY category, sort_order`).
			WithArgs(propertyID).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(
				id, propertyID, types.CategoryMosques, "مسجد", (*string)(nil), strPtr("مسجد"),
				31.77, 35.21, 250.3, strPtr("place_of_worship"), (*string)(nil), 0,
				now, now,
			))

		pois, err := repo.GetByProperty(context.Background(), propertyID)
		require.NoError(t, err)
		require.Len(t, pois, 1)
		assert.Equal(t, id, pois[0].ID)
		assert.Equal(t, types.CategoryMosques, pois[0].Category)
		assert.Nil(t, pois[0].NameEN)
		require.NotNil(t, pois[0].NameAR)
		assert.Equal(t, "مسجد", *pois[0].NameAR)
		assert.Equal(t, 250.3, pois[0].Distance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`FROM property_pois`).WithArgs(propertyID).WillReturnError(errors.New("boom"))

		_, err := repo.GetByProperty(context.Background(), propertyID)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_DeleteByProperty(t *testing.T) {
	propertyID := uuid.New()
	repo, mock := newMockRepository(t)
	mock.ExpectExec(deletePOIsSQL).WithArgs(propertyID).WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := repo.DeleteByProperty(context.Background(), propertyID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
