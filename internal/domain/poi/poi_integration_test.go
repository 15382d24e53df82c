//go:build integration

package poi

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/db"
)

var (
	testDB   *db.DB
	testRepo *RepositoryImpl
)

func TestMain(m *testing.M) {
	if err := godotenv.Load("../../../.env.test"); err != nil {
		log.Println("Warning: .env.test file not found, relying on system environment variables for integration tests.")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("TEST_DATABASE_URL environment variable is not set for integration tests")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	testDB, err = db.New(db.Config{DSN: dbURL, MaxConns: 5, MinConns: 1}, logger)
	if err != nil {
		log.Fatalf("Unable to connect to test database: %v\n", err)
	}
	if err := testDB.RunMigrations(); err != nil {
		log.Fatalf("Unable to migrate test database: %v\n", err)
	}

	testRepo = NewRepository(testDB.Pool, logger)

	exitCode := m.Run()
	testDB.Close()
	os.Exit(exitCode)
}

func createTestProperty(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	id := uuid.New()
	slug := "poi-it-" + id.String()
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO properties (id, title_en, title_ar, slug_en, slug_ar, purpose, type, price_amount, lat, lng)
		VALUES ($1, 'POI test', 'اختبار', $2, $3, 'sell', 'apartment', 100000, 31.7683, 35.2137)`,
		id, slug, slug+"-ar")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(context.Background(), `DELETE FROM properties WHERE id = $1`, id)
	})
	return id
}

func testRows(propertyID uuid.UUID, names ...string) []types.PropertyPOI {
	rows := make([]types.PropertyPOI, 0, len(names))
	for i, n := range names {
		rows = append(rows, types.PropertyPOI{
			ID:         uuid.New(),
			PropertyID: propertyID,
			Category:   types.CategoryBanks,
			Name:       n,
			Lat:        31.77,
			Lng:        35.21,
			Distance:   float64(100 * (i + 1)),
			SortOrder:  i,
		})
	}
	return rows
}

func TestReplaceForProperty_Integration(t *testing.T) {
	ctx := context.Background()
	propertyID := createTestProperty(t, ctx)

	require.NoError(t, testRepo.ReplaceForProperty(ctx, propertyID, testRows(propertyID, "a", "b", "c")))
	got, err := testRepo.GetByProperty(ctx, propertyID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, 2, got[2].SortOrder)

	// A second run replaces rather than appends.
	require.NoError(t, testRepo.ReplaceForProperty(ctx, propertyID, testRows(propertyID, "d")))
	got, err = testRepo.GetByProperty(ctx, propertyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].Name)

	require.NoError(t, testRepo.ReplaceForProperty(ctx, propertyID, nil))
	got, err = testRepo.GetByProperty(ctx, propertyID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceForProperty_UnknownProperty_Integration(t *testing.T) {
	ctx := context.Background()
	other := createTestProperty(t, ctx)
	require.NoError(t, testRepo.ReplaceForProperty(ctx, other, testRows(other, "keep")))

	missing := uuid.New()
	err := testRepo.ReplaceForProperty(ctx, missing, testRows(missing, "orphan"))
	require.Error(t, err)

	got, err := testRepo.GetByProperty(ctx, other)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPropertyDeleteCascades_Integration(t *testing.T) {
	ctx := context.Background()
	propertyID := createTestProperty(t, ctx)
	require.NoError(t, testRepo.ReplaceForProperty(ctx, propertyID, testRows(propertyID, "a", "b")))

	_, err := testDB.Pool.Exec(ctx, `DELETE FROM properties WHERE id = $1`, propertyID)
	require.NoError(t, err)

	got, err := testRepo.GetByProperty(ctx, propertyID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
