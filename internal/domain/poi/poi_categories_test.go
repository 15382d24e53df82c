package poi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

func TestCategoriesTable(t *testing.T) {
	require.Len(t, Categories, 8)
	assert.Equal(t, []types.POICategory{
		types.CategorySchools,
		types.CategoryMosques,
		types.CategoryHospitals,
		types.CategorySupermarkets,
		types.CategoryBanks,
		types.CategoryRestaurants,
		types.CategoryParks,
		types.CategoryGasStations,
	}, AllCategories())

	for _, r := range Categories {
		assert.NotEmpty(t, r.Predicates, r.Category)
		assert.NotEmpty(t, r.Icon, r.Category)
	}
}

func TestTagPredicate(t *testing.T) {
	single := TagPredicate{Key: "amenity", Values: []string{"bank"}}
	multi := TagPredicate{Key: "amenity", Values: []string{"hospital", "clinic", "pharmacy"}}

	assert.Equal(t, `["amenity"="bank"]`, single.Filter())
	assert.Equal(t, `["amenity"~"^(hospital|clinic|pharmacy)$"]`, multi.Filter())

	assert.True(t, single.Matches(map[string]string{"amenity": "Bank"}))
	assert.True(t, multi.Matches(map[string]string{"amenity": " CLINIC "}))
	assert.False(t, multi.Matches(map[string]string{"amenity": "bank"}))
	assert.False(t, single.Matches(map[string]string{"shop": "bank"}))
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []types.POICategory
		wantErr bool
	}{
		{name: "empty selects all", in: nil, want: AllCategories()},
		{name: "blank entries select all", in: []string{" ", ""}, want: AllCategories()},
		{name: "normalizes and dedups", in: []string{"Schools", "banks", "schools"}, want: []types.POICategory{types.CategorySchools, types.CategoryBanks}},
		{name: "unknown category", in: []string{"cinemas"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategories(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
