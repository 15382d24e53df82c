package poi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) FetchNearby(ctx context.Context, lat, lng float64, opts Options) (map[types.POICategory][]types.NearbyPOI, error) {
	args := m.Called(ctx, lat, lng, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[types.POICategory][]types.NearbyPOI), args.Error(1)
}

func (m *MockService) EnrichProperty(ctx context.Context, propertyID uuid.UUID, lat, lng float64) (*types.EnrichmentResult, error) {
	args := m.Called(ctx, propertyID, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.EnrichmentResult), args.Error(1)
}

func (m *MockService) NearbyForProperty(ctx context.Context, propertyID uuid.UUID) (map[string][]types.PropertyPOI, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]types.PropertyPOI), args.Error(1)
}

func (m *MockService) Invalidate(propertyID uuid.UUID) {
	m.Called(propertyID)
}

type fakeLookup struct {
	bySlug map[string]*types.Property
	calls  []string
}

func (f *fakeLookup) GetPublishedBySlug(_ context.Context, slug, locale string) (*types.Property, error) {
	f.calls = append(f.calls, locale+":"+slug)
	p, ok := f.bySlug[slug]
	if !ok || !p.Published {
		return nil, types.ErrNotFound
	}
	return p, nil
}

func floatPtr(v float64) *float64 { return &v }

func serveNearby(h *Handler, slug, rawQuery string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/public/properties/"+url.PathEscape(slug)+"/nearby-pois?"+rawQuery, nil)
	req.SetPathValue("slug", slug)
	rec := httptest.NewRecorder()
	h.NearbyPOIs(rec, req)
	return rec
}

func TestHandler_NearbyPOIs(t *testing.T) {
	located := &types.Property{
		ID: uuid.New(), TitleEN: "Sea View Apartment", TitleAR: "شقة بإطلالة بحرية",
		SlugEN: "sea-view-apartment", SlugAR: "شقة-بإطلالة-بحرية",
		Lat: floatPtr(31.7683), Lng: floatPtr(35.2137), Published: true,
	}
	unlocated := &types.Property{ID: uuid.New(), TitleEN: "Plot", SlugEN: "plot", Published: true}
	draft := &types.Property{
		ID: uuid.New(), TitleEN: "Draft Villa", SlugEN: "draft-villa",
		Lat: floatPtr(31.7683), Lng: floatPtr(35.2137),
	}
	lookup := &fakeLookup{bySlug: map[string]*types.Property{
		located.SlugEN:   located,
		located.SlugAR:   located,
		unlocated.SlugEN: unlocated,
		draft.SlugEN:     draft,
	}}

	grouped := map[string][]types.PropertyPOI{
		"mosques": {{Category: types.CategoryMosques, Name: "مسجد العمري", NameEN: strPtr("Omari Mosque"), NameAR: strPtr("مسجد العمري"), Distance: 120.4}},
		"banks":   {{Category: types.CategoryBanks, Name: "Bank"}},
	}

	t.Run("english by default", func(t *testing.T) {
		svc := new(MockService)
		svc.On("NearbyForProperty", mock.Anything, located.ID).Return(grouped, nil).Once()
		h := NewHandler(svc, lookup, discardLogger())

		rec := serveNearby(h, located.SlugEN, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body types.NearbyPOIsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, located.ID, body.PropertyID)
		assert.Equal(t, "Sea View Apartment", body.PropertyTitleEN)
		assert.Equal(t, 31.7683, body.Coordinates.Lat)
		require.Len(t, body.POIs["mosques"], 1)
		assert.Equal(t, "Omari Mosque", body.POIs["mosques"][0].Name)
		assert.Equal(t, "Bank", body.POIs["banks"][0].NameEN)
		assert.Equal(t, "Bank", body.POIs["banks"][0].NameAR)
		assert.Contains(t, lookup.calls, "en:"+located.SlugEN)
	})

	t.Run("arabic locale resolves by arabic slug", func(t *testing.T) {
		svc := new(MockService)
		svc.On("NearbyForProperty", mock.Anything, located.ID).Return(grouped, nil).Once()
		h := NewHandler(svc, lookup, discardLogger())

		rec := serveNearby(h, located.SlugAR, "locale=ar")
		require.Equal(t, http.StatusOK, rec.Code)

		var body types.NearbyPOIsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "مسجد العمري", body.POIs["mosques"][0].Name)
		assert.Contains(t, lookup.calls, "ar:"+located.SlugAR)
	})

	t.Run("unknown locale", func(t *testing.T) {
		h := NewHandler(new(MockService), lookup, discardLogger())
		rec := serveNearby(h, located.SlugEN, "locale=fr")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("missing property", func(t *testing.T) {
		h := NewHandler(new(MockService), lookup, discardLogger())
		rec := serveNearby(h, "does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unpublished property is not found", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, lookup, discardLogger())
		rec := serveNearby(h, draft.SlugEN, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "35.2137")
		svc.AssertNotCalled(t, "NearbyForProperty", mock.Anything, mock.Anything)
	})

	t.Run("property without coordinates", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, lookup, discardLogger())
		rec := serveNearby(h, unlocated.SlugEN, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "does not have coordinates")
		svc.AssertNotCalled(t, "NearbyForProperty", mock.Anything, mock.Anything)
	})

	t.Run("empty cache returns an empty object", func(t *testing.T) {
		svc := new(MockService)
		svc.On("NearbyForProperty", mock.Anything, located.ID).Return(map[string][]types.PropertyPOI{}, nil).Once()
		h := NewHandler(svc, lookup, discardLogger())

		rec := serveNearby(h, located.SlugEN, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"pois":{}`)
	})
}

func TestHandler_Preview(t *testing.T) {
	serve := func(h *Handler, rawQuery string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/pois/preview?"+rawQuery, nil)
		rec := httptest.NewRecorder()
		h.Preview(rec, req)
		return rec
	}

	t.Run("passes options to the pipeline", func(t *testing.T) {
		svc := new(MockService)
		svc.On("FetchNearby", mock.Anything, 31.5, 34.46, Options{
			RadiusMeters:     500,
			LimitPerCategory: 3,
			Categories:       []types.POICategory{types.CategoryBanks},
			Locale:           "en",
		}).Return(map[types.POICategory][]types.NearbyPOI{types.CategoryBanks: {}}, nil).Once()
		h := NewHandler(svc, &fakeLookup{}, discardLogger())

		rec := serve(h, "lat=31.5&lng=34.46&radius=500&limit=3&categories=banks&locale=en")
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	for name, q := range map[string]string{
		"missing lat":        "lng=34.46",
		"radius too large":   "lat=31.5&lng=34.46&radius=20000",
		"limit too large":    "lat=31.5&lng=34.46&limit=101",
		"unknown categories": "lat=31.5&lng=34.46&categories=zoos",
	} {
		t.Run(name, func(t *testing.T) {
			h := NewHandler(new(MockService), &fakeLookup{}, discardLogger())
			assert.Equal(t, http.StatusBadRequest, serve(h, q).Code)
		})
	}
}

func TestToViews(t *testing.T) {
	grouped := map[string][]types.PropertyPOI{
		"schools": {
			{Name: "مدرسة", NameAR: strPtr("مدرسة"), NameEN: strPtr("School")},
			{Name: "Only Generic"},
			{Name: "generic", NameAR: strPtr("عربي")},
		},
	}

	ar := ToViews(grouped, "ar")["schools"]
	assert.Equal(t, "مدرسة", ar[0].Name)
	assert.Equal(t, "Only Generic", ar[1].Name)
	assert.Equal(t, "Only Generic", ar[1].NameAR)
	assert.Equal(t, "عربي", ar[2].Name)
	assert.Equal(t, "generic", ar[2].NameEN)

	en := ToViews(grouped, "en")["schools"]
	assert.Equal(t, "School", en[0].Name)
	assert.Equal(t, "generic", en[2].Name)
}

func TestParseLocale(t *testing.T) {
	for raw, want := range map[string]string{"": "en", "en": "en", "ar": "ar"} {
		got, ok := ParseLocale(raw)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := ParseLocale("de")
	assert.False(t, ok)
}
