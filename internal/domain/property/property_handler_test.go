package property

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, params types.CreatePropertyParams) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, params))
}

func (m *MockService) Get(ctx context.Context, id uuid.UUID) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, id))
}

func (m *MockService) GetPublishedBySlug(ctx context.Context, slug, locale string) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, slug, locale))
}

func (m *MockService) List(ctx context.Context, filter types.PropertyFilter) (*types.PropertyPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PropertyPage), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, id uuid.UUID, params types.UpdatePropertyParams) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, id, params))
}

func (m *MockService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockService) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, id, published))
}

func (m *MockService) Duplicate(ctx context.Context, id uuid.UUID) (*types.Property, error) {
	return propertyOrNil(m.Called(ctx, id))
}

func (m *MockService) RefreshPOIs(ctx context.Context, id uuid.UUID) (types.EnrichmentJob, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.EnrichmentJob), args.Error(1)
}

func (m *MockService) Bulk(ctx context.Context, req types.BulkRequest) (*types.BulkResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BulkResult), args.Error(1)
}

func (m *MockService) Export(ctx context.Context, publishedOnly bool) ([]types.Property, error) {
	args := m.Called(ctx, publishedOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Property), args.Error(1)
}

type fakePOIReader struct {
	grouped map[string][]types.PropertyPOI
}

func (f fakePOIReader) NearbyForProperty(context.Context, uuid.UUID) (map[string][]types.PropertyPOI, error) {
	return f.grouped, nil
}

func newTestHandler() (*Handler, *MockService) {
	svc := new(MockService)
	return NewHandler(svc, fakePOIReader{grouped: map[string][]types.PropertyPOI{}}, slog.New(slog.NewTextHandler(io.Discard, nil))), svc
}

func TestParseFilter(t *testing.T) {
	t.Run("all filters", func(t *testing.T) {
		q := url.Values{
			"q":          {" villa "},
			"purpose":    {"rent"},
			"type":       {"villa,house", "apartment"},
			"sort":       {"price_desc"},
			"min_price":  {"1000"},
			"max_price":  {"2500.5"},
			"bedrooms":   {"3"},
			"furnished":  {"true"},
			"parking":    {"false"},
			"page":       {"2"},
			"page_size":  {"50"},
			"year_built": {"2010"},
		}
		f, err := ParseFilter(q)
		require.NoError(t, err)
		assert.Equal(t, "villa", f.Query)
		assert.Equal(t, types.PurposeRent, f.Purpose)
		assert.Equal(t, []types.PropertyType{types.TypeVilla, types.TypeHouse, types.TypeApartment}, f.Types)
		assert.Equal(t, types.SortPriceDesc, f.Sort)
		assert.Equal(t, 1000.0, *f.MinPrice)
		assert.Equal(t, 2500.5, *f.MaxPrice)
		assert.Equal(t, 3, *f.Bedrooms)
		assert.True(t, *f.Furnished)
		assert.False(t, *f.Parking)
		assert.Equal(t, 2010, *f.YearBuilt)
		assert.Equal(t, 2, f.Page)
		assert.Equal(t, 50, f.PageSize)
		assert.Nil(t, f.Published)
	})

	for name, q := range map[string]url.Values{
		"bad purpose":  {"purpose": {"lease"}},
		"bad type":     {"type": {"castle"}},
		"bad sort":     {"sort": {"oldest"}},
		"bad price":    {"min_price": {"cheap"}},
		"bad bedrooms": {"bedrooms": {"2.5"}},
		"bad bool":     {"furnished": {"maybe"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilter(q)
			assert.ErrorIs(t, err, types.ErrBadRequest)
		})
	}
}

func TestHandler_ListPublic_ForcesPublished(t *testing.T) {
	h, svc := newTestHandler()
	svc.On("List", mock.Anything, mock.MatchedBy(func(f types.PropertyFilter) bool {
		return f.Published != nil && *f.Published
	})).Return(&types.PropertyPage{Items: []types.Property{}, Page: 1, PageSize: 20}, nil).Once()

	rec := httptest.NewRecorder()
	h.ListPublic(rec, httptest.NewRequest(http.MethodGet, "/api/public/properties?published=false", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_GetPublic(t *testing.T) {
	serve := func(h *Handler, slug, rawQuery string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/public/properties/"+slug+"?"+rawQuery, nil)
		req.SetPathValue("slug", slug)
		rec := httptest.NewRecorder()
		h.GetPublic(rec, req)
		return rec
	}

	t.Run("blurs coordinates", func(t *testing.T) {
		h, svc := newTestHandler()
		p := sampleProperty()
		p.Lat, p.Lng = floatPtr(31.768345), floatPtr(35.213789)
		svc.On("GetPublishedBySlug", mock.Anything, p.SlugEN, "en").Return(&p, nil).Once()

		rec := serve(h, p.SlugEN, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got types.Property
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 31.768, *got.Lat)
		assert.Equal(t, 35.214, *got.Lng)
	})

	t.Run("exact location when allowed", func(t *testing.T) {
		h, svc := newTestHandler()
		p := sampleProperty()
		p.ShowExactLocation = true
		p.Lat = floatPtr(31.768345)
		svc.On("GetPublishedBySlug", mock.Anything, "slug", "ar").Return(&p, nil).Once()

		rec := serve(h, "slug", "locale=ar")
		require.Equal(t, http.StatusOK, rec.Code)
		var got types.Property
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 31.768345, *got.Lat)
	})

	t.Run("not found", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("GetPublishedBySlug", mock.Anything, "missing", "en").Return(nil, types.ErrNotFound).Once()
		assert.Equal(t, http.StatusNotFound, serve(h, "missing", "").Code)
	})
}

func TestHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h, svc := newTestHandler()
		p := sampleProperty()
		svc.On("Create", mock.Anything, mock.MatchedBy(func(params types.CreatePropertyParams) bool {
			return params.TitleEN == "Villa" && params.Purpose == types.PurposeRent
		})).Return(&p, nil).Once()

		body := `{"title_en":"Villa","title_ar":"فيلا","purpose":"rent","type":"villa","price_amount":1200}`
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties", strings.NewReader(body)))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		h, _ := newTestHandler()
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties", strings.NewReader(`{"colour":"red"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("slug conflict", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, types.ErrConflict).Once()
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties", strings.NewReader(`{"title_en":"x"}`)))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func idRequest(method, target string, id string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.SetPathValue("id", id)
	return req
}

func TestHandler_AdminByID(t *testing.T) {
	p := sampleProperty()
	id := p.ID.String()

	t.Run("invalid id", func(t *testing.T) {
		h, _ := newTestHandler()
		rec := httptest.NewRecorder()
		h.Get(rec, idRequest(http.MethodGet, "/api/admin/properties/nope", "nope", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Update", mock.Anything, p.ID, types.UpdatePropertyParams{PriceAmount: floatPtr(10)}).Return(&p, nil).Once()
		rec := httptest.NewRecorder()
		h.Update(rec, idRequest(http.MethodPatch, "/api/admin/properties/"+id, id, `{"price_amount":10}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Delete", mock.Anything, p.ID).Return(nil).Once()
		rec := httptest.NewRecorder()
		h.Delete(rec, idRequest(http.MethodDelete, "/api/admin/properties/"+id, id, ""))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("publish and unpublish", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("SetPublished", mock.Anything, p.ID, true).Return(&p, nil).Once()
		svc.On("SetPublished", mock.Anything, p.ID, false).Return(&p, nil).Once()

		rec := httptest.NewRecorder()
		h.Publish(rec, idRequest(http.MethodPost, "/api/admin/properties/"+id+"/publish", id, ""))
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = httptest.NewRecorder()
		h.Unpublish(rec, idRequest(http.MethodPost, "/api/admin/properties/"+id+"/unpublish", id, ""))
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("duplicate", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Duplicate", mock.Anything, p.ID).Return(&p, nil).Once()
		rec := httptest.NewRecorder()
		h.Duplicate(rec, idRequest(http.MethodPost, "/api/admin/properties/"+id+"/duplicate", id, ""))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("pois", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Get", mock.Anything, p.ID).Return(&p, nil).Once()
		rec := httptest.NewRecorder()
		h.POIs(rec, idRequest(http.MethodGet, "/api/admin/properties/"+id+"/pois", id, ""))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{}`, rec.Body.String())
	})

	t.Run("refresh pois", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("RefreshPOIs", mock.Anything, p.ID).Return(types.EnrichmentJob{ID: uuid.New(), Status: types.JobQueued}, nil).Once()
		rec := httptest.NewRecorder()
		h.RefreshPOIs(rec, idRequest(http.MethodPost, "/api/admin/properties/"+id+"/pois/refresh", id, ""))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("refresh pois without coordinates", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("RefreshPOIs", mock.Anything, p.ID).Return(types.EnrichmentJob{}, types.ErrMissingCoordinates).Once()
		rec := httptest.NewRecorder()
		h.RefreshPOIs(rec, idRequest(http.MethodPost, "/api/admin/properties/"+id+"/pois/refresh", id, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Bulk(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("returns counts", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Bulk", mock.Anything, types.BulkRequest{
			PropertyIDs: []uuid.UUID{a, b},
			Operation:   types.BulkPublish,
		}).Return(&types.BulkResult{Message: "Bulk operation 'publish' completed", UpdatedCount: 1, TotalRequested: 2}, nil).Once()

		body := `{"property_ids":["` + a.String() + `","` + b.String() + `"],"operation":"publish"}`
		rec := httptest.NewRecorder()
		h.Bulk(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties/bulk", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Bulk operation 'publish' completed","updated_count":1,"total_requested":2}`, rec.Body.String())
	})

	t.Run("malformed id", func(t *testing.T) {
		h, svc := newTestHandler()
		rec := httptest.NewRecorder()
		h.Bulk(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties/bulk",
			strings.NewReader(`{"property_ids":["nope"],"operation":"publish"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Bulk", mock.Anything, mock.Anything)
	})

	t.Run("nothing found", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Bulk", mock.Anything, mock.Anything).Return(nil, types.ErrNotFound).Once()
		rec := httptest.NewRecorder()
		h.Bulk(rec, httptest.NewRequest(http.MethodPost, "/api/admin/properties/bulk",
			strings.NewReader(`{"property_ids":["`+a.String()+`"],"operation":"delete"}`)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_ExportCSV(t *testing.T) {
	p := sampleProperty()
	p.CreatedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	p.AreaM2 = floatPtr(120.5)
	p.Furnished = true

	t.Run("writes header and rows", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Export", mock.Anything, true).Return([]types.Property{p}, nil).Once()

		rec := httptest.NewRecorder()
		h.ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/admin/properties/export/csv?published_only=true", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=properties_export.csv", rec.Header().Get("Content-Disposition"))

		records, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Len(t, records[0], 20)
		assert.Equal(t, exportHeader, records[0])
		assert.Equal(t, []string{
			p.ID.String(), "Sea View Apartment", "شقة بإطلالة بحرية", "sell", "apartment", "available",
			"250000", "USD", "120.5", "3", "",
			"Yes", "No", "", "",
			"", "", "No", "Yes", "2026-03-01T09:30:00Z",
		}, records[1])
	})

	t.Run("defaults to all properties", func(t *testing.T) {
		h, svc := newTestHandler()
		svc.On("Export", mock.Anything, false).Return([]types.Property{}, nil).Once()

		rec := httptest.NewRecorder()
		h.ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/admin/properties/export/csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		records, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("bad flag", func(t *testing.T) {
		h, svc := newTestHandler()
		rec := httptest.NewRecorder()
		h.ExportCSV(rec, httptest.NewRequest(http.MethodGet, "/api/admin/properties/export/csv?published_only=sometimes", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
	})
}
