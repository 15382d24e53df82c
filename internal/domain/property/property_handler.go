package property

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/httpx"
)

// POIReader returns cached POIs grouped by category.
type POIReader interface {
	NearbyForProperty(ctx context.Context, propertyID uuid.UUID) (map[string][]types.PropertyPOI, error)
}

type Handler struct {
	service Service
	pois    POIReader
	logger  *slog.Logger
}

func NewHandler(service Service, pois POIReader, logger *slog.Logger) *Handler {
	return &Handler{service: service, pois: pois, logger: logger}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid property id", types.ErrBadRequest)
	}
	return id, nil
}

// ParseFilter reads listing filters from query parameters.
func ParseFilter(q url.Values) (types.PropertyFilter, error) {
	f := types.PropertyFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  types.PropertySort(q.Get("sort")),
	}
	var err error

	if v := q.Get("purpose"); v != "" {
		f.Purpose = types.PropertyPurpose(v)
		if !f.Purpose.Valid() {
			return f, fmt.Errorf("%w: invalid purpose %q", types.ErrBadRequest, v)
		}
	}
	for _, raw := range q["type"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			t := types.PropertyType(v)
			if !t.Valid() {
				return f, fmt.Errorf("%w: invalid type %q", types.ErrBadRequest, v)
			}
			f.Types = append(f.Types, t)
		}
	}
	switch f.Sort {
	case "", types.SortNewest, types.SortPriceAsc, types.SortPriceDesc:
	default:
		return f, fmt.Errorf("%w: invalid sort %q", types.ErrBadRequest, f.Sort)
	}

	if f.MinPrice, err = floatParam(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(q, "max_price"); err != nil {
		return f, err
	}
	if f.MinArea, err = floatParam(q, "min_area"); err != nil {
		return f, err
	}
	if f.MaxArea, err = floatParam(q, "max_area"); err != nil {
		return f, err
	}
	if f.Bedrooms, err = intParam(q, "bedrooms"); err != nil {
		return f, err
	}
	if f.Bathrooms, err = intParam(q, "bathrooms"); err != nil {
		return f, err
	}
	if f.YearBuilt, err = intParam(q, "year_built"); err != nil {
		return f, err
	}
	if f.Floor, err = intParam(q, "floor"); err != nil {
		return f, err
	}
	if f.Furnished, err = boolParam(q, "furnished"); err != nil {
		return f, err
	}
	if f.Parking, err = boolParam(q, "parking"); err != nil {
		return f, err
	}
	if f.Featured, err = boolParam(q, "featured"); err != nil {
		return f, err
	}
	if f.Published, err = boolParam(q, "published"); err != nil {
		return f, err
	}

	if p, err := intParam(q, "page"); err != nil {
		return f, err
	} else if p != nil {
		f.Page = *p
	}
	if p, err := intParam(q, "page_size"); err != nil {
		return f, err
	} else if p != nil {
		f.PageSize = *p
	}
	return f, nil
}

func floatParam(q url.Values, key string) (*float64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", types.ErrBadRequest, key)
	}
	return &f, nil
}

func intParam(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", types.ErrBadRequest, key)
	}
	return &i, nil
}

func boolParam(q url.Values, key string) (*bool, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", types.ErrBadRequest, key)
	}
	return &b, nil
}

// ListPublic serves GET /api/public/properties. Only published listings are returned.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	published := true
	filter.Published = &published

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// GetPublic serves GET /api/public/properties/{slug}.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	locale := r.URL.Query().Get("locale")
	if locale != "ar" {
		locale = "en"
	}
	p, err := h.service.GetPublishedBySlug(r.Context(), r.PathValue("slug"), locale)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if !p.ShowExactLocation {
		p.Lat, p.Lng = blurCoordinate(p.Lat), blurCoordinate(p.Lng)
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// blurCoordinate rounds to three decimals, roughly 100 m.
func blurCoordinate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(*v, 'f', 3, 64), 64)
	return &rounded
}

// List serves GET /api/admin/properties.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Create serves POST /api/admin/properties.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var params types.CreatePropertyParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), params)
	if err != nil {
		h.logError(r, "create property", err)
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// Get serves GET /api/admin/properties/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Update serves PUT and PATCH /api/admin/properties/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var params types.UpdatePropertyParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, params)
	if err != nil {
		h.logError(r, "update property", err)
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Delete serves DELETE /api/admin/properties/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logError(r, "delete property", err)
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPublished(published bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		p, err := h.service.SetPublished(r.Context(), id, published)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}

// Publish serves POST /api/admin/properties/{id}/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(true)(w, r)
}

// Unpublish serves POST /api/admin/properties/{id}/unpublish.
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(false)(w, r)
}

// Duplicate serves POST /api/admin/properties/{id}/duplicate.
func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.service.Duplicate(r.Context(), id)
	if err != nil {
		h.logError(r, "duplicate property", err)
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// POIs serves GET /api/admin/properties/{id}/pois.
func (h *Handler) POIs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	grouped, err := h.pois.NearbyForProperty(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, grouped)
}

// RefreshPOIs serves POST /api/admin/properties/{id}/pois/refresh.
func (h *Handler) RefreshPOIs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	job, err := h.service.RefreshPOIs(r.Context(), id)
	if err != nil {
		h.logError(r, "refresh POIs", err)
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, job)
}

// Bulk serves POST /api/admin/properties/bulk.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req types.BulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.service.Bulk(r.Context(), req)
	if err != nil {
		h.logError(r, "run bulk operation", err)
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// ExportCSV serves GET /api/admin/properties/export/csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	publishedOnly, err := boolParam(r.URL.Query(), "published_only")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	properties, err := h.service.Export(r.Context(), publishedOnly != nil && *publishedOnly)
	if err != nil {
		h.logError(r, "export properties", err)
		httpx.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=properties_export.csv")
	w.WriteHeader(http.StatusOK)
	if err := writeCSV(w, properties); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write CSV export", slog.Any("error", err))
	}
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	if httpx.StatusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(r.Context(), "Failed to "+op, slog.Any("error", err))
}
