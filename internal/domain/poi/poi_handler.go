package poi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
	"github.com/FACorreiaa/aqarbay-api/pkg/httpx"
)

// PropertyLookup resolves a published property by its locale specific slug.
// Drafts resolve to types.ErrNotFound.
type PropertyLookup interface {
	GetPublishedBySlug(ctx context.Context, slug, locale string) (*types.Property, error)
}

type Handler struct {
	service    Service
	properties PropertyLookup
	logger     *slog.Logger
}

func NewHandler(service Service, properties PropertyLookup, logger *slog.Logger) *Handler {
	return &Handler{service: service, properties: properties, logger: logger}
}

// ParseLocale accepts "en" (default) or "ar".
func ParseLocale(raw string) (string, bool) {
	switch raw {
	case "", "en":
		return "en", true
	case "ar":
		return "ar", true
	}
	return "", false
}

// NearbyPOIs serves GET /api/public/properties/{slug}/nearby-pois.
func (h *Handler) NearbyPOIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale, ok := ParseLocale(r.URL.Query().Get("locale"))
	if !ok {
		httpx.WriteProblem(w, http.StatusBadRequest, "Bad Request", "locale must be en or ar", r.URL.Path)
		return
	}

	prop, err := h.properties.GetPublishedBySlug(ctx, r.PathValue("slug"), locale)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if !prop.HasCoordinates() {
		httpx.WriteProblem(w, http.StatusBadRequest, "Bad Request",
			"Property does not have coordinates. Please add lat/lng to the property.", r.URL.Path)
		return
	}

	grouped, err := h.service.NearbyForProperty(ctx, prop.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load nearby POIs",
			slog.String("property_id", prop.ID.String()),
			slog.Any("error", err))
		httpx.WriteError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, types.NearbyPOIsResponse{
		PropertyID:      prop.ID,
		PropertyTitleEN: prop.TitleEN,
		PropertyTitleAR: prop.TitleAR,
		Coordinates:     types.Coordinates{Lat: *prop.Lat, Lng: *prop.Lng},
		POIs:            ToViews(grouped, locale),
	})
}

// Preview serves GET /api/admin/pois/preview and runs the pipeline for an
// arbitrary point without caching the result.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "Bad Request", "lat and lng are required numbers", r.URL.Path)
		return
	}

	opts := Options{Locale: q.Get("locale")}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.Atoi(v)
		if err != nil || radius <= 0 || radius > 10000 {
			httpx.WriteProblem(w, http.StatusBadRequest, "Bad Request", "radius must be between 1 and 10000", r.URL.Path)
			return
		}
		opts.RadiusMeters = radius
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 100 {
			httpx.WriteProblem(w, http.StatusBadRequest, "Bad Request", "limit must be between 1 and 100", r.URL.Path)
			return
		}
		opts.LimitPerCategory = limit
	}
	if v := q.Get("categories"); v != "" {
		categories, err := ParseCategories(strings.Split(v, ","))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		opts.Categories = categories
	}

	ranked, err := h.service.FetchNearby(r.Context(), lat, lng, opts)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ranked)
}

// ToViews renders cached rows for the given locale. The Arabic name wins for
// "ar" when present; otherwise the English name, then the stored name.
func ToViews(grouped map[string][]types.PropertyPOI, locale string) map[string][]types.NearbyPOIView {
	out := make(map[string][]types.NearbyPOIView, len(grouped))
	for category, rows := range grouped {
		views := make([]types.NearbyPOIView, 0, len(rows))
		for _, p := range rows {
			nameEN := deref(p.NameEN)
			nameAR := deref(p.NameAR)

			name := p.Name
			switch {
			case locale == "ar" && nameAR != "":
				name = nameAR
			case nameEN != "":
				name = nameEN
			}
			if nameEN == "" {
				nameEN = p.Name
			}
			if nameAR == "" {
				nameAR = p.Name
			}

			views = append(views, types.NearbyPOIView{
				Name:     name,
				NameEN:   nameEN,
				NameAR:   nameAR,
				Lat:      p.Lat,
				Lng:      p.Lng,
				Distance: p.Distance,
				Type:     p.POIType,
				Address:  p.Address,
			})
		}
		out[category] = views
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
