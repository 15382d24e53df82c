package poi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

const (
	DefaultRadiusMeters     = 1000
	DefaultLimitPerCategory = 10
	overpassServerTimeout   = 25
)

type QueryParams struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
	Categories   []types.POICategory
}

// ValidCoordinates reports whether lat and lng are on the globe.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// BuildQuery renders an Overpass QL union of node searches, one per category
// predicate set, around the given point.
func BuildQuery(p QueryParams) (string, error) {
	if !ValidCoordinates(p.Lat, p.Lng) {
		return "", fmt.Errorf("%w: lat=%f lng=%f", types.ErrInvalidCoordinates, p.Lat, p.Lng)
	}
	radius := p.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	categories := p.Categories
	if len(categories) == 0 {
		categories = AllCategories()
	}

	around := fmt.Sprintf("(around:%d,%s,%s)", radius, formatCoord(p.Lat), formatCoord(p.Lng))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", overpassServerTimeout)
	for _, c := range categories {
		rule, ok := ruleFor(c)
		if !ok {
			return "", fmt.Errorf("%w: unknown POI category %q", types.ErrBadRequest, c)
		}
		fmt.Fprintf(&b, "  node%s%s;\n", rule.Selector(), around)
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;")
	return b.String(), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
