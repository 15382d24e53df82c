package poi

import (
	"strings"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

const unknownName = "Unknown"

// Classify returns the first category whose rule matches tags.
func Classify(tags map[string]string) (types.POICategory, bool) {
	if len(tags) == 0 {
		return "", false
	}
	for _, r := range Categories {
		if r.Matches(tags) {
			return r.Category, true
		}
	}
	return "", false
}

// Project turns a raw map record into a NearbyPOI. Records that are not nodes,
// lack a position or match no category are rejected. Distance and SortOrder
// are filled in by the ranker.
func Project(el types.OverpassElement, locale string) (types.NearbyPOI, bool) {
	if el.Type != "node" {
		return types.NearbyPOI{}, false
	}
	if el.Lat == 0 || el.Lon == 0 {
		return types.NearbyPOI{}, false
	}
	category, ok := Classify(el.Tags)
	if !ok {
		return types.NearbyPOI{}, false
	}
	return types.NearbyPOI{
		Category: category,
		Name:     resolveName(el.Tags, locale),
		NameEN:   tag(el.Tags, "name"),
		NameAR:   tag(el.Tags, "name:ar"),
		Lat:      el.Lat,
		Lng:      el.Lon,
		POIType:  firstTag(el.Tags, "amenity", "shop", "leisure"),
		Address:  firstTag(el.Tags, "addr:street", "address"),
	}, true
}

// resolveName picks name:<locale>, then name, then the amenity or shop value.
func resolveName(tags map[string]string, locale string) string {
	if locale == "" {
		locale = "ar"
	}
	if n := firstTag(tags, "name:"+locale, "name", "amenity", "shop"); n != "" {
		return n
	}
	return unknownName
}

func tag(tags map[string]string, key string) string {
	return strings.TrimSpace(tags[key])
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tag(tags, k); v != "" {
			return v
		}
	}
	return ""
}
