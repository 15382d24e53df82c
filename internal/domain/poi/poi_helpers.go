package poi

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two points in
// metres. orb.Point is [lng, lat].
func HaversineMeters(a, b orb.Point) float64 {
	lat1Rad := a.Lat() * math.Pi / 180
	lat2Rad := b.Lat() * math.Pi / 180
	deltaLat := (b.Lat() - a.Lat()) * math.Pi / 180
	deltaLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// Rank computes distances from origin, orders each category by distance
// (stable, so ties keep discovery order) and keeps at most limit entries.
// Every requested category is present in the output, possibly empty.
func Rank(origin orb.Point, candidates []types.NearbyPOI, categories []types.POICategory, limit int) map[types.POICategory][]types.NearbyPOI {
	if limit <= 0 {
		limit = DefaultLimitPerCategory
	}
	out := make(map[types.POICategory][]types.NearbyPOI, len(categories))
	for _, c := range categories {
		out[c] = []types.NearbyPOI{}
	}

	for _, p := range candidates {
		bucket, requested := out[p.Category]
		if !requested {
			continue
		}
		p.Distance = roundTenth(HaversineMeters(origin, orb.Point{p.Lng, p.Lat}))
		out[p.Category] = append(bucket, p)
	}

	for c, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Distance < list[j].Distance })
		if len(list) > limit {
			list = list[:limit]
		}
		for i := range list {
			list[i].SortOrder = i
		}
		out[c] = list
	}
	return out
}

// countByCategory summarizes a ranked result.
func countByCategory(ranked map[types.POICategory][]types.NearbyPOI) (map[types.POICategory]int, int) {
	counts := make(map[types.POICategory]int, len(ranked))
	total := 0
	for c, list := range ranked {
		counts[c] = len(list)
		total += len(list)
	}
	return counts, total
}

// toRows flattens a ranked result into cache rows, ordered by the category table.
func toRows(propertyID uuid.UUID, ranked map[types.POICategory][]types.NearbyPOI) []types.PropertyPOI {
	var rows []types.PropertyPOI
	for _, rule := range Categories {
		for _, p := range ranked[rule.Category] {
			rows = append(rows, types.PropertyPOI{
				ID:         uuid.New(),
				PropertyID: propertyID,
				Category:   p.Category,
				Name:       p.Name,
				NameEN:     nullable(p.NameEN),
				NameAR:     nullable(p.NameAR),
				Lat:        p.Lat,
				Lng:        p.Lng,
				Distance:   p.Distance,
				POIType:    nullable(p.POIType),
				Address:    nullable(p.Address),
				SortOrder:  p.SortOrder,
			})
		}
	}
	return rows
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// groupRows buckets cached rows by category, keeping their stored order.
func groupRows(rows []types.PropertyPOI) map[string][]types.PropertyPOI {
	grouped := make(map[string][]types.PropertyPOI)
	for _, r := range rows {
		k := string(r.Category)
		grouped[k] = append(grouped[k], r)
	}
	return grouped
}

func generateNearbyCacheKey(propertyID uuid.UUID) string {
	return fmt.Sprintf("property_pois:%s", propertyID)
}
