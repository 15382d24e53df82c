package types

import (
	"time"

	"github.com/google/uuid"
)

// POICategory is one of the fixed buckets nearby amenities are classified into.
type POICategory string

const (
	CategorySchools      POICategory = "schools"
	CategoryMosques      POICategory = "mosques"
	CategoryHospitals    POICategory = "hospitals"
	CategorySupermarkets POICategory = "supermarkets"
	CategoryBanks        POICategory = "banks"
	CategoryRestaurants  POICategory = "restaurants"
	CategoryParks        POICategory = "parks"
	CategoryGasStations  POICategory = "gas_stations"
)

// OverpassElement is a single record from an Overpass JSON response.
type OverpassElement struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type OverpassResponse struct {
	Version   float64           `json:"version"`
	Generator string            `json:"generator"`
	Elements  []OverpassElement `json:"elements"`
}

// NearbyPOI is the normalized projection of a classified map record. Empty
// optional strings mean the tag was absent.
type NearbyPOI struct {
	Category  POICategory `json:"category"`
	Name      string      `json:"name"`
	NameEN    string      `json:"name_en,omitempty"`
	NameAR    string      `json:"name_ar,omitempty"`
	Lat       float64     `json:"lat"`
	Lng       float64     `json:"lng"`
	Distance  float64     `json:"distance"`
	POIType   string      `json:"type,omitempty"`
	Address   string      `json:"address,omitempty"`
	SortOrder int         `json:"sort_order"`
}

// PropertyPOI is a persisted row of the property_pois cache.
type PropertyPOI struct {
	ID         uuid.UUID   `json:"id"`
	PropertyID uuid.UUID   `json:"property_id"`
	Category   POICategory `json:"category"`
	Name       string      `json:"name"`
	NameEN     *string     `json:"name_en,omitempty"`
	NameAR     *string     `json:"name_ar,omitempty"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
	Distance   float64     `json:"distance"`
	POIType    *string     `json:"poi_type,omitempty"`
	Address    *string     `json:"address,omitempty"`
	SortOrder  int         `json:"sort_order"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// EnrichmentResult summarizes one pipeline run for a property.
type EnrichmentResult struct {
	PropertyID uuid.UUID           `json:"property_id"`
	Counts     map[POICategory]int `json:"counts"`
	Total      int                 `json:"total"`
	// Degraded is set when the upstream fetch failed and an empty set was cached.
	Degraded bool `json:"degraded"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbyPOIView is the locale-aware public representation of a cached POI.
type NearbyPOIView struct {
	Name     string  `json:"name"`
	NameEN   string  `json:"name_en"`
	NameAR   string  `json:"name_ar"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Distance float64 `json:"distance"`
	Type     *string `json:"type"`
	Address  *string `json:"address"`
}

type NearbyPOIsResponse struct {
	PropertyID      uuid.UUID                  `json:"property_id"`
	PropertyTitleEN string                     `json:"property_title_en"`
	PropertyTitleAR string                     `json:"property_title_ar"`
	Coordinates     Coordinates                `json:"coordinates"`
	POIs            map[string][]NearbyPOIView `json:"pois"`
}
