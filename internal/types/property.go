package types

import (
	"time"

	"github.com/google/uuid"
)

type PropertyPurpose string

const (
	PurposeSell PropertyPurpose = "sell"
	PurposeRent PropertyPurpose = "rent"
)

type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeVilla      PropertyType = "villa"
	TypeLand       PropertyType = "land"
	TypeCommercial PropertyType = "commercial"
	TypeOffice     PropertyType = "office"
	TypeStore      PropertyType = "store"
)

type PropertyStatus string

const (
	StatusAvailable PropertyStatus = "available"
	StatusReserved  PropertyStatus = "reserved"
	StatusSold      PropertyStatus = "sold"
	StatusRented    PropertyStatus = "rented"
)

type Currency string

const (
	CurrencyILS Currency = "ILS"
	CurrencyUSD Currency = "USD"
	CurrencyJOD Currency = "JOD"
)

func (p PropertyPurpose) Valid() bool { return p == PurposeSell || p == PurposeRent }

func (t PropertyType) Valid() bool {
	switch t {
	case TypeApartment, TypeHouse, TypeVilla, TypeLand, TypeCommercial, TypeOffice, TypeStore:
		return true
	}
	return false
}

func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold, StatusRented:
		return true
	}
	return false
}

func (c Currency) Valid() bool {
	return c == CurrencyILS || c == CurrencyUSD || c == CurrencyJOD
}

// Property is a real-estate listing.
type Property struct {
	ID                uuid.UUID       `json:"id"`
	TitleEN           string          `json:"title_en"`
	TitleAR           string          `json:"title_ar"`
	SlugEN            string          `json:"slug_en"`
	SlugAR            string          `json:"slug_ar"`
	DescriptionEN     *string         `json:"description_en,omitempty"`
	DescriptionAR     *string         `json:"description_ar,omitempty"`
	Purpose           PropertyPurpose `json:"purpose"`
	Type              PropertyType    `json:"type"`
	Status            PropertyStatus  `json:"status"`
	PriceAmount       float64         `json:"price_amount"`
	PriceCurrency     Currency        `json:"price_currency"`
	AreaM2            *float64        `json:"area_m2,omitempty"`
	Bedrooms          *int            `json:"bedrooms,omitempty"`
	Bathrooms         *int            `json:"bathrooms,omitempty"`
	Furnished         bool            `json:"furnished"`
	Parking           bool            `json:"parking"`
	Floor             *int            `json:"floor,omitempty"`
	YearBuilt         *int            `json:"year_built,omitempty"`
	VideoURL          *string         `json:"video_url,omitempty"`
	Lat               *float64        `json:"lat,omitempty"`
	Lng               *float64        `json:"lng,omitempty"`
	ShowExactLocation bool            `json:"show_exact_location"`
	Featured          bool            `json:"featured"`
	Published         bool            `json:"published"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	AgentID           *uuid.UUID      `json:"agent_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HasCoordinates reports whether both lat and lng are set.
func (p *Property) HasCoordinates() bool {
	return p.Lat != nil && p.Lng != nil
}

// Title returns the title for the given locale, falling back to English.
func (p *Property) Title(locale string) string {
	if locale == "ar" && p.TitleAR != "" {
		return p.TitleAR
	}
	return p.TitleEN
}

type CreatePropertyParams struct {
	TitleEN           string          `json:"title_en"`
	TitleAR           string          `json:"title_ar"`
	SlugEN            string          `json:"slug_en,omitempty"`
	SlugAR            string          `json:"slug_ar,omitempty"`
	DescriptionEN     *string         `json:"description_en,omitempty"`
	DescriptionAR     *string         `json:"description_ar,omitempty"`
	Purpose           PropertyPurpose `json:"purpose"`
	Type              PropertyType    `json:"type"`
	Status            PropertyStatus  `json:"status,omitempty"`
	PriceAmount       float64         `json:"price_amount"`
	PriceCurrency     Currency        `json:"price_currency,omitempty"`
	AreaM2            *float64        `json:"area_m2,omitempty"`
	Bedrooms          *int            `json:"bedrooms,omitempty"`
	Bathrooms         *int            `json:"bathrooms,omitempty"`
	Furnished         bool            `json:"furnished"`
	Parking           bool            `json:"parking"`
	Floor             *int            `json:"floor,omitempty"`
	YearBuilt         *int            `json:"year_built,omitempty"`
	VideoURL          *string         `json:"video_url,omitempty"`
	Lat               *float64        `json:"lat,omitempty"`
	Lng               *float64        `json:"lng,omitempty"`
	ShowExactLocation bool            `json:"show_exact_location"`
	Featured          bool            `json:"featured"`
	Published         bool            `json:"published"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	AgentID           *uuid.UUID      `json:"agent_id,omitempty"`
}

// UpdatePropertyParams is a partial update; nil fields are left untouched.
type UpdatePropertyParams struct {
	TitleEN           *string          `json:"title_en,omitempty"`
	TitleAR           *string          `json:"title_ar,omitempty"`
	SlugEN            *string          `json:"slug_en,omitempty"`
	SlugAR            *string          `json:"slug_ar,omitempty"`
	DescriptionEN     *string          `json:"description_en,omitempty"`
	DescriptionAR     *string          `json:"description_ar,omitempty"`
	Purpose           *PropertyPurpose `json:"purpose,omitempty"`
	Type              *PropertyType    `json:"type,omitempty"`
	Status            *PropertyStatus  `json:"status,omitempty"`
	PriceAmount       *float64         `json:"price_amount,omitempty"`
	PriceCurrency     *Currency        `json:"price_currency,omitempty"`
	AreaM2            *float64         `json:"area_m2,omitempty"`
	Bedrooms          *int             `json:"bedrooms,omitempty"`
	Bathrooms         *int             `json:"bathrooms,omitempty"`
	Furnished         *bool            `json:"furnished,omitempty"`
	Parking           *bool            `json:"parking,omitempty"`
	Floor             *int             `json:"floor,omitempty"`
	YearBuilt         *int             `json:"year_built,omitempty"`
	VideoURL          *string          `json:"video_url,omitempty"`
	Lat               *float64         `json:"lat,omitempty"`
	Lng               *float64         `json:"lng,omitempty"`
	ShowExactLocation *bool            `json:"show_exact_location,omitempty"`
	Featured          *bool            `json:"featured,omitempty"`
	Published         *bool            `json:"published,omitempty"`
	LocationID        *uuid.UUID       `json:"location_id,omitempty"`
	AgentID           *uuid.UUID       `json:"agent_id,omitempty"`
}

type PropertySort string

const (
	SortNewest    PropertySort = "newest"
	SortPriceAsc  PropertySort = "price_asc"
	SortPriceDesc PropertySort = "price_desc"
)

// PropertyFilter narrows a property listing. Zero values disable a filter.
type PropertyFilter struct {
	Query     string
	Purpose   PropertyPurpose
	Types     []PropertyType
	MinPrice  *float64
	MaxPrice  *float64
	Bedrooms  *int
	Bathrooms *int
	MinArea   *float64
	MaxArea   *float64
	YearBuilt *int
	Furnished *bool
	Parking   *bool
	Floor     *int
	Featured  *bool
	Published *bool
	IDs       []uuid.UUID
	Sort      PropertySort
	Page      int
	PageSize  int
}

type PropertyPage struct {
	Items      []Property `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

type BulkOperation string

const (
	BulkPublish     BulkOperation = "publish"
	BulkUnpublish   BulkOperation = "unpublish"
	BulkDelete      BulkOperation = "delete"
	BulkSetStatus   BulkOperation = "set_status"
	BulkSetFeatured BulkOperation = "set_featured"
)

// BulkRequest applies one operation to many properties. Value carries the
// status for set_status and "true"/"false" for set_featured.
type BulkRequest struct {
	PropertyIDs []uuid.UUID   `json:"property_ids"`
	Operation   BulkOperation `json:"operation"`
	Value       *string       `json:"value,omitempty"`
}

type BulkResult struct {
	Message        string `json:"message"`
	UpdatedCount   int    `json:"updated_count"`
	TotalRequested int    `json:"total_requested"`
}
