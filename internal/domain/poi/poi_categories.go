package poi

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

// TagPredicate matches an OSM tag against a set of allowed values.
type TagPredicate struct {
	Key    string
	Values []string
}

// Matches compares the tag value case-insensitively.
func (p TagPredicate) Matches(tags map[string]string) bool {
	v, ok := tags[p.Key]
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	for _, want := range p.Values {
		if v == want {
			return true
		}
	}
	return false
}

// Filter renders the predicate as an Overpass tag filter.
func (p TagPredicate) Filter() string {
	if len(p.Values) == 1 {
		return fmt.Sprintf(`["%s"="%s"]`, p.Key, p.Values[0])
	}
	return fmt.Sprintf(`["%s"~"^(%s)$"]`, p.Key, strings.Join(p.Values, "|"))
}

// CategoryRule maps a category to the tag predicates that identify it. All
// predicates must match.
type CategoryRule struct {
	Category   types.POICategory
	Icon       string
	Predicates []TagPredicate
}

// Matches reports whether every predicate of the rule holds for tags.
func (r CategoryRule) Matches(tags map[string]string) bool {
	if len(r.Predicates) == 0 {
		return false
	}
	for _, p := range r.Predicates {
		if !p.Matches(tags) {
			return false
		}
	}
	return true
}

// Selector renders the rule as the tag filter part of an Overpass node statement.
func (r CategoryRule) Selector() string {
	var b strings.Builder
	for _, p := range r.Predicates {
		b.WriteString(p.Filter())
	}
	return b.String()
}

// Categories drives both query building and classification. Order is
// classification precedence: the first matching rule wins.
var Categories = []CategoryRule{
	{
		Category:   types.CategorySchools,
		Icon:       "school",
		Predicates: []TagPredicate{{Key: "amenity", Values: []string{"school", "university", "kindergarten", "college"}}},
	},
	{
		Category: types.CategoryMosques,
		Icon:     "mosque",
		Predicates: []TagPredicate{
			{Key: "amenity", Values: []string{"place_of_worship"}},
			{Key: "religion", Values: []string{"muslim"}},
		},
	},
	{
		Category:   types.CategoryHospitals,
		Icon:       "hospital",
		Predicates: []TagPredicate{{Key: "amenity", Values: []string{"hospital", "clinic", "pharmacy"}}},
	},
	{
		Category:   types.CategorySupermarkets,
		Icon:       "shopping-cart",
		Predicates: []TagPredicate{{Key: "shop", Values: []string{"supermarket", "convenience", "grocery"}}},
	},
	{
		Category:   types.CategoryBanks,
		Icon:       "bank",
		Predicates: []TagPredicate{{Key: "amenity", Values: []string{"bank"}}},
	},
	{
		Category:   types.CategoryRestaurants,
		Icon:       "utensils",
		Predicates: []TagPredicate{{Key: "amenity", Values: []string{"restaurant", "cafe", "fast_food"}}},
	},
	{
		Category:   types.CategoryParks,
		Icon:       "tree",
		Predicates: []TagPredicate{{Key: "leisure", Values: []string{"park", "playground"}}},
	},
	{
		Category:   types.CategoryGasStations,
		Icon:       "gas-pump",
		Predicates: []TagPredicate{{Key: "amenity", Values: []string{"fuel"}}},
	},
}

// AllCategories returns every category key in table order.
func AllCategories() []types.POICategory {
	out := make([]types.POICategory, 0, len(Categories))
	for _, r := range Categories {
		out = append(out, r.Category)
	}
	return out
}

func ruleFor(c types.POICategory) (CategoryRule, bool) {
	for _, r := range Categories {
		if r.Category == c {
			return r, true
		}
	}
	return CategoryRule{}, false
}

// ParseCategories validates raw category names. An empty input selects all
// categories. Duplicates are dropped.
func ParseCategories(raw []string) ([]types.POICategory, error) {
	if len(raw) == 0 {
		return AllCategories(), nil
	}
	seen := make(map[types.POICategory]struct{}, len(raw))
	out := make([]types.POICategory, 0, len(raw))
	for _, s := range raw {
		c := types.POICategory(strings.ToLower(strings.TrimSpace(s)))
		if c == "" {
			continue
		}
		if _, ok := ruleFor(c); !ok {
			return nil, fmt.Errorf("%w: unknown POI category %q", types.ErrBadRequest, s)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return AllCategories(), nil
	}
	return out, nil
}
