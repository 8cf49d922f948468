package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Place is a managed record in one of the two collections.
type Place struct {
	ID       string   `json:"id,omitempty" bson:"_id,omitempty"`
	Name     string   `json:"name" bson:"name"`
	Address  string   `json:"address" bson:"address"`
	Lat      float64  `json:"lat" bson:"lat"`
	Lng      float64  `json:"lng" bson:"lng"`
	Category Category `json:"category,omitempty" bson:"category,omitempty"`
	Visited  bool     `json:"visited" bson:"visited"`
}

// List returns the collection the place belongs to. Membership is derived from Visited.
func (p Place) List() List {
	if p.Visited {
		return ListVisited
	}
	return ListWantToGo
}

// Candidate is an unmanaged search suggestion.
type Candidate struct {
	Name    string  `json:"name" bson:"name"`
	Address string  `json:"address" bson:"address"`
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
}

// PlaceUpdate carries the mutable fields of a mark request.
type PlaceUpdate struct {
	ID       string   `json:"id"`
	Visited  bool     `json:"visited"`
	Category Category `json:"category,omitempty"`
}

type List string

const (
	ListWantToGo List = "wantToGo"
	ListVisited  List = "visited"
)

func (l List) Valid() bool {
	return l == ListWantToGo || l == ListVisited
}

type Category string

const (
	CategoryNone       Category = ""
	CategoryRestaurant Category = "restaurante"
	CategoryStadium    Category = "estadio"
	CategoryLandmark   Category = "ponto"
	CategoryMall       Category = "shopping"
	CategoryOther      Category = "outro"
)

// Categories lists the closed set in display order.
var Categories = []Category{CategoryStadium, CategoryRestaurant, CategoryLandmark, CategoryMall, CategoryOther}

var categoryAliases = map[string]Category{
	"restaurante":    CategoryRestaurant,
	"restaurant":     CategoryRestaurant,
	"estadio":        CategoryStadium,
	"stadium":        CategoryStadium,
	"ponto":          CategoryLandmark,
	"pontoturistico": CategoryLandmark,
	"landmark":       CategoryLandmark,
	"shopping":       CategoryMall,
	"mall":           CategoryMall,
	"outro":          CategoryOther,
	"other":          CategoryOther,
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParseCategory normalizes raw case-insensitively, ignoring accents and inner spaces.
// ok is false when raw does not name a member of the closed set.
func ParseCategory(raw string) (Category, bool) {
	folded, _, err := transform.String(foldMarks, strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return CategoryNone, false
	}
	folded = strings.Join(strings.Fields(folded), "")
	c, ok := categoryAliases[folded]
	return c, ok
}

// NormalizeCategory never rejects: anything outside the closed set becomes CategoryOther.
func NormalizeCategory(raw string) Category {
	if c, ok := ParseCategory(raw); ok {
		return c
	}
	return CategoryOther
}

// ValidCoordinates reports whether lat/lng lie within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
