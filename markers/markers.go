// Package markers derives map markers from the collections.
package markers

import "travel-planner/models"

const iconBase = "https://maps.google.com/mapfiles/ms/icons/"

// Center is the default map center (Buenos Aires).
var Center = LatLng{Lat: -34.6037, Lng: -58.3816}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Marker struct {
	Key      string `json:"key"`
	Position LatLng `json:"position"`
	Icon     string `json:"icon"`
	Title    string `json:"title"`
}

// WantToGoIcon marks every place still to visit.
const WantToGoIcon = iconBase + "yellow-dot.png"

// IconFor maps a visited place's category to its marker icon.
func IconFor(c models.Category) string {
	switch c {
	case models.CategoryRestaurant:
		return iconBase + "red-dot.png"
	case models.CategoryStadium:
		return iconBase + "green-dot.png"
	case models.CategoryLandmark:
		return iconBase + "blue-dot.png"
	case models.CategoryMall:
		return iconBase + "orange-dot.png"
	default:
		return iconBase + "purple-dot.png"
	}
}

// Markers returns want-to-go markers followed by visited markers.
func Markers(wantToGo, visited []models.Place) []Marker {
	out := make([]Marker, 0, len(wantToGo)+len(visited))
	for _, p := range wantToGo {
		out = append(out, Marker{
			Key:      p.ID,
			Position: LatLng{Lat: p.Lat, Lng: p.Lng},
			Icon:     WantToGoIcon,
			Title:    p.Name,
		})
	}
	for _, p := range visited {
		label := string(p.Category)
		if label == "" {
			label = "sem categoria"
		}
		out = append(out, Marker{
			Key:      p.ID,
			Position: LatLng{Lat: p.Lat, Lng: p.Lng},
			Icon:     IconFor(p.Category),
			Title:    p.Name + " - " + label,
		})
	}
	return out
}
