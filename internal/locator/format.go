package locator

import (
	"math"
	"strings"
)

const earthRadiusMeters = 6371000.0

// Content is the display content of one facility, shared by its list entry
// and its map popup.
type Content struct {
	FacilityID    int      `json:"facility_id" yaml:"facility_id"`
	Title         string   `json:"title" yaml:"title"`
	Lines         []string `json:"lines" yaml:"lines"`
	DistanceMiles float64  `json:"distance_miles" yaml:"distance_miles"`
}

// FormatContent builds the display content for f: its address lines followed
// by a "City, Region, Country" line. Domestic country codes are suppressed.
func FormatContent(f Facility, origin Coordinate) Content {
	lines := make([]string, 0, len(f.AddressLines)+1)
	lines = append(lines, nonBlank(f.AddressLines)...)
	if cl := cityLine(f); cl != "" {
		lines = append(lines, cl)
	}
	return Content{
		FacilityID:    f.ID,
		Title:         strings.TrimSpace(f.Name),
		Lines:         lines,
		DistanceMiles: math.Round(DistanceMeters(origin, f.Coordinate)/MetersPerMile*10) / 10,
	}
}

func cityLine(f Facility) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{f.City, f.Region, f.Country} {
		p = strings.TrimSpace(p)
		if p == "" || isDomesticCountry(p) {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

func isDomesticCountry(s string) bool {
	return strings.EqualFold(s, "US") || strings.EqualFold(s, "USA")
}

// DistanceMeters is the haversine great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
