// Package locator implements the store-locator search controller: address
// resolution, facility search, and synchronized map/list rendering.
package locator

import (
	"math"
	"strings"
)

// MetersPerMile converts a radius entered in miles to the meters sent upstream.
const MetersPerMile = 1609.344

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the coordinate is inside WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

// MilesToMeters converts a radius in miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// SearchQuery is one submission of the search form.
type SearchQuery struct {
	// OriginText is the raw address input. May be empty.
	OriginText string
	// Coordinate is the already-resolved origin, if any.
	Coordinate *Coordinate
	// RadiusMeters is the search radius in canonical units.
	RadiusMeters float64
}

// NewSearchQuery builds a query from form values, converting the radius from miles.
func NewSearchQuery(originText string, radiusMiles float64) SearchQuery {
	return SearchQuery{
		OriginText:   originText,
		RadiusMeters: MilesToMeters(radiusMiles),
	}
}

// Facility is one located result.
type Facility struct {
	// ID is the facility's position within the current ResultSet.
	ID           int        `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	AddressLines []string   `json:"address_lines" yaml:"address_lines"`
	City         string     `json:"city,omitempty" yaml:"city,omitempty"`
	Region       string     `json:"region,omitempty" yaml:"region,omitempty"`
	Country      string     `json:"country,omitempty" yaml:"country,omitempty"`
	Coordinate   Coordinate `json:"coordinate" yaml:"coordinate"`
}

// ResultStatus distinguishes an empty search from one with results.
type ResultStatus int

const (
	// StatusEmpty means the search succeeded with zero facilities.
	StatusEmpty ResultStatus = iota
	// StatusNonEmpty means at least one facility was returned.
	StatusNonEmpty
)

func (s ResultStatus) String() string {
	if s == StatusNonEmpty {
		return "non-empty"
	}
	return "empty"
}

// ResultSet is an immutable snapshot of the latest successful search.
type ResultSet struct {
	Facilities []Facility   `json:"facilities" yaml:"facilities"`
	Status     ResultStatus `json:"-" yaml:"-"`
	// Origin is the coordinate the search was centered on.
	Origin Coordinate `json:"origin" yaml:"origin"`
}

// NewResultSet copies facilities into a fresh snapshot and assigns dense
// zero-based ids in order. Blank address lines are dropped.
func NewResultSet(origin Coordinate, facilities []Facility) ResultSet {
	out := make([]Facility, len(facilities))
	for i, f := range facilities {
		f.ID = i
		f.AddressLines = nonBlank(f.AddressLines)
		out[i] = f
	}
	status := StatusEmpty
	if len(out) > 0 {
		status = StatusNonEmpty
	}
	return ResultSet{Facilities: out, Status: status, Origin: origin}
}

// Len returns the number of facilities.
func (rs ResultSet) Len() int { return len(rs.Facilities) }

// At returns the facility with the given id, or false if id is out of range.
func (rs ResultSet) At(id int) (Facility, bool) {
	if id < 0 || id >= len(rs.Facilities) {
		return Facility{}, false
	}
	return rs.Facilities[id], true
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			out = append(out, s)
		}
	}
	return out
}
