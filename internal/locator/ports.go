package locator

import "context"

// GeocodingPort turns free-text addresses into coordinates. Implementations
// return an error matching ErrNoLocationFound when the provider has zero
// matches; any other error is treated as ErrGeocodingUnavailable.
type GeocodingPort interface {
	Resolve(ctx context.Context, address string) (Coordinate, error)
}

// SearchPort finds facilities within radiusMeters of origin. Implementations
// return errors matching ErrInvalidSearchResponse or ErrSearchUnavailable;
// unclassified errors are treated as ErrSearchUnavailable.
type SearchPort interface {
	Search(ctx context.Context, origin Coordinate, radiusMeters float64) ([]Facility, error)
}

// Handle identifies a marker or list entry inside the view that created it.
type Handle int

// Bounds is a rectangular viewport.
type Bounds struct {
	SouthWest Coordinate `json:"south_west" yaml:"south_west"`
	NorthEast Coordinate `json:"north_east" yaml:"north_east"`
}

// MapView is the interactive map surface.
type MapView interface {
	SetCenter(c Coordinate)
	Center() Coordinate
	Bounds() Bounds
	ClearMarkers()
	AddMarker(c Coordinate, title string, onClick func()) Handle
	OpenPopup(content Content, anchor Handle)
}

// ListView is the textual result list.
type ListView interface {
	Clear()
	AppendEntry(content Content, onClick func()) Handle
}

// StatusView is the status banner.
type StatusView interface {
	SetStatus(s Status)
}

// Notifier raises an immediate blocking notice to the user.
type Notifier interface {
	Notify(message string)
}
