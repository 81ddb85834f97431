// Package view provides headless implementations of the locator view ports
// and snapshot/export helpers for them.
package view

import (
	"encoding/json"
	"math"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/store-locator/internal/locator"
)

// Nominal viewport used to derive bounds from center and zoom.
const (
	viewportWidthPx  = 640
	viewportHeightPx = 480
	tileSizePx       = 256
	maxMercatorLat   = 85.05112878
)

// Marker is a rendered map marker.
type Marker struct {
	Handle     locator.Handle     `json:"handle" yaml:"handle"`
	Title      string             `json:"title" yaml:"title"`
	Coordinate locator.Coordinate `json:"coordinate" yaml:"coordinate"`

	onClick func()
}

// Popup is the open detail popup.
type Popup struct {
	Anchor  locator.Handle  `json:"anchor" yaml:"anchor"`
	Content locator.Content `json:"content" yaml:"content"`
}

// Map is an in-memory MapView.
type Map struct {
	mu      sync.Mutex
	center  locator.Coordinate
	zoom    int
	markers []Marker
	next    locator.Handle
	popup   *Popup
}

var _ locator.MapView = (*Map)(nil)

// NewMap creates a Map centered on center at the given zoom level.
func NewMap(center locator.Coordinate, zoom int) *Map {
	return &Map{center: center, zoom: zoom}
}

// SetCenter implements locator.MapView.
func (m *Map) SetCenter(c locator.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = c
}

// Center implements locator.MapView.
func (m *Map) Center() locator.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

// Zoom returns the zoom level.
func (m *Map) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// Bounds implements locator.MapView. The viewport is the nominal pixel size
// projected at the current zoom around the center, clamped to the
// Mercator latitude limit and the antimeridian.
func (m *Map) Bounds() locator.Bounds {
	m.mu.Lock()
	defer m.mu.Unlock()

	scale := float64(tileSizePx) * math.Pow(2, float64(m.zoom))
	halfW := 360 * viewportWidthPx / scale / 2
	halfH := 180 * viewportHeightPx / scale / 2

	b := geom.NewBounds(geom.XY).Set(
		math.Max(m.center.Lng-halfW, -180), math.Max(m.center.Lat-halfH, -maxMercatorLat),
		math.Min(m.center.Lng+halfW, 180), math.Min(m.center.Lat+halfH, maxMercatorLat),
	)
	return toBounds(b)
}

// ClearMarkers implements locator.MapView. The popup closes with its anchor.
func (m *Map) ClearMarkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = nil
	m.popup = nil
}

// AddMarker implements locator.MapView.
func (m *Map) AddMarker(c locator.Coordinate, title string, onClick func()) locator.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.next
	m.next++
	m.markers = append(m.markers, Marker{Handle: h, Title: title, Coordinate: c, onClick: onClick})
	return h
}

// OpenPopup implements locator.MapView.
func (m *Map) OpenPopup(content locator.Content, anchor locator.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.popup = &Popup{Anchor: anchor, Content: content}
}

// Markers returns the rendered markers in insertion order.
func (m *Map) Markers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// Popup returns the open popup, if any.
func (m *Map) Popup() (Popup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.popup == nil {
		return Popup{}, false
	}
	return *m.popup, true
}

// ClickMarker simulates a click on the i-th rendered marker. It reports false
// if no such marker exists.
func (m *Map) ClickMarker(i int) bool {
	m.mu.Lock()
	if i < 0 || i >= len(m.markers) {
		m.mu.Unlock()
		return false
	}
	fn := m.markers[i].onClick
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// MarkerExtent returns the bounding box of all markers.
func (m *Map) MarkerExtent() (locator.Bounds, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.markers) == 0 {
		return locator.Bounds{}, false
	}
	return toBounds(m.extentLocked()), true
}

func (m *Map) extentLocked() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, mk := range m.markers {
		b.Extend(pointOf(mk.Coordinate))
	}
	return b
}

// GeoJSON encodes the markers as a FeatureCollection of points.
func (m *Map) GeoJSON() ([]byte, error) {
	return markersGeoJSON(m.Markers())
}

func markersGeoJSON(markers []Marker) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	bbox := geom.NewBounds(geom.XY)
	for _, mk := range markers {
		pt := pointOf(mk.Coordinate)
		bbox.Extend(pt)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(int(mk.Handle)),
			Geometry: pt,
			Properties: map[string]any{
				"title": mk.Title,
			},
		})
	}
	if len(markers) > 0 {
		fc.BBox = bbox
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "view: encode geojson")
	}
	return data, nil
}

func pointOf(c locator.Coordinate) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat})
}

func toBounds(b *geom.Bounds) locator.Bounds {
	return locator.Bounds{
		SouthWest: locator.Coordinate{Lat: b.Min(1), Lng: b.Min(0)},
		NorthEast: locator.Coordinate{Lat: b.Max(1), Lng: b.Max(0)},
	}
}
