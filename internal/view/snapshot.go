package view

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/store-locator/internal/locator"
)

// Surfaces bundles the three in-memory presentation surfaces of one form.
type Surfaces struct {
	Map    *Map
	List   *List
	Banner *Banner
}

// NewSurfaces creates empty surfaces with the map at center/zoom.
func NewSurfaces(center locator.Coordinate, zoom int) *Surfaces {
	return &Surfaces{
		Map:    NewMap(center, zoom),
		List:   NewList(),
		Banner: NewBanner(),
	}
}

// Ports returns locator ports backed by the surfaces.
func (s *Surfaces) Ports(geocoder locator.GeocodingPort, search locator.SearchPort) locator.Ports {
	return locator.Ports{
		Geocoder: geocoder,
		Search:   search,
		Map:      s.Map,
		List:     s.List,
		Status:   s.Banner,
		Notifier: s.Banner,
	}
}

// Snapshot is a point-in-time copy of every surface.
type Snapshot struct {
	Status  locator.Status     `json:"status" yaml:"status"`
	Center  locator.Coordinate `json:"center" yaml:"center"`
	Zoom    int                `json:"zoom" yaml:"zoom"`
	Bounds  locator.Bounds     `json:"bounds" yaml:"bounds"`
	Markers []Marker           `json:"markers" yaml:"markers"`
	Entries []Entry            `json:"entries" yaml:"entries"`
	Popup   *Popup             `json:"popup,omitempty" yaml:"popup,omitempty"`
	Notices []string           `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// Capture takes a snapshot of s.
func (s *Surfaces) Capture() Snapshot {
	snap := Snapshot{
		Status:  s.Banner.Status(),
		Center:  s.Map.Center(),
		Zoom:    s.Map.Zoom(),
		Bounds:  s.Map.Bounds(),
		Markers: s.Map.Markers(),
		Entries: s.List.Entries(),
		Notices: s.Banner.Notices(),
	}
	if p, ok := s.Map.Popup(); ok {
		snap.Popup = &p
	}
	return snap
}

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write renders snap to w in the given format.
func (snap Snapshot) Write(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(snap), "view: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return eris.Wrap(err, "view: encode yaml")
		}
		return eris.Wrap(enc.Close(), "view: close yaml encoder")
	case FormatText, "":
		return snap.writeText(w)
	default:
		return eris.Errorf("view: unknown output format %q", format)
	}
}

func (snap Snapshot) writeText(w io.Writer) error {
	var sb strings.Builder
	if snap.Status.Text != "" {
		if snap.Status.Level != locator.LevelNone {
			fmt.Fprintf(&sb, "[%s] ", snap.Status.Level)
		}
		sb.WriteString(snap.Status.Text)
		sb.WriteString("\n")
	}
	for _, n := range snap.Notices {
		fmt.Fprintf(&sb, "! %s\n", n)
	}
	fmt.Fprintf(&sb, "center %.6f,%.6f zoom %d\n", snap.Center.Lat, snap.Center.Lng, snap.Zoom)
	for i, e := range snap.Entries {
		fmt.Fprintf(&sb, "%d. %s (%.1f mi)\n", i, e.Content.Title, e.Content.DistanceMiles)
		for _, line := range e.Content.Lines {
			fmt.Fprintf(&sb, "   %s\n", line)
		}
	}
	if snap.Popup != nil {
		fmt.Fprintf(&sb, "selected: %s\n", snap.Popup.Content.Title)
	}
	_, err := io.WriteString(w, sb.String())
	return eris.Wrap(err, "view: write text")
}
