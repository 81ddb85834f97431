package view

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var xlsxHeader = []string{"ID", "Name", "Address", "Distance (mi)", "Latitude", "Longitude"}

// WriteXLSX writes the rendered result list to an .xlsx workbook at path.
// Rows follow list order; marker coordinates are joined by position.
func (snap Snapshot) WriteXLSX(path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "view: xlsx add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for i, e := range snap.Entries {
		row := sheet.AddRow()
		row.AddCell().SetInt(e.Content.FacilityID)
		row.AddCell().SetString(e.Content.Title)
		row.AddCell().SetString(strings.Join(e.Content.Lines, "\n"))
		row.AddCell().SetFloat(e.Content.DistanceMiles)
		if i < len(snap.Markers) {
			row.AddCell().SetFloat(snap.Markers[i].Coordinate.Lat)
			row.AddCell().SetFloat(snap.Markers[i].Coordinate.Lng)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "view: save xlsx %s", path)
	}
	return nil
}

// WriteShapefile writes the rendered markers as a point shapefile at path
// (plus the .shx/.dbf siblings).
func (snap Snapshot) WriteShapefile(path string) error {
	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-len(".shp")]
	}

	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "view: create shapefile %s", path)
	}
	err = snap.writeShapes(w)
	// Close flushes the headers and the attribute table; it must run before
	// the table is renamed.
	w.Close()
	if err != nil {
		return err
	}

	// go-shp names the attribute table "<base>dbf" with no dot.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "view: rename shapefile attributes %s", base)
	}
	return nil
}

func (snap Snapshot) writeShapes(w *shp.Writer) error {
	if err := w.SetFields([]shp.Field{
		shp.NumberField("ID", 10),
		shp.StringField("NAME", 80),
		shp.StringField("ADDRESS", 254),
	}); err != nil {
		return eris.Wrap(err, "view: shapefile fields")
	}

	for i, mk := range snap.Markers {
		row := int(w.Write(&shp.Point{X: mk.Coordinate.Lng, Y: mk.Coordinate.Lat}))
		attrs := []any{i, truncate(mk.Title, 80), ""}
		if i < len(snap.Entries) {
			attrs[2] = truncate(strings.Join(snap.Entries[i].Content.Lines, ", "), 254)
		}
		for field, v := range attrs {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "view: shapefile attribute %d/%d", row, field)
			}
		}
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// WriteGeoJSON writes the rendered markers as a GeoJSON FeatureCollection at
// path.
func (snap Snapshot) WriteGeoJSON(path string) error {
	data, err := markersGeoJSON(snap.Markers)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "view: write geojson %s", path)
	}
	return nil
}
