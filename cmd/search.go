package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/view"
)

type searchOptions struct {
	Address     string
	RadiusMiles float64
	Lat, Lng    float64
	HasCoord    bool
	Select      int
	Output      string
	XLSXPath    string
	SHPPath     string
	GeoJSONPath string
}

var searchOpts searchOptions

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search and print the rendered result",
	Long:  "Resolves --address (or uses --lat/--lng, or the default map center when both are empty), searches within --radius miles, and prints the status line, list and map state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := searchOpts
		opts.HasCoord = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")

		env, err := initLocator("search")
		if err != nil {
			return err
		}
		return runSearch(cmd.Context(), cmd.OutOrStdout(), env, opts)
	},
}

func runSearch(ctx context.Context, out io.Writer, env *locatorEnv, opts searchOptions) error {
	surfaces, disp := env.newSession()

	if opts.RadiusMiles > 0 {
		_ = disp.Dispatch(ctx, locator.RadiusChanged{Miles: opts.RadiusMiles})
	}
	_ = disp.Dispatch(ctx, locator.AddressChanged{Text: opts.Address})

	var submit locator.Command = locator.Submit{}
	if opts.HasCoord {
		c := locator.Coordinate{Lat: opts.Lat, Lng: opts.Lng}
		if !c.Valid() {
			return eris.Errorf("search: coordinate %v,%v out of range", opts.Lat, opts.Lng)
		}
		submit = locator.SubmitAt{Coordinate: c}
	}
	searchErr := disp.Dispatch(ctx, submit)

	if searchErr == nil && opts.Select >= 0 {
		if !surfaces.List.Click(opts.Select) {
			return eris.Errorf("search: no result at index %d", opts.Select)
		}
	}

	snap := surfaces.Capture()
	if err := snap.Write(out, opts.Output); err != nil {
		return err
	}
	if err := exportSnapshot(snap, opts); err != nil {
		return err
	}
	if searchErr != nil {
		return eris.Wrap(searchErr, "search")
	}
	return nil
}

func exportSnapshot(snap view.Snapshot, opts searchOptions) error {
	if opts.XLSXPath != "" {
		if err := snap.WriteXLSX(opts.XLSXPath); err != nil {
			return err
		}
		zap.L().Info("wrote xlsx", zap.String("path", opts.XLSXPath), zap.Int("rows", len(snap.Entries)))
	}
	if opts.SHPPath != "" {
		if err := snap.WriteShapefile(opts.SHPPath); err != nil {
			return err
		}
		zap.L().Info("wrote shapefile", zap.String("path", opts.SHPPath), zap.Int("points", len(snap.Markers)))
	}
	if opts.GeoJSONPath != "" {
		if err := snap.WriteGeoJSON(opts.GeoJSONPath); err != nil {
			return err
		}
		zap.L().Info("wrote geojson", zap.String("path", opts.GeoJSONPath), zap.Int("features", len(snap.Markers)))
	}
	return nil
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchOpts.Address, "address", "", "address to search around (empty uses the map center)")
	f.Float64Var(&searchOpts.RadiusMiles, "radius", 0, "search radius in miles (default from config)")
	f.Float64Var(&searchOpts.Lat, "lat", 0, "origin latitude (skips geocoding)")
	f.Float64Var(&searchOpts.Lng, "lng", 0, "origin longitude (skips geocoding)")
	f.IntVar(&searchOpts.Select, "select", -1, "select the result at this index after searching")
	f.StringVarP(&searchOpts.Output, "output", "o", view.FormatText, "output format: text, json or yaml")
	f.StringVar(&searchOpts.XLSXPath, "xlsx", "", "write results to an Excel workbook")
	f.StringVar(&searchOpts.SHPPath, "shp", "", "write markers to an ESRI shapefile")
	f.StringVar(&searchOpts.GeoJSONPath, "geojson", "", "write markers to a GeoJSON file")
	searchCmd.MarkFlagsRequiredTogether("lat", "lng")
	rootCmd.AddCommand(searchCmd)
}
