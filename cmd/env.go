package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/store-locator/internal/gateway"
	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/resilience"
	"github.com/sells-group/store-locator/internal/view"
	"github.com/sells-group/store-locator/pkg/geocode"
	"github.com/sells-group/store-locator/pkg/storesearch"
)

// locatorEnv holds the upstream adapters shared by the search, console and
// serve commands.
type locatorEnv struct {
	Geocoder *gateway.Geocoder
	Searcher *gateway.Searcher
}

// initLocator validates the config for mode and builds the geocoder and
// store search adapters.
func initLocator(mode string) (*locatorEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	gc, err := geocode.NewClient(
		geocode.WithProvider(cfg.Geocode.Provider),
		geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey),
		geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs)*time.Second),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init geocoder")
	}

	sc, err := storesearch.NewClient(cfg.Search.BaseURL,
		storesearch.WithTimeout(time.Duration(cfg.Search.TimeoutSecs)*time.Second),
		storesearch.WithRateLimit(cfg.Search.RateLimit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init store search")
	}

	breakerCfg := resilience.FromConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	return &locatorEnv{
		Geocoder: gateway.NewGeocoder(gc, gateway.NewBreaker(gateway.ServiceGeocode, breakerCfg)),
		Searcher: gateway.NewSearcher(sc, gateway.NewBreaker(gateway.ServiceSearch, breakerCfg)),
	}, nil
}

func mapCenter() locator.Coordinate {
	return locator.Coordinate{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng}
}

// newSession builds fresh surfaces and a dispatcher bound to them.
func (e *locatorEnv) newSession(opts ...locator.DispatcherOption) (*view.Surfaces, *locator.Dispatcher) {
	surfaces := view.NewSurfaces(mapCenter(), cfg.Map.Zoom)
	ctrl := locator.New(surfaces.Ports(e.Geocoder, e.Searcher))
	return surfaces, locator.NewDispatcher(ctrl, cfg.Search.DefaultRadiusMiles, opts...)
}
