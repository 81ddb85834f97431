package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/resilience"
	"github.com/sells-group/store-locator/pkg/geocode"
)

// Geocoder implements locator.GeocodingPort on top of a geocode.Client.
type Geocoder struct {
	client  geocode.Client
	breaker *resilience.CircuitBreaker
}

var _ locator.GeocodingPort = (*Geocoder)(nil)

// NewGeocoder wraps client. A nil breaker gets the defaults.
func NewGeocoder(client geocode.Client, breaker *resilience.CircuitBreaker) *Geocoder {
	if breaker == nil {
		breaker = NewBreaker(ServiceGeocode, resilience.DefaultBreakerConfig())
	}
	return &Geocoder{client: client, breaker: breaker}
}

// Resolve geocodes address with a single provider attempt. Zero matches map
// to KindNoLocationFound; everything else that fails maps to
// KindGeocodingUnavailable.
func (g *Geocoder) Resolve(ctx context.Context, address string) (locator.Coordinate, error) {
	start := time.Now()
	res, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*geocode.Result, error) {
		return g.client.Geocode(ctx, address)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		observe(ServiceGeocode, "circuit_open", start)
		return locator.Coordinate{}, locator.NewError(locator.KindGeocodingUnavailable, err)
	case err != nil:
		observe(ServiceGeocode, "error", start)
		zap.L().Warn("geocode: request failed", zap.String("address", address), zap.Error(err))
		// A provider status is shown to the user verbatim.
		var serr *geocode.StatusError
		if errors.As(err, &serr) {
			err = serr
		}
		return locator.Coordinate{}, locator.NewError(locator.KindGeocodingUnavailable, err)
	case res == nil || !res.Matched:
		observe(ServiceGeocode, "not_found", start)
		return locator.Coordinate{}, locator.NewError(locator.KindNoLocationFound,
			eris.Errorf("geocode: no match for %q", address))
	}

	c := locator.Coordinate{Lat: res.Latitude, Lng: res.Longitude}
	if !c.Valid() {
		observe(ServiceGeocode, "invalid", start)
		return locator.Coordinate{}, locator.NewError(locator.KindGeocodingUnavailable,
			eris.Errorf("geocode: %s returned out-of-range coordinate %v,%v", res.Source, res.Latitude, res.Longitude))
	}

	observe(ServiceGeocode, "ok", start)
	zap.L().Debug("geocode: resolved",
		zap.String("address", address),
		zap.String("source", res.Source),
		zap.String("quality", res.Quality),
		zap.Float64("lat", c.Lat),
		zap.Float64("lng", c.Lng),
	)
	return c, nil
}
