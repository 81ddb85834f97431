package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/resilience"
	"github.com/sells-group/store-locator/pkg/storesearch"
)

// Searcher implements locator.SearchPort on top of a storesearch.Client.
type Searcher struct {
	client  storesearch.Client
	breaker *resilience.CircuitBreaker
}

var _ locator.SearchPort = (*Searcher)(nil)

// NewSearcher wraps client. A nil breaker gets the defaults.
func NewSearcher(client storesearch.Client, breaker *resilience.CircuitBreaker) *Searcher {
	if breaker == nil {
		breaker = NewBreaker(ServiceSearch, resilience.DefaultBreakerConfig())
	}
	return &Searcher{client: client, breaker: breaker}
}

// Search queries the store search service. Malformed bodies map to
// KindInvalidSearchResponse; transport and HTTP failures map to
// KindSearchUnavailable.
func (s *Searcher) Search(ctx context.Context, origin locator.Coordinate, radiusMeters float64) ([]locator.Facility, error) {
	start := time.Now()
	stores, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]storesearch.Store, error) {
		return s.client.Search(ctx, origin.Lat, origin.Lng, radiusMeters)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		observe(ServiceSearch, "circuit_open", start)
		return nil, locator.NewError(locator.KindSearchUnavailable, err)
	case errors.Is(err, storesearch.ErrInvalidResponse):
		observe(ServiceSearch, "invalid", start)
		zap.L().Warn("search: invalid response", zap.Error(err))
		return nil, locator.NewError(locator.KindInvalidSearchResponse, err)
	case err != nil:
		observe(ServiceSearch, "error", start)
		zap.L().Warn("search: request failed", zap.Error(err))
		return nil, locator.NewError(locator.KindSearchUnavailable, err)
	}

	observe(ServiceSearch, "ok", start)
	out := make([]locator.Facility, 0, len(stores))
	for _, st := range stores {
		out = append(out, facilityFromStore(st))
	}
	zap.L().Debug("search: stores returned",
		zap.Float64("lat", origin.Lat),
		zap.Float64("lng", origin.Lng),
		zap.Float64("range_m", radiusMeters),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func facilityFromStore(st storesearch.Store) locator.Facility {
	return locator.Facility{
		Name:         st.CustomerName,
		AddressLines: []string{st.AddressLine1, st.AddressLine2, st.AddressLine3},
		City:         st.City,
		Region:       st.State,
		Country:      st.CountryCode,
		Coordinate: locator.Coordinate{
			Lat: float64(st.Latitude),
			Lng: float64(st.Longitude),
		},
	}
}
