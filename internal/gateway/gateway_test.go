package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/resilience"
	"github.com/sells-group/store-locator/pkg/geocode"
	"github.com/sells-group/store-locator/pkg/storesearch"
)

type fakeGeocode struct {
	res   *geocode.Result
	err   error
	calls int
}

func (f *fakeGeocode) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	f.calls++
	return f.res, f.err
}

type fakeStores struct {
	stores []storesearch.Store
	err    error
	calls  int
}

func (f *fakeStores) Search(_ context.Context, _, _, _ float64) ([]storesearch.Store, error) {
	f.calls++
	return f.stores, f.err
}

func TestGeocoder_Resolve_Match(t *testing.T) {
	fake := &fakeGeocode{res: &geocode.Result{Latitude: 40.7128, Longitude: -74.006, Matched: true, Source: "google"}}
	g := NewGeocoder(fake, nil)

	c, err := g.Resolve(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, locator.Coordinate{Lat: 40.7128, Lng: -74.006}, c)
	assert.Equal(t, 1, fake.calls)
}

func TestGeocoder_Resolve_NoMatch(t *testing.T) {
	g := NewGeocoder(&fakeGeocode{res: &geocode.Result{Matched: false}}, nil)

	_, err := g.Resolve(context.Background(), "nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, locator.ErrNoLocationFound)
	assert.Equal(t, locator.KindNoLocationFound, locator.KindOf(err))
}

func TestGeocoder_Resolve_Failure(t *testing.T) {
	g := NewGeocoder(&fakeGeocode{err: errors.New("dial tcp: connection refused")}, nil)

	_, err := g.Resolve(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Equal(t, locator.KindGeocodingUnavailable, locator.KindOf(err))
}

func TestGeocoder_Resolve_ProviderStatus(t *testing.T) {
	serr := &geocode.StatusError{Provider: geocode.ProviderGoogle, Status: "OVER_QUERY_LIMIT"}
	g := NewGeocoder(&fakeGeocode{err: resilience.NewTransientError(serr, http.StatusTooManyRequests)}, nil)

	_, err := g.Resolve(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.ErrorIs(t, err, locator.ErrGeocodingUnavailable)
	var le *locator.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "OVER_QUERY_LIMIT", le.Err.Error())
}

func TestGeocoder_Resolve_InvalidCoordinate(t *testing.T) {
	g := NewGeocoder(&fakeGeocode{res: &geocode.Result{Latitude: 123, Longitude: 0, Matched: true}}, nil)

	_, err := g.Resolve(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Equal(t, locator.KindGeocodingUnavailable, locator.KindOf(err))
}

func TestGeocoder_CircuitOpens(t *testing.T) {
	fake := &fakeGeocode{err: resilience.NewTransientError(errors.New("503"), http.StatusServiceUnavailable)}
	breaker := NewBreaker(ServiceGeocode, resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	g := NewGeocoder(fake, breaker)

	_, err := g.Resolve(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, resilience.CircuitOpen, breaker.State())

	_, err = g.Resolve(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, locator.KindGeocodingUnavailable, locator.KindOf(err))
	assert.Equal(t, 1, fake.calls, "open circuit must not reach the provider")
}

func TestSearcher_MapsStores(t *testing.T) {
	fake := &fakeStores{stores: []storesearch.Store{
		{
			CustomerName: "Store A",
			AddressLine1: "1 Main St",
			AddressLine2: "",
			AddressLine3: "Suite 4",
			City:         "Springfield",
			State:        "IL",
			CountryCode:  "US",
			Latitude:     40.71,
			Longitude:    -74.00,
		},
	}}
	s := NewSearcher(fake, nil)

	got, err := s.Search(context.Background(), locator.Coordinate{Lat: 40, Lng: -74}, 40233.6)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Store A", got[0].Name)
	assert.Equal(t, []string{"1 Main St", "", "Suite 4"}, got[0].AddressLines)
	assert.Equal(t, "Springfield", got[0].City)
	assert.Equal(t, "IL", got[0].Region)
	assert.Equal(t, "US", got[0].Country)
	assert.Equal(t, locator.Coordinate{Lat: 40.71, Lng: -74.00}, got[0].Coordinate)

	rs := locator.NewResultSet(locator.Coordinate{Lat: 40, Lng: -74}, got)
	assert.Equal(t, []string{"1 Main St", "Suite 4"}, rs.Facilities[0].AddressLines)
}

func TestSearcher_EmptyList(t *testing.T) {
	s := NewSearcher(&fakeStores{stores: []storesearch.Store{}}, nil)

	got, err := s.Search(context.Background(), locator.Coordinate{}, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearcher_ErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lat") {
		case "1.000000":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"not_list": true}`))
		}
	}))
	defer srv.Close()

	client, err := storesearch.NewClient(srv.URL)
	require.NoError(t, err)
	s := NewSearcher(client, NewBreaker(ServiceSearch, resilience.BreakerConfig{FailureThreshold: 10}))

	_, err = s.Search(context.Background(), locator.Coordinate{Lat: 1, Lng: 1}, 1000)
	require.Error(t, err)
	assert.Equal(t, locator.KindSearchUnavailable, locator.KindOf(err))

	_, err = s.Search(context.Background(), locator.Coordinate{Lat: 2, Lng: 2}, 1000)
	require.Error(t, err)
	assert.Equal(t, locator.KindInvalidSearchResponse, locator.KindOf(err))
	assert.ErrorIs(t, err, locator.ErrInvalidSearchResponse)
}

func TestSearcher_InvalidResponseDoesNotTrip(t *testing.T) {
	fake := &fakeStores{err: storesearch.ErrInvalidResponse}
	breaker := NewBreaker(ServiceSearch, resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	s := NewSearcher(fake, breaker)

	for i := 0; i < 3; i++ {
		_, err := s.Search(context.Background(), locator.Coordinate{}, 1)
		assert.Equal(t, locator.KindInvalidSearchResponse, locator.KindOf(err))
	}
	assert.Equal(t, resilience.CircuitClosed, breaker.State())
	assert.Equal(t, 3, fake.calls)
}
