package locator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/locator/mocks"
	"github.com/sells-group/store-locator/internal/view"
)

var (
	defaultCenter = locator.Coordinate{Lat: 37.1673108, Lng: -113.2989828}
	mainStreet    = locator.Coordinate{Lat: 40.7128, Lng: -74.0060}
)

// recordingMap keeps every click handler ever registered so tests can fire
// handlers from an earlier render.
type recordingMap struct {
	*view.Map
	mu       sync.Mutex
	handlers []func()
}

func (m *recordingMap) AddMarker(c locator.Coordinate, title string, onClick func()) locator.Handle {
	m.mu.Lock()
	m.handlers = append(m.handlers, onClick)
	m.mu.Unlock()
	return m.Map.AddMarker(c, title, onClick)
}

type harness struct {
	ctrl     *locator.Controller
	geo      *mocks.MockGeocodingPort
	search   *mocks.MockSearchPort
	surfaces *view.Surfaces
	rec      *recordingMap
}

func newHarness(t *testing.T, opts ...locator.Option) *harness {
	t.Helper()
	h := &harness{
		geo:      mocks.NewMockGeocodingPort(t),
		search:   mocks.NewMockSearchPort(t),
		surfaces: view.NewSurfaces(defaultCenter, 10),
	}
	h.rec = &recordingMap{Map: h.surfaces.Map}
	ports := h.surfaces.Ports(h.geo, h.search)
	ports.Map = h.rec
	h.ctrl = locator.New(ports, opts...)
	return h
}

func twoFacilities() []locator.Facility {
	return []locator.Facility{
		{Name: "A", AddressLines: []string{"1 Main St"}, City: "Newark", Region: "NJ", Country: "US",
			Coordinate: locator.Coordinate{Lat: 40.71, Lng: -74.00}},
		{Name: "B", AddressLines: []string{"9 Elm St", ""}, City: "Hoboken", Region: "NJ", Country: "US",
			Coordinate: locator.Coordinate{Lat: 40.74, Lng: -74.03}},
	}
}

func TestSearch_EndToEnd(t *testing.T) {
	var transitions []locator.State
	h := newHarness(t, locator.WithTransitionHook(func(_ uint64, to locator.State) {
		transitions = append(transitions, to)
	}))
	h.geo.On("Resolve", mock.Anything, "123 Main St").Return(mainStreet, nil).Once()
	h.search.On("Search", mock.Anything, mainStreet, locator.MilesToMeters(25)).
		Run(func(mock.Arguments) {
			assert.Equal(t, locator.LoadingStatus(), h.surfaces.Banner.Status())
		}).
		Return(twoFacilities(), nil).Once()

	h.ctrl.OnAddressInputChanged("123 Main St")
	rs, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("123 Main St", 25))
	require.NoError(t, err)

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, mainStreet, rs.Origin)
	assert.Equal(t, rs, h.ctrl.Results())
	assert.Equal(t, mainStreet, h.surfaces.Map.Center())
	assert.Len(t, h.surfaces.Map.Markers(), 2)
	assert.Len(t, h.surfaces.List.Entries(), 2)
	assert.Equal(t, locator.Status{Text: "2 results returned"}, h.surfaces.Banner.Status())
	assert.Equal(t, locator.StateIdle, h.ctrl.State())

	cached, ok := h.ctrl.CachedOrigin()
	assert.True(t, ok)
	assert.Equal(t, mainStreet, cached)

	assert.Equal(t, []locator.State{
		locator.StateIdle,
		locator.StateResolvingOrigin,
		locator.StateSearching,
		locator.StateReady,
	}, transitions)
}

func TestSearch_IndexAlignment(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, defaultCenter, mock.Anything).Return(twoFacilities(), nil).Once()

	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("", 25))
	require.NoError(t, err)

	markers := h.surfaces.Map.Markers()
	entries := h.surfaces.List.Entries()
	b := h.ctrl.Binding()
	require.Equal(t, 2, b.Len())
	for i, f := range h.ctrl.Results().Facilities {
		assert.Equal(t, i, f.ID)
		bind, ok := b.Lookup(i)
		require.True(t, ok)
		assert.Equal(t, markers[i].Handle, bind.Marker)
		assert.Equal(t, entries[i].Handle, bind.Entry)
		assert.Equal(t, entries[i].Content, bind.Content)
		assert.Equal(t, f.Name, markers[i].Title)
		assert.Equal(t, f.Coordinate, markers[i].Coordinate)
	}
	assert.Equal(t, []string{"9 Elm St", "Hoboken, NJ"}, entries[1].Content.Lines)
}

func TestSearch_BlankAddressUsesMapCenter(t *testing.T) {
	h := newHarness(t)
	h.surfaces.Map.SetCenter(locator.Coordinate{Lat: 40, Lng: -74})

	c, err := h.ctrl.ResolveOrigin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, locator.Coordinate{Lat: 40, Lng: -74}, c)

	h.search.On("Search", mock.Anything, locator.Coordinate{Lat: 40, Lng: -74}, mock.Anything).
		Return([]locator.Facility{}, nil).Once()
	rs, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("   ", 25))
	require.NoError(t, err)
	assert.Equal(t, locator.StatusEmpty, rs.Status)
	assert.Equal(t, locator.Status{Level: locator.LevelWarning, Text: "No stores found in this location"}, h.surfaces.Banner.Status())
	h.geo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestSearch_CachedOriginInvalidatedByInput(t *testing.T) {
	h := newHarness(t)
	h.geo.On("Resolve", mock.Anything, "123 Main St").Return(mainStreet, nil).Twice()
	h.search.On("Search", mock.Anything, mainStreet, mock.Anything).Return(twoFacilities(), nil).Times(3)

	h.ctrl.OnAddressInputChanged("123 Main St")
	q := locator.NewSearchQuery("123 Main St", 25)

	_, err := h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)
	_, err = h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)
	h.geo.AssertNumberOfCalls(t, "Resolve", 1)

	// Any edit invalidates, even back to the same text.
	h.ctrl.OnAddressInputChanged("123 Main St")
	_, ok := h.ctrl.CachedOrigin()
	assert.False(t, ok)

	_, err = h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)
	h.geo.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestSearch_ExplicitCoordinateSkipsGeocoder(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, mainStreet, locator.MilesToMeters(1)).Return(twoFacilities(), nil).Once()

	q := locator.NewSearchQuery("123 Main St", 1)
	c := mainStreet
	q.Coordinate = &c
	_, err := h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)
	h.geo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestSearch_FailureLeavesViewsUntouched(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, defaultCenter, mock.Anything).Return(twoFacilities(), nil).Once()
	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("", 25))
	require.NoError(t, err)

	before := h.surfaces.Capture()
	prevResults := h.ctrl.Results()
	prevGen := h.ctrl.Binding().Generation()

	h.search.On("Search", mock.Anything, defaultCenter, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	_, err = h.ctrl.Search(context.Background(), locator.NewSearchQuery("", 25))
	require.Error(t, err)
	assert.Equal(t, locator.KindSearchUnavailable, locator.KindOf(err))

	after := h.surfaces.Capture()
	require.Len(t, after.Markers, len(before.Markers))
	require.Len(t, after.Entries, len(before.Entries))
	for i := range before.Markers {
		assert.Equal(t, before.Markers[i].Handle, after.Markers[i].Handle)
		assert.Equal(t, before.Entries[i].Handle, after.Entries[i].Handle)
		assert.Equal(t, before.Entries[i].Content, after.Entries[i].Content)
	}
	assert.Equal(t, prevResults, h.ctrl.Results())
	assert.Equal(t, prevGen, h.ctrl.Binding().Generation())
	assert.Equal(t, locator.Status{Level: locator.LevelDanger, Text: locator.MsgSearchUnavailable}, after.Status)
	assert.Empty(t, after.Notices)
}

func TestSearch_InvalidResponse(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, defaultCenter, mock.Anything).
		Return(nil, locator.NewError(locator.KindInvalidSearchResponse, errors.New("missing list"))).Once()

	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("", 25))
	assert.ErrorIs(t, err, locator.ErrInvalidSearchResponse)
	assert.Equal(t, "Error: No results returned", h.surfaces.Banner.Status().Text)
}

func TestSearch_NoLocationFound(t *testing.T) {
	h := newHarness(t)
	h.geo.On("Resolve", mock.Anything, "Atlantis").
		Return(locator.Coordinate{}, locator.NewError(locator.KindNoLocationFound, nil)).Once()

	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("Atlantis", 25))
	require.Error(t, err)
	assert.ErrorIs(t, err, locator.ErrNoLocationFound)
	assert.Equal(t, []string{"Search result not found."}, h.surfaces.Banner.Notices())
	assert.Equal(t, locator.MsgNoLocationFound, h.surfaces.Banner.Status().Text)
	assert.Equal(t, defaultCenter, h.surfaces.Map.Center())
	h.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_GeocodingUnavailable(t *testing.T) {
	h := newHarness(t)
	h.geo.On("Resolve", mock.Anything, "123 Main St").
		Return(locator.Coordinate{}, errors.New("OVER_QUERY_LIMIT")).Once()

	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("123 Main St", 25))
	require.Error(t, err)
	assert.Equal(t, locator.KindGeocodingUnavailable, locator.KindOf(err))
	assert.Equal(t, []string{"Address Search error: OVER_QUERY_LIMIT"}, h.surfaces.Banner.Notices())
	assert.Equal(t, locator.MsgGeocodingUnavailable, h.surfaces.Banner.Status().Text)
}

func TestSearch_OutOfOrderCompletion(t *testing.T) {
	h := newHarness(t)
	slow := locator.Coordinate{Lat: 1, Lng: 1}
	fast := locator.Coordinate{Lat: 2, Lng: 2}
	release := make(chan struct{})
	started := make(chan struct{})

	h.search.On("Search", mock.Anything, slow, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]locator.Facility{{Name: "stale", Coordinate: slow}}, nil).Once()
	h.search.On("Search", mock.Anything, fast, mock.Anything).
		Return([]locator.Facility{{Name: "fresh", Coordinate: fast}}, nil).Once()

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		q := locator.NewSearchQuery("", 25)
		q.Coordinate = &slow
		_, slowErr = h.ctrl.Search(context.Background(), q)
	}()
	<-started

	q := locator.NewSearchQuery("", 25)
	q.Coordinate = &fast
	_, err := h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("slow search did not finish")
	}

	assert.ErrorIs(t, slowErr, locator.ErrSuperseded)
	require.Equal(t, 1, h.ctrl.Results().Len())
	assert.Equal(t, "fresh", h.ctrl.Results().Facilities[0].Name)
	markers := h.surfaces.Map.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, "fresh", markers[0].Title)
	assert.Equal(t, "1 result returned", h.surfaces.Banner.Status().Text)
	assert.Equal(t, locator.StateIdle, h.ctrl.State())
}

func TestSearch_StaleFailureDoesNotOverwriteStatus(t *testing.T) {
	h := newHarness(t)
	slow := locator.Coordinate{Lat: 1, Lng: 1}
	fast := locator.Coordinate{Lat: 2, Lng: 2}
	release := make(chan struct{})
	started := make(chan struct{})

	h.search.On("Search", mock.Anything, slow, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errors.New("timeout")).Once()
	h.search.On("Search", mock.Anything, fast, mock.Anything).
		Return(twoFacilities(), nil).Once()

	errc := make(chan error, 1)
	go func() {
		q := locator.NewSearchQuery("", 25)
		q.Coordinate = &slow
		_, err := h.ctrl.Search(context.Background(), q)
		errc <- err
	}()
	<-started

	q := locator.NewSearchQuery("", 25)
	q.Coordinate = &fast
	_, err := h.ctrl.Search(context.Background(), q)
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errc, locator.ErrSuperseded)
	assert.Equal(t, "2 results returned", h.surfaces.Banner.Status().Text)
	assert.Equal(t, 2, h.ctrl.Results().Len())
}

func TestSearch_EarlierSuccessRendersAfterLaterFailure(t *testing.T) {
	h := newHarness(t)
	slow := locator.Coordinate{Lat: 1, Lng: 1}
	fast := locator.Coordinate{Lat: 2, Lng: 2}
	release := make(chan struct{})
	started := make(chan struct{})

	h.search.On("Search", mock.Anything, slow, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]locator.Facility{{Name: "slow", Coordinate: slow}}, nil).Once()
	h.search.On("Search", mock.Anything, fast, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	type outcome struct {
		rs  locator.ResultSet
		err error
	}
	slowc := make(chan outcome, 1)
	go func() {
		q := locator.NewSearchQuery("", 25)
		q.Coordinate = &slow
		rs, err := h.ctrl.Search(context.Background(), q)
		slowc <- outcome{rs, err}
	}()
	<-started

	q := locator.NewSearchQuery("", 25)
	q.Coordinate = &fast
	_, err := h.ctrl.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, locator.KindSearchUnavailable, locator.KindOf(err))
	close(release)

	var got outcome
	select {
	case got = <-slowc:
	case <-time.After(5 * time.Second):
		t.Fatal("slow search did not finish")
	}
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.rs.Len())

	require.Equal(t, 1, h.ctrl.Results().Len())
	assert.Equal(t, "slow", h.ctrl.Results().Facilities[0].Name)
	markers := h.surfaces.Map.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, "slow", markers[0].Title)
	assert.Len(t, h.surfaces.List.Entries(), 1)
	// The later failure still owns the banner.
	assert.Equal(t, locator.MsgSearchUnavailable, h.surfaces.Banner.Status().Text)
	assert.Equal(t, locator.StateIdle, h.ctrl.State())
}

func TestResolveOrigin_NoLocationFoundKeepsCache(t *testing.T) {
	h := newHarness(t)
	first := locator.Coordinate{Lat: 44.98, Lng: -93.27}
	h.geo.On("Resolve", mock.Anything, "X").Return(first, nil).Once()
	h.geo.On("Resolve", mock.Anything, "X").
		Return(locator.Coordinate{}, locator.NewError(locator.KindNoLocationFound, nil)).Once()

	h.ctrl.OnAddressInputChanged("X")
	c, err := h.ctrl.ResolveOrigin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, c)
	assert.Equal(t, first, h.surfaces.Map.Center())

	_, err = h.ctrl.ResolveOrigin(context.Background())
	require.Error(t, err)
	assert.Equal(t, locator.KindNoLocationFound, locator.KindOf(err))

	cached, ok := h.ctrl.CachedOrigin()
	require.True(t, ok)
	assert.Equal(t, first, cached)
	assert.Equal(t, first, h.surfaces.Map.Center())
	h.geo.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestRender_Idempotent(t *testing.T) {
	h := newHarness(t)
	rs := locator.NewResultSet(defaultCenter, twoFacilities())

	h.ctrl.Render(rs)
	first := h.surfaces.Capture()
	h.ctrl.Render(rs)
	second := h.surfaces.Capture()

	assert.Len(t, second.Markers, 2)
	assert.Len(t, second.Entries, 2)
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].Content, second.Entries[i].Content)
		assert.Equal(t, first.Markers[i].Coordinate, second.Markers[i].Coordinate)
	}
	assert.Equal(t, uint64(2), h.ctrl.Binding().Generation())
}

func TestSelect_RecentersAndOpensPopup(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Render(locator.NewResultSet(defaultCenter, twoFacilities()))
	prevBounds := h.surfaces.Map.Bounds()

	require.True(t, h.surfaces.List.Click(1))

	assert.Equal(t, twoFacilities()[1].Coordinate, h.surfaces.Map.Center())
	popup, ok := h.surfaces.Map.Popup()
	require.True(t, ok)
	entries := h.surfaces.List.Entries()
	assert.Equal(t, entries[1].Content, popup.Content)
	assert.Equal(t, h.surfaces.Map.Markers()[1].Handle, popup.Anchor)

	sel, ok := h.ctrl.Selection()
	require.True(t, ok)
	assert.Equal(t, "B", sel.Facility.Name)
	assert.Equal(t, prevBounds, sel.PreviousBounds)

	// Marker and list entry of the same facility produce the same selection.
	require.True(t, h.surfaces.Map.ClickMarker(1))
	popup2, _ := h.surfaces.Map.Popup()
	assert.Equal(t, popup.Content, popup2.Content)

	_, ok = h.ctrl.Select(9)
	assert.False(t, ok)
}

func TestSelect_StaleClickIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Render(locator.NewResultSet(defaultCenter, twoFacilities()))
	h.rec.mu.Lock()
	stale := h.rec.handlers[1]
	h.rec.mu.Unlock()

	h.ctrl.Render(locator.NewResultSet(defaultCenter, twoFacilities()[:1]))
	_, hadSelection := h.ctrl.Selection()
	require.False(t, hadSelection)

	stale()

	_, ok := h.ctrl.Selection()
	assert.False(t, ok, "a handler from a previous render must not select")
	_, ok = h.surfaces.Map.Popup()
	assert.False(t, ok)
	assert.Equal(t, defaultCenter, h.surfaces.Map.Center())
}

func TestRender_ClearsSelection(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Render(locator.NewResultSet(defaultCenter, twoFacilities()))
	_, ok := h.ctrl.Select(0)
	require.True(t, ok)

	h.ctrl.Render(locator.NewResultSet(defaultCenter, nil))
	_, ok = h.ctrl.Selection()
	assert.False(t, ok)
	assert.Empty(t, h.surfaces.Map.Markers())
	assert.Empty(t, h.surfaces.List.Entries())
}

func TestSearch_ThreeStoresSelectSecondEntry(t *testing.T) {
	h := newHarness(t)
	origin := locator.Coordinate{Lat: 37.0, Lng: -113.0}
	stores := []locator.Facility{
		{Name: "North", Coordinate: locator.Coordinate{Lat: 37.10, Lng: -113.00}},
		{Name: "East", Coordinate: locator.Coordinate{Lat: 37.00, Lng: -112.90}},
		{Name: "South", Coordinate: locator.Coordinate{Lat: 36.90, Lng: -113.00}},
	}
	h.geo.On("Resolve", mock.Anything, "123 Main St").Return(origin, nil).Once()
	h.search.On("Search", mock.Anything, origin, locator.MilesToMeters(25)).Return(stores, nil).Once()

	h.ctrl.OnAddressInputChanged("123 Main St")
	_, err := h.ctrl.Search(context.Background(), locator.NewSearchQuery("123 Main St", 25))
	require.NoError(t, err)

	assert.Equal(t, "3 results returned", h.surfaces.Banner.Status().Text)
	assert.Len(t, h.surfaces.Map.Markers(), 3)
	assert.Len(t, h.surfaces.List.Entries(), 3)

	require.True(t, h.surfaces.List.Click(1))
	assert.Equal(t, stores[1].Coordinate, h.surfaces.Map.Center())
	p, ok := h.surfaces.Map.Popup()
	require.True(t, ok)
	assert.Equal(t, h.surfaces.Map.Markers()[1].Handle, p.Anchor)
	assert.Equal(t, "East", p.Content.Title)
}
