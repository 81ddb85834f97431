package locator

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is the phase of one search invocation.
type State int

const (
	StateIdle State = iota
	StateResolvingOrigin
	StateSearching
	StateReady
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolvingOrigin:
		return "resolving_origin"
	case StateSearching:
		return "searching"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Ports bundles the collaborators a Controller drives.
type Ports struct {
	Geocoder GeocodingPort
	Search   SearchPort
	Map      MapView
	List     ListView
	Status   StatusView
	// Notifier is optional.
	Notifier Notifier
}

// Selection records the last facility opened from the map or list.
type Selection struct {
	Facility Facility
	Content  Content
	// PreviousBounds is the viewport before the map was recentered.
	PreviousBounds Bounds
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransitionHook registers fn to observe every state transition of every
// invocation. fn runs with the controller lock held and must not call back
// into the controller.
func WithTransitionHook(fn func(seq uint64, to State)) Option {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

type cachedOrigin struct {
	address string
	coord   Coordinate
	ok      bool
}

// Controller owns the current ResultSet and keeps the map, list and status
// views consistent with it. All exported methods are safe for concurrent use;
// overlapping searches are ordered by start sequence, not completion order.
type Controller struct {
	geocoder GeocodingPort
	search   SearchPort
	mapView  MapView
	list     ListView
	status   StatusView
	notifier Notifier

	onTransition func(seq uint64, to State)

	mu        sync.Mutex
	address   string
	cache     cachedOrigin
	results   ResultSet
	binding   *ViewBinding
	selection *Selection
	nextSeq   uint64
	settled   uint64 // highest seq that reached a terminal state
	rendered  uint64 // highest seq whose results were rendered
	inflight  map[uint64]State
	lastSeq   uint64
}

// New creates a Controller over the given ports.
func New(p Ports, opts ...Option) *Controller {
	c := &Controller{
		geocoder: p.Geocoder,
		search:   p.Search,
		mapView:  p.Map,
		list:     p.List,
		status:   p.Status,
		notifier: p.Notifier,
		inflight: make(map[uint64]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnAddressInputChanged records the new address text and invalidates the
// cached origin so the next search resolves it again. It does not search.
func (c *Controller) OnAddressInputChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = text
	c.cache = cachedOrigin{}
}

// Address returns the current address input.
func (c *Controller) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// CachedOrigin returns the cached origin coordinate, if one is valid for the
// current address input.
func (c *Controller) CachedOrigin() (Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cache.ok || c.cache.address != c.address {
		return Coordinate{}, false
	}
	return c.cache.coord, true
}

// Results returns the live ResultSet.
func (c *Controller) Results() ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Binding returns the ViewBinding of the last render pass.
func (c *Controller) Binding() *ViewBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding
}

// Selection returns the last selected facility, if any.
func (c *Controller) Selection() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return Selection{}, false
	}
	return *c.selection, true
}

// State returns the phase of the most recently started invocation while it is
// running, and StateIdle once no invocation is in flight.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inflight) == 0 {
		return StateIdle
	}
	return c.inflight[c.lastSeq]
}

// ResolveOrigin resolves the current address input. A blank address returns
// the map's current center without geocoding.
func (c *Controller) ResolveOrigin(ctx context.Context) (Coordinate, error) {
	return c.resolve(ctx, 0, c.Address())
}

// Search runs one invocation: resolve the origin if needed, query the search
// port, then replace and render the ResultSet. Failures leave the previous
// ResultSet and views untouched. If a later-started invocation has already
// rendered, the results are discarded and ErrSuperseded is returned.
func (c *Controller) Search(ctx context.Context, q SearchQuery) (ResultSet, error) {
	seq := c.begin()
	log := zap.L().With(zap.Uint64("seq", seq))
	log.Debug("search: start",
		zap.String("origin_text", q.OriginText),
		zap.Float64("radius_m", q.RadiusMeters),
	)

	origin, err := c.originFor(ctx, seq, q)
	if err != nil {
		return ResultSet{}, c.fail(seq, err)
	}

	c.mu.Lock()
	c.transition(seq, StateSearching)
	if seq > c.settled {
		c.status.SetStatus(LoadingStatus())
	}
	c.mu.Unlock()

	facilities, err := c.search.Search(ctx, origin, q.RadiusMeters)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = NewError(KindSearchUnavailable, err)
		}
		return ResultSet{}, c.fail(seq, err)
	}

	rs := NewResultSet(origin, facilities)
	if err := c.commit(seq, rs); err != nil {
		return ResultSet{}, err
	}
	log.Debug("search: rendered", zap.Int("count", rs.Len()))
	return rs, nil
}

// Render tears down all markers and list entries and rebuilds them from rs,
// which becomes the live ResultSet. Facility ids are reassigned by position.
func (c *Controller) Render(rs ResultSet) {
	rs = NewResultSet(rs.Origin, rs.Facilities)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = rs
	c.render(rs)
}

// Select recenters the map on facility id and opens its popup. Ids outside the
// live ResultSet are ignored.
func (c *Controller) Select(id int) (Facility, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(c.binding.Generation(), id)
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	seq := c.nextSeq
	c.lastSeq = seq
	c.transition(seq, StateIdle)
	return seq
}

func (c *Controller) transition(seq uint64, to State) {
	switch to {
	case StateReady, StateEmpty, StateFailed:
		delete(c.inflight, seq)
	default:
		c.inflight[seq] = to
	}
	if c.onTransition != nil {
		c.onTransition(seq, to)
	}
}

func (c *Controller) originFor(ctx context.Context, seq uint64, q SearchQuery) (Coordinate, error) {
	if q.Coordinate != nil {
		c.mu.Lock()
		c.cache = cachedOrigin{address: q.OriginText, coord: *q.Coordinate, ok: true}
		c.mu.Unlock()
		return *q.Coordinate, nil
	}

	c.mu.Lock()
	if strings.TrimSpace(q.OriginText) != "" && c.cache.ok && c.cache.address == q.OriginText {
		coord := c.cache.coord
		c.mu.Unlock()
		zap.L().Debug("search: using cached origin", zap.Uint64("seq", seq))
		return coord, nil
	}
	c.mu.Unlock()

	return c.resolve(ctx, seq, q.OriginText)
}

// resolve geocodes address. seq 0 marks a standalone resolution that is not
// part of a search invocation.
func (c *Controller) resolve(ctx context.Context, seq uint64, address string) (Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		center := c.mapView.Center()
		c.cache = cachedOrigin{address: address, coord: center, ok: true}
		return center, nil
	}

	if seq != 0 {
		c.mu.Lock()
		c.transition(seq, StateResolvingOrigin)
		c.mu.Unlock()
	}

	coord, err := c.geocoder.Resolve(ctx, address)
	if err != nil {
		if KindOf(err) != KindNoLocationFound {
			err = NewError(KindGeocodingUnavailable, err)
		}
		c.mu.Lock()
		current := seq == 0 || seq > c.settled
		c.mu.Unlock()
		if current && c.notifier != nil {
			c.notifier.Notify(geocodeNotice(err))
		}
		zap.L().Warn("resolve origin failed",
			zap.Uint64("seq", seq),
			zap.String("address", address),
			zap.Error(err),
		)
		return Coordinate{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The input may have been edited while the geocoder was running.
	if c.address == address {
		c.cache = cachedOrigin{address: address, coord: coord, ok: true}
	}
	if seq == 0 || seq > c.settled {
		c.mapView.SetCenter(coord)
	}
	return coord, nil
}

func (c *Controller) fail(seq uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transition(seq, StateFailed)
	if seq < c.settled {
		zap.L().Debug("search: superseded failure discarded", zap.Uint64("seq", seq), zap.Error(err))
		return eris.Wrapf(ErrSuperseded, "seq %d failed after seq %d completed: %v", seq, c.settled, err)
	}
	c.settled = seq
	c.status.SetStatus(ErrorStatus(err))
	zap.L().Warn("search failed",
		zap.Uint64("seq", seq),
		zap.String("kind", KindOf(err).String()),
		zap.Error(err),
	)
	return err
}

func (c *Controller) commit(seq uint64, rs ResultSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.rendered {
		c.transition(seq, StateFailed)
		zap.L().Debug("search: superseded results discarded", zap.Uint64("seq", seq), zap.Uint64("rendered", c.rendered))
		return eris.Wrapf(ErrSuperseded, "seq %d completed after seq %d rendered", seq, c.rendered)
	}
	c.rendered = seq
	c.results = rs
	c.render(rs)
	// A later-started failure keeps its banner; the views still take these
	// results because that failure left them untouched.
	if seq >= c.settled {
		c.settled = seq
		c.status.SetStatus(CountStatus(rs.Len()))
	}
	if rs.Status == StatusEmpty {
		c.transition(seq, StateEmpty)
	} else {
		c.transition(seq, StateReady)
	}
	return nil
}

// render must be called with c.mu held.
func (c *Controller) render(rs ResultSet) {
	c.mapView.ClearMarkers()
	c.list.Clear()
	c.selection = nil

	b := &ViewBinding{
		generation: c.binding.Generation() + 1,
		bindings:   make([]Binding, 0, rs.Len()),
	}
	for _, f := range rs.Facilities {
		content := FormatContent(f, rs.Origin)
		onClick := c.clickHandler(b.generation, f.ID)
		marker := c.mapView.AddMarker(f.Coordinate, f.Name, onClick)
		entry := c.list.AppendEntry(content, onClick)
		b.bindings = append(b.bindings, Binding{
			FacilityID: f.ID,
			Marker:     marker,
			Entry:      entry,
			Content:    content,
		})
	}
	c.binding = b
}

// clickHandler is shared by a facility's marker and list entry.
func (c *Controller) clickHandler(generation uint64, id int) func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.selectLocked(generation, id)
	}
}

func (c *Controller) selectLocked(generation uint64, id int) (Facility, bool) {
	if generation != c.binding.Generation() {
		zap.L().Debug("select: stale click ignored", zap.Int("id", id))
		return Facility{}, false
	}
	f, ok := c.results.At(id)
	if !ok {
		return Facility{}, false
	}
	b, ok := c.binding.Lookup(id)
	if !ok {
		return Facility{}, false
	}
	prev := c.mapView.Bounds()
	c.mapView.SetCenter(f.Coordinate)
	c.mapView.OpenPopup(b.Content, b.Marker)
	c.selection = &Selection{Facility: f, Content: b.Content, PreviousBounds: prev}
	return f, true
}
