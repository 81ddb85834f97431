package locator

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/store-locator/internal/metrics"
)

// Command is a user action translated into one controller operation.
type Command interface {
	command()
}

// Init runs the initial search when the page loads.
type Init struct{}

// AddressChanged reports an edit of the address input.
type AddressChanged struct{ Text string }

// RadiusChanged reports an edit of the radius input, in miles.
type RadiusChanged struct{ Miles float64 }

// Submit submits the search form.
type Submit struct{}

// SubmitAt submits a search around an explicit origin, skipping the geocoder.
type SubmitAt struct{ Coordinate Coordinate }

// Select reports a click on marker or list entry Index.
type Select struct{ Index int }

func (Init) command()           {}
func (AddressChanged) command() {}
func (RadiusChanged) command()  {}
func (Submit) command()         {}
func (SubmitAt) command()       {}
func (Select) command()         {}

// ErrUnknownCommand is returned by Dispatch for unrecognized commands.
var ErrUnknownCommand = eris.New("locator: unknown command")

// Dispatcher owns the form inputs that are not controller state (the radius)
// and routes commands to the Controller.
type Dispatcher struct {
	ctrl      *Controller
	onSettled func(cmd Command, err error)

	mu          sync.Mutex
	radiusMiles float64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSettledHook registers fn to run after each search command settles. fn
// runs without any controller lock held, so it may read the views or the
// controller.
func WithSettledHook(fn func(cmd Command, err error)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onSettled = fn
	}
}

// NewDispatcher creates a Dispatcher with the given default radius in miles.
func NewDispatcher(ctrl *Controller, defaultRadiusMiles float64, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{ctrl: ctrl, radiusMiles: defaultRadiusMiles}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Controller returns the dispatcher's controller.
func (d *Dispatcher) Controller() *Controller { return d.ctrl }

// RadiusMiles returns the current radius input.
func (d *Dispatcher) RadiusMiles() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.radiusMiles
}

// Dispatch handles one command synchronously. Init, Submit and SubmitAt block
// until the search invocation completes.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case AddressChanged:
		d.ctrl.OnAddressInputChanged(c.Text)
		return nil
	case RadiusChanged:
		d.mu.Lock()
		d.radiusMiles = c.Miles
		d.mu.Unlock()
		return nil
	case Init, Submit:
		return d.search(ctx, cmd, NewSearchQuery(d.ctrl.Address(), d.RadiusMiles()))
	case SubmitAt:
		if !c.Coordinate.Valid() {
			return eris.Errorf("locator: coordinate %v,%v out of range", c.Coordinate.Lat, c.Coordinate.Lng)
		}
		q := NewSearchQuery(d.ctrl.Address(), d.RadiusMiles())
		origin := c.Coordinate
		q.Coordinate = &origin
		return d.search(ctx, cmd, q)
	case Select:
		if _, ok := d.ctrl.Select(c.Index); !ok {
			zap.L().Debug("select: index out of range", zap.Int("index", c.Index))
		}
		return nil
	default:
		return eris.Wrapf(ErrUnknownCommand, "%T", cmd)
	}
}

// Run consumes commands until cmds is closed or ctx is done. Searches run
// concurrently with later commands, the way an event loop yields while a
// request is pending. Run waits for in-flight searches before returning.
func (d *Dispatcher) Run(ctx context.Context, cmds <-chan Command) error {
	var eg errgroup.Group
	defer func() { _ = eg.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return eg.Wait()
			}
			switch cmd.(type) {
			case Init, Submit, SubmitAt:
				eg.Go(func() error {
					d.logResult(cmd, d.Dispatch(ctx, cmd))
					return nil
				})
			default:
				d.logResult(cmd, d.Dispatch(ctx, cmd))
			}
		}
	}
}

func (d *Dispatcher) search(ctx context.Context, cmd Command, q SearchQuery) error {
	rs, err := d.ctrl.Search(ctx, q)
	recordOutcome(rs, err)
	if d.onSettled != nil {
		d.onSettled(cmd, err)
	}
	return err
}

func (d *Dispatcher) logResult(cmd Command, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrSuperseded):
		zap.L().Debug("command superseded", zap.String("command", commandName(cmd)))
	default:
		// Already surfaced in the status banner.
		zap.L().Info("command failed", zap.String("command", commandName(cmd)), zap.Error(err))
	}
}

func recordOutcome(rs ResultSet, err error) {
	switch {
	case errors.Is(err, ErrSuperseded):
		metrics.SupersededTotal.Inc()
	case err != nil:
		metrics.SearchesTotal.WithLabelValues(KindOf(err).String()).Inc()
	case rs.Status == StatusEmpty:
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
	default:
		metrics.SearchesTotal.WithLabelValues("ready").Inc()
	}
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case Init:
		return "init"
	case AddressChanged:
		return "address_changed"
	case RadiusChanged:
		return "radius_changed"
	case Submit:
		return "submit"
	case SubmitAt:
		return "submit_at"
	case Select:
		return "select"
	default:
		return "unknown"
	}
}
