// Package geocode resolves free-text addresses to coordinates via the Google
// Geocoding API or the Census single-line geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/store-locator/internal/resilience"
)

// Provider names.
const (
	ProviderGoogle = "google"
	ProviderCensus = "census"
)

// Client geocodes addresses against a single provider.
type Client interface {
	// Geocode geocodes one free-text address. An address with no match is not
	// an error: the result has Matched=false.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude         float64
	Longitude        float64
	Source           string // "census" or "google"
	Quality          string // "rooftop", "range", "centroid", "approximate"
	FormattedAddress string
	Matched          bool
}

// StatusError is a non-OK status reported by a provider in an otherwise
// well-formed response. Error returns the bare status, e.g. OVER_QUERY_LIMIT.
type StatusError struct {
	Provider string
	Status   string
	Message  string
}

func (e *StatusError) Error() string { return e.Status }

// Option configures the geocoder.
type Option func(*geocoder)

// WithProvider selects the backend. Default: google.
func WithProvider(name string) Option {
	return func(g *geocoder) {
		g.provider = strings.ToLower(strings.TrimSpace(name))
	}
}

// WithGoogleAPIKey sets the Google Geocoding API key.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

type geocoder struct {
	provider   string
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) (Client, error) {
	g := &geocoder{
		provider:   ProviderGoogle,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	switch g.provider {
	case ProviderGoogle:
		if g.googleKey == "" {
			return nil, eris.New("geocode: google api key not configured")
		}
	case ProviderCensus:
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", g.provider)
	}
	return g, nil
}

// Geocode geocodes a single address with the configured provider.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, eris.New("geocode: address is empty")
	}
	if g.provider == ProviderCensus {
		return g.geocodeCensus(ctx, address)
	}
	return g.geocodeGoogle(ctx, address)
}

// getJSON issues one rate-limited GET to endpoint and decodes the body into
// out. Throttling and 5xx responses come back as resilience.TransientError.
func (g *geocoder) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "geocode: %s rate limit", g.provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s build request", g.provider)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s request", g.provider)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: %s returned status %d", g.provider, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "geocode: %s parse response", g.provider)
	}
	return nil
}
