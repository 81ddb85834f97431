// Package storesearch is a client for the store-search JSON endpoint
// (GET ?action=search&lat=&lng=&range=).
package storesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/store-locator/internal/resilience"
)

// ErrInvalidResponse is returned when the body cannot be decoded or has no list.
var ErrInvalidResponse = eris.New("storesearch: invalid response")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Client searches for stores around a point.
type Client interface {
	// Search returns the stores within rangeMeters of (lat, lng). A response
	// with an empty list is not an error.
	Search(ctx context.Context, lat, lng, rangeMeters float64) ([]Store, error)
}

// Store is one entry of the response list.
type Store struct {
	CustomerName string     `json:"CustomerName"`
	AddressLine1 string     `json:"AddressLine1"`
	AddressLine2 string     `json:"AddressLine2"`
	AddressLine3 string     `json:"AddressLine3"`
	City         string     `json:"City"`
	State        string     `json:"State"`
	CountryCode  string     `json:"CountryCode"`
	Latitude     FlexFloat  `json:"latitude"`
	Longitude    FlexFloat  `json:"longitude"`
	Distance     *FlexFloat `json:"distance,omitempty"`
}

type searchResponse struct {
	List *[]Store `json:"list"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a store-search client for the endpoint at baseURL.
func NewClient(baseURL string, opts ...Option) (Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, eris.Wrapf(err, "storesearch: invalid base url %q", baseURL)
	}
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// RequestURL builds the search URL. range is sent in meters, rounded to the
// millimeter.
func RequestURL(baseURL string, lat, lng, rangeMeters float64) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", eris.Wrap(err, "storesearch: parse base url")
	}
	q := u.Query()
	q.Set("action", "search")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("range", strconv.FormatFloat(math.Round(rangeMeters*1000)/1000, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *httpClient) Search(ctx context.Context, lat, lng, rangeMeters float64) ([]Store, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "storesearch: rate limit")
	}

	reqURL, err := RequestURL(c.baseURL, lat, lng, rangeMeters)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "storesearch: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "storesearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := eris.Errorf("storesearch: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// readBody reads the response, transcoding to UTF-8 when the Content-Type
// declares another charset.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBodyBytes)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if cs := strings.ToLower(params["charset"]); cs != "" && cs != "utf-8" && cs != "utf8" {
			enc, err := htmlindex.Get(cs)
			if err != nil {
				return nil, eris.Wrapf(err, "storesearch: unsupported charset %q", cs)
			}
			r = enc.NewDecoder().Reader(r)
		}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "storesearch: read response")
	}
	return body, nil
}

func decodeList(body []byte) ([]Store, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, eris.Wrap(ErrInvalidResponse, "empty body")
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrapf(ErrInvalidResponse, "decode body: %v", err)
	}
	if sr.List == nil {
		return nil, eris.Wrap(ErrInvalidResponse, "missing list")
	}
	return *sr.List, nil
}
