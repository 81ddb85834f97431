package geocode

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/store-locator/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

// googleTransientStatuses are statuses worth counting against the breaker.
var googleTransientStatuses = map[string]bool{
	"OVER_QUERY_LIMIT": true,
	"UNKNOWN_ERROR":    true,
}

// geocodeGoogle takes the first result of the Google Geocoding API.
// ZERO_RESULTS is a miss; any other non-OK status is a StatusError.
func (g *geocoder) geocodeGoogle(ctx context.Context, address string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	var body googleResponse
	err := g.getJSON(ctx, googleGeocodeURL, url.Values{
		"address": {address},
		"key":     {g.googleKey},
	}, &body)
	if err != nil {
		return nil, err
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Source: ProviderGoogle}, nil
	default:
		serr := &StatusError{Provider: ProviderGoogle, Status: body.Status, Message: body.ErrorMessage}
		if googleTransientStatuses[body.Status] {
			return nil, resilience.NewTransientError(serr, http.StatusTooManyRequests)
		}
		return nil, serr
	}

	if len(body.Results) == 0 {
		return &Result{Source: ProviderGoogle}, nil
	}
	top := body.Results[0]
	return &Result{
		Latitude:         top.Geometry.Location.Lat,
		Longitude:        top.Geometry.Location.Lng,
		Source:           ProviderGoogle,
		Quality:          googleQuality(top.Geometry.LocationType),
		FormattedAddress: top.FormattedAddress,
		Matched:          true,
	}, nil
}

// googleQuality maps location_type onto rooftop, range, centroid or
// approximate.
func googleQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
