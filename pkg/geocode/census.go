package geocode

import (
	"context"
	"net/url"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"
)

type censusResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// geocodeCensus takes the first match of the Census one-line geocoder. The
// Census API has no status field; an empty match list is the only miss.
func (g *geocoder) geocodeCensus(ctx context.Context, address string) (*Result, error) {
	var body censusResponse
	err := g.getJSON(ctx, censusOneLineURL, url.Values{
		"address":   {address},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}, &body)
	if err != nil {
		return nil, err
	}

	matches := body.Result.AddressMatches
	if len(matches) == 0 {
		return &Result{Source: ProviderCensus}, nil
	}
	return &Result{
		Latitude:         matches[0].Coordinates.Y,
		Longitude:        matches[0].Coordinates.X,
		Source:           ProviderCensus,
		Quality:          "rooftop",
		FormattedAddress: matches[0].MatchedAddress,
		Matched:          true,
	}, nil
}
