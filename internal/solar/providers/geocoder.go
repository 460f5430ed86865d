package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"
)

// GoogleGeocoder implements solar.Geocoder with the Google Geocoding API.
// The underlying library keeps the API key in a package variable, so only one
// key can be in use per process.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

// Geocode resolves a free-form address. The library call is not
// cancellable, so ctx is only checked before it starts.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, 0, errors.New("geocode: empty address")
	}

	loc, err := g.lookup(geocoder.Address{Street: address})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return 0, 0, fmt.Errorf("geocode %q: no result", address)
	}
	return loc.Latitude, loc.Longitude, nil
}
