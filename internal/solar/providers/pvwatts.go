package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// PVWattsProvider implements solar.IrradianceProvider for NREL PVWatts v8.
// Only the solar-resource output (solrad_monthly) is used; the system
// parameters are nominal values PVWatts requires for every request.
type PVWattsProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewPVWattsProvider creates a provider limited to requestsPerHour calls
// (NREL's default key quota is 1000/hour). requestsPerHour <= 0 disables limiting.
func NewPVWattsProvider(client *http.Client, apiKey string, requestsPerHour int) *PVWattsProvider {
	var limiter *rate.Limiter
	if requestsPerHour > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(requestsPerHour)), 10)
	}

	return &PVWattsProvider{
		name:    "pvwatts",
		apiKey:  apiKey,
		baseURL: "https://developer.nrel.gov/api/pvwatts/v8.json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
			Limiter: limiter,
		},
		circuit: newBreaker("pvwatts"),
	}
}

// WithBaseURL points the provider at another endpoint; used by tests.
func (p *PVWattsProvider) WithBaseURL(u string) *PVWattsProvider {
	p.baseURL = u
	return p
}

// WithBackoff overrides the retry policy.
func (p *PVWattsProvider) WithBackoff(b BackoffConfig) *PVWattsProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *PVWattsProvider) Name() string {
	return p.name
}

func (p *PVWattsProvider) FetchMonthlyIrradiance(ctx context.Context, lat, lon float64) (solar.IrradianceProfile, error) {
	if p.apiKey == "" {
		return solar.IrradianceProfile{}, fmt.Errorf("pvwatts api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		// Tilt equal to latitude, facing the equator.
		azimuth := "180"
		if lat < 0 {
			azimuth = "0"
		}

		values := url.Values{}
		values.Set("api_key", p.apiKey)
		values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("system_capacity", "4")
		values.Set("module_type", "0")
		values.Set("losses", "14")
		values.Set("array_type", "1")
		values.Set("tilt", strconv.FormatFloat(math.Abs(lat), 'f', -1, 64))
		values.Set("azimuth", azimuth)
		values.Set("format", "json")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return solar.IrradianceProfile{}, err
	}

	if !gjson.ValidBytes(body) {
		return solar.IrradianceProfile{}, fmt.Errorf("%w: pvwatts response is not JSON", ErrMalformedPayload)
	}
	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return solar.IrradianceProfile{}, fmt.Errorf("pvwatts: %s", errs.Array()[0].String())
	}

	monthly := gjson.GetBytes(body, "outputs.solrad_monthly")
	if !monthly.IsArray() {
		return solar.IrradianceProfile{}, fmt.Errorf("%w: pvwatts response has no outputs.solrad_monthly", ErrMalformedPayload)
	}
	return profileFromValues(p.name, monthly.Array())
}
