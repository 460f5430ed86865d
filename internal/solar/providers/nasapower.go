package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// nasaPowerParameter is all-sky surface shortwave downward irradiance, in kWh/m²/day.
const nasaPowerParameter = "ALLSKY_SFC_SW_DWN"

var nasaPowerMonths = [solar.MonthsPerYear]string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// NASAPowerProvider implements solar.IrradianceProvider for the NASA POWER
// climatology API. No API key is required.
type NASAPowerProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNASAPowerProvider(client *http.Client) *NASAPowerProvider {
	return &NASAPowerProvider{
		name:    "nasapower",
		baseURL: "https://power.larc.nasa.gov/api/temporal/climatology/point",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("nasapower"),
	}
}

// WithBaseURL points the provider at another endpoint; used by tests.
func (p *NASAPowerProvider) WithBaseURL(u string) *NASAPowerProvider {
	p.baseURL = u
	return p
}

// WithBackoff overrides the retry policy.
func (p *NASAPowerProvider) WithBackoff(b BackoffConfig) *NASAPowerProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *NASAPowerProvider) Name() string {
	return p.name
}

func (p *NASAPowerProvider) FetchMonthlyIrradiance(ctx context.Context, lat, lon float64) (solar.IrradianceProfile, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameters", nasaPowerParameter)
		values.Set("community", "RE")
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return solar.IrradianceProfile{}, err
	}

	if !gjson.ValidBytes(body) {
		return solar.IrradianceProfile{}, fmt.Errorf("%w: nasapower response is not JSON", ErrMalformedPayload)
	}

	param := gjson.GetBytes(body, "properties.parameter."+nasaPowerParameter)
	if !param.IsObject() {
		return solar.IrradianceProfile{}, fmt.Errorf("%w: nasapower response has no %s", ErrMalformedPayload, nasaPowerParameter)
	}

	// Missing months come back as the fill value -999 and are rejected as negative.
	values := make([]gjson.Result, 0, solar.MonthsPerYear)
	for _, m := range nasaPowerMonths {
		v := param.Get(m)
		if !v.Exists() {
			return solar.IrradianceProfile{}, fmt.Errorf("%w: nasapower response has no value for %s", ErrMalformedPayload, m)
		}
		values = append(values, v)
	}
	return profileFromValues(p.name, values)
}
