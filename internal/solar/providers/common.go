package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	// Limiter throttles outbound calls to stay inside the provider's quota. Optional.
	Limiter *rate.Limiter
}

// DefaultBackoff is used by providers unless overridden.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")

	// ErrMalformedPayload is returned when a provider answers with data we cannot use.
	ErrMalformedPayload = errors.New("malformed irradiance payload")
)

// maxBodyBytes caps how much of a provider response we are willing to read.
const maxBodyBytes = 4 << 20

// statusError keeps the status code so callers can decide on retries.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: %d", errUnexpected, e.code)
	}
	return fmt.Sprintf("%s: %d: %s", errUnexpected, e.code, e.body)
}

func (e *statusError) Unwrap() error { return errUnexpected }

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors (bad key, bad coordinates) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || errors.As(err, &se)
		},
	})
}

// doRequestWithResilience executes the HTTP request with rate limiting, retries,
// exponential backoff and a circuit breaker, and returns the response body.
// 4xx answers other than 429 are returned immediately without retrying.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

			// Handle rate limiting and server errors explicitly.
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &statusError{code: resp.StatusCode, body: apiErrorMessage(body)}
			}
			if readErr != nil {
				return nil, readErr
			}

			return body, nil
		})

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		var se *statusError
		if errors.As(err, &se) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// apiErrorMessage pulls a human-readable message out of an error payload.
// PVWatts uses {"errors": [...]}, NASA POWER uses {"messages": [...]} or {"detail": ...}.
func apiErrorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		if len(body) > 200 {
			body = body[:200]
		}
		return string(body)
	}
	for _, path := range []string{"errors.0", "error.message", "messages.0", "detail", "message"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// profileFromValues converts twelve JSON numbers into an IrradianceProfile,
// rejecting anything that is not exactly twelve non-negative numbers.
func profileFromValues(source string, values []gjson.Result) (solar.IrradianceProfile, error) {
	if len(values) != solar.MonthsPerYear {
		return solar.IrradianceProfile{}, fmt.Errorf("%w: %s returned %d monthly values", ErrMalformedPayload, source, len(values))
	}
	monthly := make([]float64, 0, solar.MonthsPerYear)
	for i, v := range values {
		if v.Type != gjson.Number {
			return solar.IrradianceProfile{}, fmt.Errorf("%w: %s month %d is %q", ErrMalformedPayload, source, i+1, v.Raw)
		}
		f := v.Float()
		if f < 0 {
			return solar.IrradianceProfile{}, fmt.Errorf("%w: %s has no data for month %d", ErrMalformedPayload, source, i+1)
		}
		monthly = append(monthly, f)
	}
	return solar.IrradianceProfile{MonthlyAverages: monthly, Source: source}, nil
}
