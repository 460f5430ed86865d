package solar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// IrradianceService resolves irradiance profiles from an ordered list of
// providers, consulting a cache first. The first provider that answers with a
// complete profile wins; later providers are only tried on failure.
type IrradianceService struct {
	providers []IrradianceProvider
	cache     IrradianceCache
	logger    *zap.Logger
	recorder  Recorder
}

// NewIrradianceService creates an IrradianceService. cache, logger and recorder may be nil.
func NewIrradianceService(providers []IrradianceProvider, cache IrradianceCache, logger *zap.Logger, recorder Recorder) *IrradianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &IrradianceService{
		providers: providers,
		cache:     cache,
		logger:    logger,
		recorder:  recorder,
	}
}

// Fetch returns the cached profile for the point or fetches a fresh one.
func (s *IrradianceService) Fetch(ctx context.Context, lat, lon float64) (IrradianceProfile, error) {
	key := CoordinateKey(lat, lon)
	if s.cache != nil {
		profile, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			// A broken cache must not block sizing.
			s.logger.Warn("irradiance cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.recorder.CacheLookup(ok)
		if ok {
			return profile, nil
		}
	}
	return s.Refresh(ctx, lat, lon)
}

// Refresh fetches from the providers, bypassing the cache, and stores the result.
func (s *IrradianceService) Refresh(ctx context.Context, lat, lon float64) (IrradianceProfile, error) {
	if len(s.providers) == 0 {
		return IrradianceProfile{}, fmt.Errorf("%w: no irradiance providers configured", ErrIrradianceUnavailable)
	}

	key := CoordinateKey(lat, lon)
	var errs []error
	for _, p := range s.providers {
		start := time.Now()
		profile, err := p.FetchMonthlyIrradiance(ctx, lat, lon)
		if err == nil {
			err = validateIrradiance(profile)
		}
		if err != nil {
			s.recorder.IrradianceFetch(p.Name(), "error", time.Since(start))
			s.logger.Warn("irradiance provider failed",
				zap.String("provider", p.Name()), zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		s.recorder.IrradianceFetch(p.Name(), "ok", time.Since(start))

		if profile.Source == "" {
			profile.Source = p.Name()
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, profile); err != nil {
				s.logger.Warn("irradiance cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return profile, nil
	}

	return IrradianceProfile{}, fmt.Errorf("%w for %s: %w", ErrIrradianceUnavailable, key, errors.Join(errs...))
}
