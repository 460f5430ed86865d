package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/i474232898/solar-kit-sizing/internal/config"
	"github.com/i474232898/solar-kit-sizing/internal/solar"
	"github.com/i474232898/solar-kit-sizing/internal/solar/providers"
	"github.com/i474232898/solar-kit-sizing/internal/store"
)

// app holds everything a command needs; close releases it.
type app struct {
	service *solar.Service
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("shutdown: close failed", zap.Error(err))
		}
	}
}

// buildApp opens storage and wires providers, cache and optional collaborators.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, recorder solar.Recorder) (*app, error) {
	a := &app{}

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := db.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Providers with resilience (backoff + circuit breaker), in failover order.
	var provs []solar.IrradianceProvider
	for _, name := range cfg.IrradianceProviders {
		switch name {
		case "pvwatts":
			if cfg.PVWattsAPIKey == "" {
				log.Warn("PVWATTS_API_KEY not set; skipping pvwatts provider")
				continue
			}
			provs = append(provs, providers.NewPVWattsProvider(httpClient, cfg.PVWattsAPIKey, cfg.PVWattsRatePerHour))
		case "nasapower":
			provs = append(provs, providers.NewNASAPowerProvider(httpClient))
		}
	}
	if len(provs) == 0 {
		a.close()
		return nil, fmt.Errorf("no usable irradiance provider in %v", cfg.IrradianceProviders)
	}

	var cache solar.IrradianceCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		rc := store.NewRedisCache(client, cfg.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		cache = rc
		log.Info("irradiance cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		cache = store.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL)
		log.Info("irradiance cache: memory", zap.Int("maxEntries", cfg.CacheMaxEntries))
	}

	irradiance := solar.NewIrradianceService(provs, cache, log.Named("irradiance"), recorder)

	opts := []solar.Option{
		solar.WithSizingConfig(cfg.Sizing),
		solar.WithEquipment(db, db),
		solar.WithLogger(log.Named("service")),
	}
	if recorder != nil {
		opts = append(opts, solar.WithRecorder(recorder))
	}
	if cfg.GeocoderAPIKey != "" {
		opts = append(opts, solar.WithGeocoder(providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)))
	}
	if cfg.GoogleAPIKey != "" {
		bills, err := providers.NewGeminiBillAnalyzer(ctx, cfg.GoogleAPIKey, cfg.BillModel)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, solar.WithBillAnalyzer(bills))
	} else {
		log.Info("GOOGLE_API_KEY not set; bill analysis disabled")
	}

	a.service = solar.NewService(irradiance, db, db, opts...)
	return a, nil
}
