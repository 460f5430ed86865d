package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

type AppConfig struct {
	Port         string `validate:"required,numeric"`
	DatabasePath string `validate:"required"`

	// IrradianceProviders lists providers in failover order.
	IrradianceProviders []string `validate:"min=1,dive,oneof=pvwatts nasapower"`
	PVWattsAPIKey       string
	PVWattsRatePerHour  int           `validate:"gt=0"`
	HTTPTimeout         time.Duration `validate:"gt=0"`

	// Irradiance cache. Redis is used when RedisAddr is set, memory otherwise.
	CacheTTL        time.Duration `validate:"gte=0"`
	CacheMaxEntries int           `validate:"gte=0"`
	RedisAddr       string
	RedisPassword   string
	RedisDB         int `validate:"gte=0"`

	// RefreshInterval controls how often stored kits get their irradiance re-fetched (0 disables).
	RefreshInterval time.Duration `validate:"gte=0"`

	GeocoderAPIKey string
	GoogleAPIKey   string
	BillModel      string

	Sizing solar.SizingConfig
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*AppConfig, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:               getenvDefault("PORT", "8080"),
		DatabasePath:       getenvDefault("DATABASE_PATH", "solar.db"),
		PVWattsAPIKey:      os.Getenv("PVWATTS_API_KEY"),
		PVWattsRatePerHour: getenvInt("PVWATTS_RATE_PER_HOUR", 1000),
		CacheMaxEntries:    getenvInt("IRRADIANCE_CACHE_MAX_ENTRIES", 1000),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getenvInt("REDIS_DB", 0),
		GeocoderAPIKey:     os.Getenv("GEOCODER_API_KEY"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		BillModel:          getenvDefault("BILL_MODEL", "gemini-2.5-flash"),
	}
	cfg.IrradianceProviders = splitList(getenvDefault("IRRADIANCE_PROVIDERS", "pvwatts,nasapower"))

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("IRRADIANCE_CACHE_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("IRRADIANCE_REFRESH_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Sizing = solar.DefaultSizingConfig()
	if cfg.Sizing.MarginFactor, err = getenvFloat("SIZING_MARGIN_FACTOR", cfg.Sizing.MarginFactor); err != nil {
		return nil, err
	}
	if cfg.Sizing.PerformanceRatio, err = getenvFloat("SIZING_PERFORMANCE_RATIO", cfg.Sizing.PerformanceRatio); err != nil {
		return nil, err
	}
	if cfg.Sizing.DaysPerMonth, err = getenvFloat("SIZING_DAYS_PER_MONTH", cfg.Sizing.DaysPerMonth); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and the sizing assumptions.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Sizing.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
