package solar

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ComputeSizing sizes every catalog panel against the site's demand using the
// default assumptions. See ComputeSizingWithConfig.
func ComputeSizing(site SiteProfile, irradiance IrradianceProfile, catalog []PanelModel) (SizingResult, error) {
	return ComputeSizingWithConfig(DefaultSizingConfig(), site, irradiance, catalog)
}

// ComputeSizingWithConfig turns a site, its irradiance profile and a panel catalog
// into one sizing option per panel, in catalog order.
//
// Peak sun hours are the mean of the monthly averages. Daily demand is monthly
// consumption over DaysPerMonth, scaled by MarginFactor. Each panel produces
// ratedPower/1000 * peakSunHours * PerformanceRatio kWh per day and the panel count
// is always rounded up. Every input is checked before anything is computed and the
// first violation aborts the call; there are no partial results.
func ComputeSizingWithConfig(cfg SizingConfig, site SiteProfile, irradiance IrradianceProfile, catalog []PanelModel) (SizingResult, error) {
	if err := cfg.Validate(); err != nil {
		return SizingResult{}, err
	}
	if err := validateSite(site); err != nil {
		return SizingResult{}, err
	}
	if err := validateIrradiance(irradiance); err != nil {
		return SizingResult{}, err
	}
	if len(catalog) == 0 {
		return SizingResult{}, ErrEmptyCatalog
	}
	for _, p := range catalog {
		if err := validatePanel(p); err != nil {
			return SizingResult{}, err
		}
	}

	peakSunHours := meanOf(irradiance.MonthlyAverages)
	dailyConsumption := site.MonthlyConsumptionKwh / cfg.DaysPerMonth
	dailyDemand := dailyConsumption * cfg.MarginFactor

	options := make([]SizingOption, 0, len(catalog))
	for _, p := range catalog {
		production := (p.RatedPowerWatts / 1000) * peakSunHours * cfg.PerformanceRatio
		if !isFinite(production) || production <= 0 {
			return SizingResult{}, &DegenerateProductionError{PanelID: p.ID, Production: production}
		}

		ratio := dailyDemand / production
		// A count beyond int cannot be represented.
		if !isFinite(ratio) || ratio >= math.MaxInt {
			return SizingResult{}, &DegenerateProductionError{PanelID: p.ID, Production: production}
		}
		n := int(math.Ceil(ratio))
		if n < 1 {
			// Positive demand always needs a panel, even when the ratio underflows.
			n = 1
		}

		count := decimal.NewFromInt(int64(n))
		options = append(options, SizingOption{
			Panel:           p,
			PanelsNeeded:    n,
			TotalCapacityKw: count.Mul(decimal.NewFromFloat(p.RatedPowerWatts)).Shift(-3).Round(2).InexactFloat64(),
			TotalPrice:      count.Mul(decimal.NewFromFloat(p.UnitPrice)).Round(2).InexactFloat64(),
		})
	}

	return SizingResult{
		PeakSunHours:   round2(peakSunHours),
		DailyDemandKwh: round2(dailyDemand),
		Options:        options,
	}, nil
}

func validateSite(site SiteProfile) error {
	switch {
	case !isFinite(site.Latitude) || site.Latitude < -90 || site.Latitude > 90:
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidInput, site.Latitude)
	case !isFinite(site.Longitude) || site.Longitude < -180 || site.Longitude > 180:
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidInput, site.Longitude)
	case !isFinite(site.MonthlyConsumptionKwh) || site.MonthlyConsumptionKwh <= 0:
		return fmt.Errorf("%w: monthly consumption must be a positive number, got %v", ErrInvalidInput, site.MonthlyConsumptionKwh)
	}
	return nil
}

func validateIrradiance(irr IrradianceProfile) error {
	if len(irr.MonthlyAverages) != MonthsPerYear {
		return fmt.Errorf("%w: expected %d monthly irradiance values, got %d", ErrInvalidInput, MonthsPerYear, len(irr.MonthlyAverages))
	}
	for i, v := range irr.MonthlyAverages {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("%w: irradiance for month %d is %v", ErrInvalidInput, i+1, v)
		}
	}
	return nil
}

func validatePanel(p PanelModel) error {
	if !isFinite(p.RatedPowerWatts) || p.RatedPowerWatts <= 0 {
		return &CatalogEntryError{PanelID: p.ID, Reason: fmt.Sprintf("rated power %v W must be positive", p.RatedPowerWatts)}
	}
	if !isFinite(p.UnitPrice) || p.UnitPrice < 0 {
		return &CatalogEntryError{PanelID: p.ID, Reason: fmt.Sprintf("unit price %v must not be negative", p.UnitPrice)}
	}
	return nil
}

// meanOf sums in decimal so the result does not depend on the order of values.
func meanOf(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.InexactFloat64() / float64(len(values))
}

// round2 rounds half away from zero to two decimal places.
func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
