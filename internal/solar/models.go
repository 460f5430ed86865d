package solar

import (
	"fmt"
	"math"
	"time"
)

// MonthsPerYear is the number of monthly averages an IrradianceProfile must carry.
const MonthsPerYear = 12

// SiteProfile describes one customer site's location and energy demand.
type SiteProfile struct {
	Latitude              float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude             float64 `json:"longitude" validate:"gte=-180,lte=180"`
	MonthlyConsumptionKwh float64 `json:"monthlyConsumptionKwh" validate:"gt=0"`
}

// IrradianceProfile is a full year of monthly average irradiance (kWh/m²/day)
// for one location, January first.
type IrradianceProfile struct {
	MonthlyAverages []float64 `json:"monthlyAverages"`

	// Source names the provider that produced the profile; empty when supplied by a caller.
	Source string `json:"source,omitempty"`
}

// PanelModel is one purchasable solar-panel SKU from the catalog.
type PanelModel struct {
	ID              string  `json:"id"`
	Brand           string  `json:"brand" validate:"required"`
	Model           string  `json:"model" validate:"required"`
	RatedPowerWatts float64 `json:"ratedPowerWatts" validate:"gt=0"`
	UnitPrice       float64 `json:"unitPrice" validate:"gte=0"`

	// Datasheet values; carried by the catalog, ignored by sizing.
	Vmp           float64 `json:"vmp,omitempty"`
	Imp           float64 `json:"imp,omitempty"`
	Voc           float64 `json:"voc,omitempty"`
	Isc           float64 `json:"isc,omitempty"`
	EfficiencyPct float64 `json:"efficiencyPct,omitempty"`
	WeightKg      float64 `json:"weightKg,omitempty"`
	Dimensions    string  `json:"dimensions,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
}

// SizingOption is the sizing outcome for a single catalog panel.
type SizingOption struct {
	Panel           PanelModel `json:"panel"`
	PanelsNeeded    int        `json:"panelsNeeded"`
	TotalCapacityKw float64    `json:"totalCapacityKw"`
	TotalPrice      float64    `json:"totalPrice"`
}

// SizingResult is the full output of one calculation. Options follow catalog order.
type SizingResult struct {
	PeakSunHours   float64        `json:"peakSunHours"`
	DailyDemandKwh float64        `json:"dailyDemandKwh"`
	Options        []SizingOption `json:"options"`
}

// SizingConfig holds the product assumptions applied by the calculator.
type SizingConfig struct {
	// MarginFactor scales daily consumption into design demand.
	MarginFactor float64 `json:"marginFactor"`
	// PerformanceRatio derates nameplate output for wiring, temperature and inverter losses.
	PerformanceRatio float64 `json:"performanceRatio"`
	// DaysPerMonth converts monthly consumption into a daily figure.
	DaysPerMonth float64 `json:"daysPerMonth"`
}

const (
	DefaultMarginFactor     = 1.25
	DefaultPerformanceRatio = 0.85
	DefaultDaysPerMonth     = 30
)

// DefaultSizingConfig returns the assumptions the product has always used.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		MarginFactor:     DefaultMarginFactor,
		PerformanceRatio: DefaultPerformanceRatio,
		DaysPerMonth:     DefaultDaysPerMonth,
	}
}

// Validate reports whether every factor is a positive finite number.
func (c SizingConfig) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"marginFactor", c.MarginFactor},
		{"performanceRatio", c.PerformanceRatio},
		{"daysPerMonth", c.DaysPerMonth},
	} {
		if !isFinite(f.value) || f.value <= 0 {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidConfig, f.name, f.value)
		}
	}
	return nil
}

// KitStatus tracks where a kit is in the quoting workflow.
type KitStatus string

const (
	KitStatusDraft     KitStatus = "draft"
	KitStatusPending   KitStatus = "pending"
	KitStatusCompleted KitStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s KitStatus) Valid() bool {
	switch s {
	case KitStatusDraft, KitStatusPending, KitStatusCompleted:
		return true
	default:
		return false
	}
}

// Kit is a customer installation being quoted. Coordinates and consumption
// feed the sizing calculation; bill fields come from bill analysis.
type Kit struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CapacityKw *float64  `json:"capacityKw,omitempty"`
	Status     KitStatus `json:"status"`

	MonthlyConsumptionKwh *float64 `json:"monthlyConsumptionKwh,omitempty"`
	EnergyRate            *float64 `json:"energyRate,omitempty"`
	TotalAmount           *float64 `json:"totalAmount,omitempty"`
	Currency              string   `json:"currency,omitempty"`
	BillingPeriod         string   `json:"billingPeriod,omitempty"`
	UtilityProvider       string   `json:"utilityProvider,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasLocation reports whether both coordinates are set.
func (k Kit) HasLocation() bool {
	return k.Latitude != nil && k.Longitude != nil
}

// SiteProfile converts the kit into calculator input.
func (k Kit) SiteProfile() (SiteProfile, error) {
	if !k.HasLocation() || k.MonthlyConsumptionKwh == nil {
		return SiteProfile{}, fmt.Errorf("%w: kit %s needs coordinates and monthly consumption", ErrKitIncomplete, k.ID)
	}
	return SiteProfile{
		Latitude:              *k.Latitude,
		Longitude:             *k.Longitude,
		MonthlyConsumptionKwh: *k.MonthlyConsumptionKwh,
	}, nil
}

// KitPatch carries a partial kit update; nil fields are left unchanged.
type KitPatch struct {
	Name       *string    `json:"name,omitempty"`
	Address    *string    `json:"address,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64   `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	CapacityKw *float64   `json:"capacityKw,omitempty" validate:"omitempty,gte=0"`
	Status     *KitStatus `json:"status,omitempty"`

	MonthlyConsumptionKwh *float64 `json:"monthlyConsumptionKwh,omitempty" validate:"omitempty,gt=0"`
}

// PanelPatch carries a partial catalog update; nil fields are left unchanged.
type PanelPatch struct {
	Brand           *string  `json:"brand,omitempty"`
	Model           *string  `json:"model,omitempty"`
	RatedPowerWatts *float64 `json:"ratedPowerWatts,omitempty" validate:"omitempty,gt=0"`
	UnitPrice       *float64 `json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	Vmp             *float64 `json:"vmp,omitempty"`
	Imp             *float64 `json:"imp,omitempty"`
	Voc             *float64 `json:"voc,omitempty"`
	Isc             *float64 `json:"isc,omitempty"`
	EfficiencyPct   *float64 `json:"efficiencyPct,omitempty"`
	WeightKg        *float64 `json:"weightKg,omitempty"`
	Dimensions      *string  `json:"dimensions,omitempty"`
	ImageURL        *string  `json:"imageUrl,omitempty"`
}

// Apply returns p with the patch's non-nil fields copied over.
func (pp PanelPatch) Apply(p PanelModel) PanelModel {
	setS := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setS(&p.Brand, pp.Brand)
	setS(&p.Model, pp.Model)
	setF(&p.RatedPowerWatts, pp.RatedPowerWatts)
	setF(&p.UnitPrice, pp.UnitPrice)
	setF(&p.Vmp, pp.Vmp)
	setF(&p.Imp, pp.Imp)
	setF(&p.Voc, pp.Voc)
	setF(&p.Isc, pp.Isc)
	setF(&p.EfficiencyPct, pp.EfficiencyPct)
	setF(&p.WeightKg, pp.WeightKg)
	setS(&p.Dimensions, pp.Dimensions)
	setS(&p.ImageURL, pp.ImageURL)
	return p
}

// Apply returns k with the patch's non-nil fields copied over.
func (kp KitPatch) Apply(k Kit) Kit {
	if kp.Name != nil {
		k.Name = *kp.Name
	}
	if kp.Address != nil {
		k.Address = *kp.Address
	}
	if kp.Latitude != nil {
		k.Latitude = kp.Latitude
	}
	if kp.Longitude != nil {
		k.Longitude = kp.Longitude
	}
	if kp.CapacityKw != nil {
		k.CapacityKw = kp.CapacityKw
	}
	if kp.Status != nil {
		k.Status = *kp.Status
	}
	if kp.MonthlyConsumptionKwh != nil {
		k.MonthlyConsumptionKwh = kp.MonthlyConsumptionKwh
	}
	return k
}

// CoordinateKey returns a cache key for a point, rounded to roughly 1 km.
func CoordinateKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f:%.2f", lat, lon)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
