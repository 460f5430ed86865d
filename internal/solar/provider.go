package solar

import (
	"context"
	"time"
)

// IrradianceProvider abstracts a solar-resource data source (e.g. NREL PVWatts, NASA POWER).
type IrradianceProvider interface {
	Name() string
	FetchMonthlyIrradiance(ctx context.Context, lat, lon float64) (IrradianceProfile, error)
}

// IrradianceCache keeps fetched profiles keyed by CoordinateKey.
type IrradianceCache interface {
	Get(ctx context.Context, key string) (IrradianceProfile, bool, error)
	Set(ctx context.Context, key string, profile IrradianceProfile) error
}

// CatalogProvider supplies the candidate panel models for one request.
type CatalogProvider interface {
	ListPanelModels(ctx context.Context) ([]PanelModel, error)
}

// PanelStore is the persisted panel catalog.
type PanelStore interface {
	CatalogProvider
	CreatePanel(ctx context.Context, p PanelModel) (PanelModel, error)
	BulkCreatePanels(ctx context.Context, panels []PanelModel) (int, error)
	GetPanel(ctx context.Context, id string) (PanelModel, error)
	UpdatePanel(ctx context.Context, id string, patch PanelPatch) (PanelModel, error)
	DeletePanel(ctx context.Context, id string) error
}

// KitStore persists kits.
type KitStore interface {
	CreateKit(ctx context.Context, k Kit) (Kit, error)
	GetKit(ctx context.Context, id string) (Kit, error)
	ListKits(ctx context.Context) ([]Kit, error)
	SaveKit(ctx context.Context, k Kit) error
	DeleteKit(ctx context.Context, id string) error
}

// EquipmentStore persists the inverter, battery, structure, cable and protection catalogs.
type EquipmentStore interface {
	// ListEquipment returns items in insertion order; an empty kind lists every catalog.
	ListEquipment(ctx context.Context, kind EquipmentKind) ([]Equipment, error)
	CreateEquipment(ctx context.Context, e Equipment) (Equipment, error)
	BulkCreateEquipment(ctx context.Context, items []Equipment) (int, error)
	GetEquipment(ctx context.Context, id string) (Equipment, error)
	UpdateEquipment(ctx context.Context, id string, patch EquipmentPatch) (Equipment, error)
	DeleteEquipment(ctx context.Context, id string) error
}

// ComponentStore persists kit bills of materials.
type ComponentStore interface {
	// AddKitComponent inserts c, or adds c.Quantity to the kit's existing row for
	// the same item, and returns the stored row.
	AddKitComponent(ctx context.Context, c KitComponent) (KitComponent, error)
	GetKitComponent(ctx context.Context, id string) (KitComponent, error)
	ListKitComponents(ctx context.Context, kitID string) ([]KitComponent, error)
	SetKitComponentQuantity(ctx context.Context, id string, quantity float64) (KitComponent, error)
	DeleteKitComponent(ctx context.Context, id string) error
}

// Geocoder resolves a free-form address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// BillData is what bill analysis extracts from a utility bill.
type BillData struct {
	MonthlyConsumptionKwh *float64 `json:"monthlyConsumptionKwh"`
	EnergyRate            *float64 `json:"energyRate"`
	TotalAmount           *float64 `json:"totalAmount"`
	Currency              string   `json:"currency"`
	BillingPeriod         string   `json:"billingPeriod"`
	Provider              string   `json:"provider"`
}

// BillAnalyzer extracts consumption figures from an image of a utility bill.
type BillAnalyzer interface {
	AnalyzeBill(ctx context.Context, image []byte, mimeType string) (BillData, error)
}

// Recorder receives operational measurements; metrics.Collector implements it.
type Recorder interface {
	SizingOutcome(outcome string)
	IrradianceFetch(provider, outcome string, d time.Duration)
	CacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) SizingOutcome(string)                          {}
func (nopRecorder) IrradianceFetch(string, string, time.Duration) {}
func (nopRecorder) CacheLookup(bool)                              {}
