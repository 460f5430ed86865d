package solar

import (
	"fmt"
	"strings"
)

// EquipmentKind names one of the non-panel catalogs.
type EquipmentKind string

const (
	EquipmentInverter   EquipmentKind = "inverter"
	EquipmentBattery    EquipmentKind = "battery"
	EquipmentStructure  EquipmentKind = "structure"
	EquipmentCable      EquipmentKind = "cable"
	EquipmentProtection EquipmentKind = "protection"
)

// Valid reports whether k is a known catalog.
func (k EquipmentKind) Valid() bool {
	switch k {
	case EquipmentInverter, EquipmentBattery, EquipmentStructure, EquipmentCable, EquipmentProtection:
		return true
	default:
		return false
	}
}

// Equipment is a catalog item other than a panel. Which of the optional fields
// matter depends on Kind. Cables are priced per meter, everything else per unit.
type Equipment struct {
	ID        string        `json:"id"`
	Kind      EquipmentKind `json:"kind" validate:"required,oneof=inverter battery structure cable protection"`
	Name      string        `json:"name,omitempty"`
	Brand     string        `json:"brand,omitempty"`
	Model     string        `json:"model,omitempty"`
	Type      string        `json:"type,omitempty"`
	UnitPrice float64       `json:"unitPrice" validate:"gte=0"`

	PowerWatts    float64 `json:"powerWatts,omitempty" validate:"gte=0"`
	EfficiencyPct float64 `json:"efficiencyPct,omitempty" validate:"gte=0"`
	CapacityKwh   float64 `json:"capacityKwh,omitempty" validate:"gte=0"`
	VoltageV      float64 `json:"voltageV,omitempty" validate:"gte=0"`
	Material      string  `json:"material,omitempty"`
	Rating        string  `json:"rating,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
}

// Label is the human name of the item: Name when set, otherwise brand and model.
func (e Equipment) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return strings.TrimSpace(e.Brand + " " + e.Model)
}

func validateEquipment(e Equipment) error {
	switch {
	case !e.Kind.Valid():
		return &CatalogEntryError{PanelID: e.ID, Reason: fmt.Sprintf("unknown equipment kind %q", e.Kind)}
	case e.Label() == "":
		return &CatalogEntryError{PanelID: e.ID, Reason: "name or brand and model are required"}
	case !isFinite(e.UnitPrice) || e.UnitPrice < 0:
		return &CatalogEntryError{PanelID: e.ID, Reason: fmt.Sprintf("unit price must be non-negative, got %v", e.UnitPrice)}
	case e.Kind == EquipmentInverter && !(e.PowerWatts > 0):
		return &CatalogEntryError{PanelID: e.ID, Reason: "inverter power must be positive"}
	case e.Kind == EquipmentBattery && !(e.CapacityKwh > 0):
		return &CatalogEntryError{PanelID: e.ID, Reason: "battery capacity must be positive"}
	}
	return nil
}

// EquipmentPatch carries a partial equipment update; nil fields are left unchanged.
// The kind of an item never changes.
type EquipmentPatch struct {
	Name          *string  `json:"name,omitempty"`
	Brand         *string  `json:"brand,omitempty"`
	Model         *string  `json:"model,omitempty"`
	Type          *string  `json:"type,omitempty"`
	UnitPrice     *float64 `json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	PowerWatts    *float64 `json:"powerWatts,omitempty" validate:"omitempty,gte=0"`
	EfficiencyPct *float64 `json:"efficiencyPct,omitempty" validate:"omitempty,gte=0"`
	CapacityKwh   *float64 `json:"capacityKwh,omitempty" validate:"omitempty,gte=0"`
	VoltageV      *float64 `json:"voltageV,omitempty" validate:"omitempty,gte=0"`
	Material      *string  `json:"material,omitempty"`
	Rating        *string  `json:"rating,omitempty"`
	ImageURL      *string  `json:"imageUrl,omitempty"`
}

// Apply returns e with the patch's non-nil fields copied over.
func (ep EquipmentPatch) Apply(e Equipment) Equipment {
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&e.Name, ep.Name}, {&e.Brand, ep.Brand}, {&e.Model, ep.Model}, {&e.Type, ep.Type},
		{&e.Material, ep.Material}, {&e.Rating, ep.Rating}, {&e.ImageURL, ep.ImageURL},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&e.UnitPrice, ep.UnitPrice}, {&e.PowerWatts, ep.PowerWatts}, {&e.EfficiencyPct, ep.EfficiencyPct},
		{&e.CapacityKwh, ep.CapacityKwh}, {&e.VoltageV, ep.VoltageV},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return e
}

// ComponentKind names what a kit line item refers to: a panel or one of the
// equipment catalogs.
type ComponentKind string

// ComponentSolarModule refers to the panel catalog.
const ComponentSolarModule ComponentKind = "solar_module"

// Valid reports whether k is a known component kind.
func (k ComponentKind) Valid() bool {
	return k == ComponentSolarModule || EquipmentKind(k).Valid()
}

// KitComponent is one line of a kit's bill of materials. A kit holds at most one
// row per (Kind, ItemID).
type KitComponent struct {
	ID       string        `json:"id"`
	KitID    string        `json:"kitId"`
	Kind     ComponentKind `json:"kind"`
	ItemID   string        `json:"itemId"`
	Quantity float64       `json:"quantity"`
}

// ComponentLine is a KitComponent with its catalog item resolved and priced.
// Panel and Equipment are both nil when the item was removed from its catalog.
type ComponentLine struct {
	KitComponent
	Panel     *PanelModel `json:"panel,omitempty"`
	Equipment *Equipment  `json:"equipment,omitempty"`
	UnitPrice float64     `json:"unitPrice"`
	LineTotal float64     `json:"lineTotal"`
}

// BillOfMaterials lists a kit's components with their prices.
type BillOfMaterials struct {
	KitID string          `json:"kitId"`
	Lines []ComponentLine `json:"lines"`
	Total float64         `json:"total"`
}
