package solar

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEquipmentService(t *testing.T) (*Service, *fakeEquipment, *fakeComponents, *fakeKits) {
	t.Helper()
	kits := newFakeKits(
		Kit{ID: "k", Latitude: ptr(6.2), Longitude: ptr(-75.5), MonthlyConsumptionKwh: ptr(300.0), Status: KitStatusDraft},
		Kit{ID: "other", Status: KitStatusDraft},
	)
	equipment := &fakeEquipment{items: []Equipment{
		{ID: "inv", Kind: EquipmentInverter, Brand: "Growatt", Model: "MIN 3000TL-X", PowerWatts: 3000, UnitPrice: 520},
		{ID: "cable", Kind: EquipmentCable, Name: "PV cable 4 mm²", UnitPrice: 1.2},
	}}
	components := &fakeComponents{}
	svc := newTestService(&fakeIrradiance{profile: flatIrradiance(5)}, nil, kits, WithEquipment(equipment, components))
	return svc, equipment, components, kits
}

func TestValidateEquipment(t *testing.T) {
	tests := map[string]struct {
		item Equipment
		ok   bool
	}{
		"inverter":             {Equipment{Kind: EquipmentInverter, Brand: "G", Model: "M", PowerWatts: 3000}, true},
		"named cable":          {Equipment{Kind: EquipmentCable, Name: "PV 4mm", UnitPrice: 1.2}, true},
		"unknown kind":         {Equipment{Kind: "fan", Name: "x"}, false},
		"no label":             {Equipment{Kind: EquipmentCable, UnitPrice: 1}, false},
		"negative price":       {Equipment{Kind: EquipmentCable, Name: "x", UnitPrice: -1}, false},
		"inverter no power":    {Equipment{Kind: EquipmentInverter, Name: "x"}, false},
		"battery no capacity":  {Equipment{Kind: EquipmentBattery, Name: "x", VoltageV: 48}, false},
		"battery with storage": {Equipment{Kind: EquipmentBattery, Name: "x", CapacityKwh: 3.55}, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := validateEquipment(tt.item)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidCatalogEntry)
		})
	}
}

func TestServiceEquipment(t *testing.T) {
	svc, _, _, _ := newEquipmentService(t)
	ctx := context.Background()

	created, err := svc.CreateEquipment(ctx, Equipment{Kind: EquipmentBattery, Brand: "Pylontech", Model: "US3000C", CapacityKwh: 3.55, UnitPrice: 1150})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = svc.CreateEquipment(ctx, Equipment{Kind: EquipmentBattery, Name: "empty"})
	require.ErrorIs(t, err, ErrInvalidCatalogEntry)

	inverters, err := svc.ListEquipment(ctx, EquipmentInverter)
	require.NoError(t, err)
	require.Len(t, inverters, 1)
	assert.Equal(t, "inv", inverters[0].ID)

	all, err := svc.ListEquipment(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.ListEquipment(ctx, "fan")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateEquipment(ctx, "inv", EquipmentPatch{PowerWatts: ptr(0.0)})
	require.ErrorIs(t, err, ErrInvalidCatalogEntry)

	updated, err := svc.UpdateEquipment(ctx, "inv", EquipmentPatch{UnitPrice: ptr(499.0)})
	require.NoError(t, err)
	assert.Equal(t, 499.0, updated.UnitPrice)
	assert.Equal(t, EquipmentInverter, updated.Kind)

	n, err := svc.BulkCreateEquipment(ctx, []Equipment{{Kind: EquipmentProtection, Name: "DC breaker", Rating: "16A"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, svc.DeleteEquipment(ctx, created.ID))
	_, err = svc.GetEquipment(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceAddKitComponentMergesRepeats(t *testing.T) {
	svc, _, components, _ := newEquipmentService(t)
	ctx := context.Background()

	first, err := svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentInverter), "inv", 1)
	require.NoError(t, err)
	second, err := svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentInverter), "inv", 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2.0, second.Quantity)
	assert.Len(t, components.rows, 1)

	_, err = svc.AddKitComponent(ctx, "k", ComponentSolarModule, "p-450", 7)
	require.NoError(t, err)
	assert.Len(t, components.rows, 2)
}

func TestServiceAddKitComponentErrors(t *testing.T) {
	svc, _, _, _ := newEquipmentService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		kit      string
		kind     ComponentKind
		item     string
		quantity float64
		wantErr  error
	}{
		{"unknown kind", "k", "fan", "inv", 1, ErrInvalidInput},
		{"zero quantity", "k", ComponentKind(EquipmentInverter), "inv", 0, ErrInvalidInput},
		{"nan quantity", "k", ComponentKind(EquipmentInverter), "inv", math.NaN(), ErrInvalidInput},
		{"missing kit", "nope", ComponentKind(EquipmentInverter), "inv", 1, ErrNotFound},
		{"missing item", "k", ComponentKind(EquipmentInverter), "nope", 1, ErrNotFound},
		{"missing panel", "k", ComponentSolarModule, "nope", 1, ErrNotFound},
		{"kind mismatch", "k", ComponentKind(EquipmentBattery), "inv", 1, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddKitComponent(ctx, tt.kit, tt.kind, tt.item, tt.quantity)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestServiceUpdateKitComponentQuantity(t *testing.T) {
	svc, _, components, _ := newEquipmentService(t)
	ctx := context.Background()

	c, err := svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentCable), "cable", 10)
	require.NoError(t, err)

	got, removed, err := svc.UpdateKitComponentQuantity(ctx, "k", c.ID, 12.5)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 12.5, got.Quantity)

	_, _, err = svc.UpdateKitComponentQuantity(ctx, "other", c.ID, 3)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.UpdateKitComponentQuantity(ctx, "k", c.ID, math.Inf(1))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, removed, err = svc.UpdateKitComponentQuantity(ctx, "k", c.ID, 0)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, components.rows)

	_, _, err = svc.UpdateKitComponentQuantity(ctx, "k", c.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRemoveKitComponentIsIdempotent(t *testing.T) {
	svc, _, components, _ := newEquipmentService(t)
	ctx := context.Background()

	c, err := svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentInverter), "inv", 1)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveKitComponent(ctx, "other", c.ID))
	assert.Len(t, components.rows, 1, "a row of another kit is left alone")

	require.NoError(t, svc.RemoveKitComponent(ctx, "k", c.ID))
	assert.Empty(t, components.rows)
	require.NoError(t, svc.RemoveKitComponent(ctx, "k", c.ID))
}

func TestServiceKitBillOfMaterials(t *testing.T) {
	svc, equipment, _, _ := newEquipmentService(t)
	ctx := context.Background()

	_, err := svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentInverter), "inv", 2)
	require.NoError(t, err)
	_, err = svc.AddKitComponent(ctx, "k", ComponentKind(EquipmentCable), "cable", 12.5)
	require.NoError(t, err)
	_, err = svc.ApplySizingOption(ctx, "k", "p-450")
	require.NoError(t, err)

	bom, err := svc.KitBillOfMaterials(ctx, "k")
	require.NoError(t, err)
	require.Len(t, bom.Lines, 3)

	assert.Equal(t, 1040.0, bom.Lines[0].LineTotal)
	require.NotNil(t, bom.Lines[0].Equipment)
	assert.Equal(t, "Growatt", bom.Lines[0].Equipment.Brand)
	assert.Equal(t, 15.0, bom.Lines[1].LineTotal)
	require.NotNil(t, bom.Lines[2].Panel)
	assert.Equal(t, 7.0, bom.Lines[2].Quantity)
	assert.Equal(t, 1400.0, bom.Lines[2].LineTotal)
	assert.Equal(t, 2455.0, bom.Total)

	require.NoError(t, equipment.DeleteEquipment(ctx, "cable"))
	bom, err = svc.KitBillOfMaterials(ctx, "k")
	require.NoError(t, err)
	require.Len(t, bom.Lines, 3)
	assert.Nil(t, bom.Lines[1].Equipment)
	assert.Zero(t, bom.Lines[1].LineTotal)
	assert.Equal(t, 2440.0, bom.Total)

	_, err = svc.KitBillOfMaterials(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceApplySizingOption(t *testing.T) {
	svc, _, components, kits := newEquipmentService(t)
	ctx := context.Background()

	c, err := svc.ApplySizingOption(ctx, "k", "p-450")
	require.NoError(t, err)
	assert.Equal(t, ComponentSolarModule, c.Kind)
	assert.Equal(t, 7.0, c.Quantity)

	// Applying again sets the count rather than adding to it.
	c, err = svc.ApplySizingOption(ctx, "k", "p-450")
	require.NoError(t, err)
	assert.Equal(t, 7.0, c.Quantity)
	assert.Len(t, components.rows, 1)

	k, err := kits.GetKit(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, k.CapacityKw)
	assert.Equal(t, 3.15, *k.CapacityKw)

	_, err = svc.ApplySizingOption(ctx, "k", "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ApplySizingOption(ctx, "other", "p-450")
	require.ErrorIs(t, err, ErrKitIncomplete)
}

func TestServiceEquipmentDisabled(t *testing.T) {
	svc := newTestService(&fakeIrradiance{}, nil, newFakeKits(Kit{ID: "k"}))
	ctx := context.Background()

	_, err := svc.ListEquipment(ctx, "")
	require.ErrorIs(t, err, ErrEquipmentDisabled)
	_, err = svc.AddKitComponent(ctx, "k", ComponentSolarModule, "p-450", 1)
	require.ErrorIs(t, err, ErrEquipmentDisabled)
	_, err = svc.KitBillOfMaterials(ctx, "k")
	require.ErrorIs(t, err, ErrEquipmentDisabled)
}
