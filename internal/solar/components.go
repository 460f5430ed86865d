package solar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListEquipment returns one catalog, or all of them when kind is empty.
func (s *Service) ListEquipment(ctx context.Context, kind EquipmentKind) ([]Equipment, error) {
	if s.equipment == nil {
		return nil, ErrEquipmentDisabled
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown equipment kind %q", ErrInvalidInput, kind)
	}
	return s.equipment.ListEquipment(ctx, kind)
}

// GetEquipment returns one equipment item.
func (s *Service) GetEquipment(ctx context.Context, id string) (Equipment, error) {
	if s.equipment == nil {
		return Equipment{}, ErrEquipmentDisabled
	}
	return s.equipment.GetEquipment(ctx, id)
}

// CreateEquipment validates and stores an item, assigning an ID when none is given.
func (s *Service) CreateEquipment(ctx context.Context, e Equipment) (Equipment, error) {
	if s.equipment == nil {
		return Equipment{}, ErrEquipmentDisabled
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := validateEquipment(e); err != nil {
		return Equipment{}, err
	}
	return s.equipment.CreateEquipment(ctx, e)
}

// BulkCreateEquipment validates and stores items in one transaction.
// Items whose ID already exists are skipped.
func (s *Service) BulkCreateEquipment(ctx context.Context, items []Equipment) (int, error) {
	if s.equipment == nil {
		return 0, ErrEquipmentDisabled
	}
	out := make([]Equipment, len(items))
	for i, e := range items {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if err := validateEquipment(e); err != nil {
			return 0, err
		}
		out[i] = e
	}
	return s.equipment.BulkCreateEquipment(ctx, out)
}

// UpdateEquipment applies a partial update.
func (s *Service) UpdateEquipment(ctx context.Context, id string, patch EquipmentPatch) (Equipment, error) {
	if s.equipment == nil {
		return Equipment{}, ErrEquipmentDisabled
	}
	current, err := s.equipment.GetEquipment(ctx, id)
	if err != nil {
		return Equipment{}, err
	}
	if err := validateEquipment(patch.Apply(current)); err != nil {
		return Equipment{}, err
	}
	return s.equipment.UpdateEquipment(ctx, id, patch)
}

// DeleteEquipment removes an item. Kit rows that reference it stay and are
// listed without details.
func (s *Service) DeleteEquipment(ctx context.Context, id string) error {
	if s.equipment == nil {
		return ErrEquipmentDisabled
	}
	return s.equipment.DeleteEquipment(ctx, id)
}

// AddKitComponent adds quantity of a catalog item to a kit. Adding an item the
// kit already holds increases that row's quantity.
func (s *Service) AddKitComponent(ctx context.Context, kitID string, kind ComponentKind, itemID string, quantity float64) (KitComponent, error) {
	if s.components == nil {
		return KitComponent{}, ErrEquipmentDisabled
	}
	if !kind.Valid() {
		return KitComponent{}, fmt.Errorf("%w: unknown component kind %q", ErrInvalidInput, kind)
	}
	if !isFinite(quantity) || quantity <= 0 {
		return KitComponent{}, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidInput, quantity)
	}
	if _, err := s.kits.GetKit(ctx, kitID); err != nil {
		return KitComponent{}, err
	}
	if _, _, err := s.resolveItem(ctx, kind, itemID); err != nil {
		return KitComponent{}, err
	}

	return s.components.AddKitComponent(ctx, KitComponent{
		ID:       uuid.NewString(),
		KitID:    kitID,
		Kind:     kind,
		ItemID:   itemID,
		Quantity: quantity,
	})
}

// UpdateKitComponentQuantity sets a row's quantity. A quantity of zero or less
// removes the row, in which case removed is true.
func (s *Service) UpdateKitComponentQuantity(ctx context.Context, kitID, componentID string, quantity float64) (c KitComponent, removed bool, err error) {
	if s.components == nil {
		return KitComponent{}, false, ErrEquipmentDisabled
	}
	if !isFinite(quantity) {
		return KitComponent{}, false, fmt.Errorf("%w: quantity must be a number, got %v", ErrInvalidInput, quantity)
	}
	if _, err := s.kitComponent(ctx, kitID, componentID); err != nil {
		return KitComponent{}, false, err
	}

	if quantity <= 0 {
		return KitComponent{}, true, s.components.DeleteKitComponent(ctx, componentID)
	}
	c, err = s.components.SetKitComponentQuantity(ctx, componentID, quantity)
	return c, false, err
}

// RemoveKitComponent deletes a row. Removing a row that is already gone is not an error.
func (s *Service) RemoveKitComponent(ctx context.Context, kitID, componentID string) error {
	if s.components == nil {
		return ErrEquipmentDisabled
	}
	if _, err := s.kitComponent(ctx, kitID, componentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	err := s.components.DeleteKitComponent(ctx, componentID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// KitBillOfMaterials lists a kit's components with their catalog details,
// line totals and the kit total, all rounded to cents.
func (s *Service) KitBillOfMaterials(ctx context.Context, kitID string) (BillOfMaterials, error) {
	if s.components == nil {
		return BillOfMaterials{}, ErrEquipmentDisabled
	}
	if _, err := s.kits.GetKit(ctx, kitID); err != nil {
		return BillOfMaterials{}, err
	}
	rows, err := s.components.ListKitComponents(ctx, kitID)
	if err != nil {
		return BillOfMaterials{}, err
	}

	bom := BillOfMaterials{KitID: kitID, Lines: make([]ComponentLine, 0, len(rows))}
	total := decimal.Zero
	for _, c := range rows {
		line := ComponentLine{KitComponent: c}
		panel, equipment, err := s.resolveItem(ctx, c.Kind, c.ItemID)
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("kit component refers to a missing catalog item",
				zap.String("kit", kitID), zap.String("kind", string(c.Kind)), zap.String("item", c.ItemID))
		case err != nil:
			return BillOfMaterials{}, err
		case panel != nil:
			line.Panel, line.UnitPrice = panel, panel.UnitPrice
		case equipment != nil:
			line.Equipment, line.UnitPrice = equipment, equipment.UnitPrice
		}

		lineTotal := decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromFloat(c.Quantity)).Round(2)
		line.LineTotal = lineTotal.InexactFloat64()
		total = total.Add(lineTotal)
		bom.Lines = append(bom.Lines, line)
	}
	bom.Total = total.Round(2).InexactFloat64()
	return bom, nil
}

// ApplySizingOption sizes the kit and sets its row for panelID to the number of
// panels that option needs. The kit's capacity is updated to match.
func (s *Service) ApplySizingOption(ctx context.Context, kitID, panelID string) (KitComponent, error) {
	if s.components == nil {
		return KitComponent{}, ErrEquipmentDisabled
	}
	res, err := s.SizeKit(ctx, kitID)
	if err != nil {
		return KitComponent{}, err
	}

	var opt *SizingOption
	for i := range res.Options {
		if res.Options[i].Panel.ID == panelID {
			opt = &res.Options[i]
			break
		}
	}
	if opt == nil {
		return KitComponent{}, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}

	rows, err := s.components.ListKitComponents(ctx, kitID)
	if err != nil {
		return KitComponent{}, err
	}
	quantity := float64(opt.PanelsNeeded)
	var c KitComponent
	for _, row := range rows {
		if row.Kind == ComponentSolarModule && row.ItemID == panelID {
			c, err = s.components.SetKitComponentQuantity(ctx, row.ID, quantity)
			break
		}
	}
	if c.ID == "" && err == nil {
		c, err = s.components.AddKitComponent(ctx, KitComponent{
			ID:       uuid.NewString(),
			KitID:    kitID,
			Kind:     ComponentSolarModule,
			ItemID:   panelID,
			Quantity: quantity,
		})
	}
	if err != nil {
		return KitComponent{}, err
	}

	k, err := s.kits.GetKit(ctx, kitID)
	if err != nil {
		return KitComponent{}, err
	}
	capacity := opt.TotalCapacityKw
	k.CapacityKw = &capacity
	k.UpdatedAt = s.now()
	if err := s.kits.SaveKit(ctx, k); err != nil {
		return KitComponent{}, err
	}
	return c, nil
}

// kitComponent returns a row only if it belongs to kitID.
func (s *Service) kitComponent(ctx context.Context, kitID, componentID string) (KitComponent, error) {
	c, err := s.components.GetKitComponent(ctx, componentID)
	if err != nil {
		return KitComponent{}, err
	}
	if c.KitID != kitID {
		return KitComponent{}, fmt.Errorf("component %s in kit %s: %w", componentID, kitID, ErrNotFound)
	}
	return c, nil
}

// resolveItem looks the item up in the catalog its kind names.
func (s *Service) resolveItem(ctx context.Context, kind ComponentKind, itemID string) (*PanelModel, *Equipment, error) {
	if kind == ComponentSolarModule {
		p, err := s.panels.GetPanel(ctx, itemID)
		if err != nil {
			return nil, nil, err
		}
		return &p, nil, nil
	}

	if s.equipment == nil {
		return nil, nil, ErrEquipmentDisabled
	}
	e, err := s.equipment.GetEquipment(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if ComponentKind(e.Kind) != kind {
		return nil, nil, fmt.Errorf("%w: item %s is a %s, not a %s", ErrInvalidInput, itemID, e.Kind, kind)
	}
	return nil, &e, nil
}
