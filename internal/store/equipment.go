package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

const equipmentColumns = `id, kind, name, brand, model, type, unit_price, power_watts, efficiency_pct,
  capacity_kwh, voltage_v, material, rating, image_url`

func scanEquipment(r rowScanner) (solar.Equipment, error) {
	var e solar.Equipment
	var kind string
	err := r.Scan(&e.ID, &kind, &e.Name, &e.Brand, &e.Model, &e.Type, &e.UnitPrice, &e.PowerWatts,
		&e.EfficiencyPct, &e.CapacityKwh, &e.VoltageV, &e.Material, &e.Rating, &e.ImageURL)
	e.Kind = solar.EquipmentKind(kind)
	return e, err
}

func equipmentArgs(e solar.Equipment) []any {
	return []any{e.ID, string(e.Kind), e.Name, e.Brand, e.Model, e.Type, e.UnitPrice, e.PowerWatts,
		e.EfficiencyPct, e.CapacityKwh, e.VoltageV, e.Material, e.Rating, e.ImageURL}
}

const insertEquipment = `INSERT INTO equipment (` + equipmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ListEquipment returns items of one kind, or all items when kind is empty, in insertion order.
func (s *SQLiteStore) ListEquipment(ctx context.Context, kind solar.EquipmentKind) ([]solar.Equipment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE ? = '' OR kind = ? ORDER BY seq`, string(kind), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []solar.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateEquipment(ctx context.Context, e solar.Equipment) (solar.Equipment, error) {
	if _, err := s.db.ExecContext(ctx, insertEquipment, equipmentArgs(e)...); err != nil {
		return solar.Equipment{}, fmt.Errorf("insert equipment %s: %w", e.ID, conflictOr(err))
	}
	return e, nil
}

// BulkCreateEquipment inserts items in one transaction, skipping IDs that already exist.
func (s *SQLiteStore) BulkCreateEquipment(ctx context.Context, items []solar.Equipment) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO equipment (`+equipmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range items {
		res, err := stmt.ExecContext(ctx, equipmentArgs(e)...)
		if err != nil {
			return 0, fmt.Errorf("insert equipment %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLiteStore) GetEquipment(ctx context.Context, id string) (solar.Equipment, error) {
	e, err := scanEquipment(s.db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.Equipment{}, fmt.Errorf("equipment %s: %w", id, solar.ErrNotFound)
	}
	return e, err
}

func (s *SQLiteStore) UpdateEquipment(ctx context.Context, id string, patch solar.EquipmentPatch) (solar.Equipment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return solar.Equipment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanEquipment(tx.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.Equipment{}, fmt.Errorf("equipment %s: %w", id, solar.ErrNotFound)
	}
	if err != nil {
		return solar.Equipment{}, err
	}

	e := patch.Apply(current)
	_, err = tx.ExecContext(ctx, `
UPDATE equipment SET name = ?, brand = ?, model = ?, type = ?, unit_price = ?, power_watts = ?,
  efficiency_pct = ?, capacity_kwh = ?, voltage_v = ?, material = ?, rating = ?, image_url = ?
WHERE id = ?`,
		e.Name, e.Brand, e.Model, e.Type, e.UnitPrice, e.PowerWatts,
		e.EfficiencyPct, e.CapacityKwh, e.VoltageV, e.Material, e.Rating, e.ImageURL, id)
	if err != nil {
		return solar.Equipment{}, err
	}
	return e, tx.Commit()
}

func (s *SQLiteStore) DeleteEquipment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("equipment %s: %w", id, solar.ErrNotFound)
	}
	return nil
}

const componentColumns = `id, kit_id, kind, item_id, quantity`

func scanComponent(r rowScanner) (solar.KitComponent, error) {
	var c solar.KitComponent
	var kind string
	err := r.Scan(&c.ID, &c.KitID, &kind, &c.ItemID, &c.Quantity)
	c.Kind = solar.ComponentKind(kind)
	return c, err
}

// AddKitComponent inserts c or, when the kit already holds the item, adds to that
// row's quantity. The stored row is returned, so its ID may differ from c.ID.
func (s *SQLiteStore) AddKitComponent(ctx context.Context, c solar.KitComponent) (solar.KitComponent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return solar.KitComponent{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO kit_components (`+componentColumns+`) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (kit_id, kind, item_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
		c.ID, c.KitID, string(c.Kind), c.ItemID, c.Quantity)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return solar.KitComponent{}, fmt.Errorf("kit %s: %w", c.KitID, solar.ErrNotFound)
		}
		return solar.KitComponent{}, fmt.Errorf("add component to kit %s: %w", c.KitID, conflictOr(err))
	}

	stored, err := scanComponent(tx.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM kit_components WHERE kit_id = ? AND kind = ? AND item_id = ?`,
		c.KitID, string(c.Kind), c.ItemID))
	if err != nil {
		return solar.KitComponent{}, err
	}
	return stored, tx.Commit()
}

func (s *SQLiteStore) GetKitComponent(ctx context.Context, id string) (solar.KitComponent, error) {
	c, err := scanComponent(s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM kit_components WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.KitComponent{}, fmt.Errorf("component %s: %w", id, solar.ErrNotFound)
	}
	return c, err
}

// ListKitComponents returns a kit's rows in the order they were first added.
func (s *SQLiteStore) ListKitComponents(ctx context.Context, kitID string) ([]solar.KitComponent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+componentColumns+` FROM kit_components WHERE kit_id = ? ORDER BY seq`, kitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []solar.KitComponent
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetKitComponentQuantity(ctx context.Context, id string, quantity float64) (solar.KitComponent, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE kit_components SET quantity = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return solar.KitComponent{}, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return solar.KitComponent{}, fmt.Errorf("component %s: %w", id, solar.ErrNotFound)
	}
	return s.GetKitComponent(ctx, id)
}

func (s *SQLiteStore) DeleteKitComponent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kit_components WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("component %s: %w", id, solar.ErrNotFound)
	}
	return nil
}
