package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

// SQLiteStore persists the panel catalog and kits.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// Foreign keys are a per-connection setting, so they go in the DSN.
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// An in-memory database exists per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const createPanels = `
CREATE TABLE IF NOT EXISTS solar_panels (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  brand TEXT NOT NULL,
  model TEXT NOT NULL,
  rated_power_watts REAL NOT NULL,
  unit_price REAL NOT NULL,
  vmp REAL NOT NULL DEFAULT 0,
  imp REAL NOT NULL DEFAULT 0,
  voc REAL NOT NULL DEFAULT 0,
  isc REAL NOT NULL DEFAULT 0,
  efficiency_pct REAL NOT NULL DEFAULT 0,
  weight_kg REAL NOT NULL DEFAULT 0,
  dimensions TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT ''
);
`
	const createKits = `
CREATE TABLE IF NOT EXISTS kits (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  latitude REAL,
  longitude REAL,
  capacity_kw REAL,
  status TEXT NOT NULL,
  monthly_consumption_kwh REAL,
  energy_rate REAL,
  total_amount REAL,
  currency TEXT NOT NULL DEFAULT '',
  billing_period TEXT NOT NULL DEFAULT '',
  utility_provider TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	const createEquipment = `
CREATE TABLE IF NOT EXISTS equipment (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  brand TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  unit_price REAL NOT NULL,
  power_watts REAL NOT NULL DEFAULT 0,
  efficiency_pct REAL NOT NULL DEFAULT 0,
  capacity_kwh REAL NOT NULL DEFAULT 0,
  voltage_v REAL NOT NULL DEFAULT 0,
  material TEXT NOT NULL DEFAULT '',
  rating TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT ''
);
`
	// item_id points into solar_panels or equipment depending on kind, so it has no foreign key.
	const createKitComponents = `
CREATE TABLE IF NOT EXISTS kit_components (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  kit_id TEXT NOT NULL REFERENCES kits(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  item_id TEXT NOT NULL,
  quantity REAL NOT NULL,
  UNIQUE (kit_id, kind, item_id)
);
`
	for _, stmt := range []string{
		createPanels,
		createKits,
		createEquipment,
		createKitComponents,
		`CREATE INDEX IF NOT EXISTS idx_kits_created_at ON kits(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_equipment_kind ON equipment(kind);`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const panelColumns = `id, brand, model, rated_power_watts, unit_price, vmp, imp, voc, isc, efficiency_pct, weight_kg, dimensions, image_url`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPanel(r rowScanner) (solar.PanelModel, error) {
	var p solar.PanelModel
	err := r.Scan(&p.ID, &p.Brand, &p.Model, &p.RatedPowerWatts, &p.UnitPrice,
		&p.Vmp, &p.Imp, &p.Voc, &p.Isc, &p.EfficiencyPct, &p.WeightKg, &p.Dimensions, &p.ImageURL)
	return p, err
}

func panelArgs(p solar.PanelModel) []any {
	return []any{p.ID, p.Brand, p.Model, p.RatedPowerWatts, p.UnitPrice,
		p.Vmp, p.Imp, p.Voc, p.Isc, p.EfficiencyPct, p.WeightKg, p.Dimensions, p.ImageURL}
}

// ListPanelModels returns every panel in insertion order.
func (s *SQLiteStore) ListPanelModels(ctx context.Context) ([]solar.PanelModel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+panelColumns+` FROM solar_panels ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []solar.PanelModel
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPanels returns the catalog size.
func (s *SQLiteStore) CountPanels(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solar_panels`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) CreatePanel(ctx context.Context, p solar.PanelModel) (solar.PanelModel, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO solar_panels (`+panelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, panelArgs(p)...)
	if err != nil {
		return solar.PanelModel{}, fmt.Errorf("insert panel %s: %w", p.ID, conflictOr(err))
	}
	return p, nil
}

// BulkCreatePanels inserts panels in one transaction, skipping IDs that already exist.
// It returns the number of rows inserted.
func (s *SQLiteStore) BulkCreatePanels(ctx context.Context, panels []solar.PanelModel) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO solar_panels (`+panelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range panels {
		res, err := stmt.ExecContext(ctx, panelArgs(p)...)
		if err != nil {
			return 0, fmt.Errorf("insert panel %s: %w", p.ID, err)
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

func (s *SQLiteStore) GetPanel(ctx context.Context, id string) (solar.PanelModel, error) {
	p, err := scanPanel(s.db.QueryRowContext(ctx, `SELECT `+panelColumns+` FROM solar_panels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.PanelModel{}, fmt.Errorf("panel %s: %w", id, solar.ErrNotFound)
	}
	return p, err
}

func (s *SQLiteStore) UpdatePanel(ctx context.Context, id string, patch solar.PanelPatch) (solar.PanelModel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return solar.PanelModel{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanPanel(tx.QueryRowContext(ctx, `SELECT `+panelColumns+` FROM solar_panels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.PanelModel{}, fmt.Errorf("panel %s: %w", id, solar.ErrNotFound)
	}
	if err != nil {
		return solar.PanelModel{}, err
	}

	p := patch.Apply(current)
	_, err = tx.ExecContext(ctx, `
UPDATE solar_panels SET brand = ?, model = ?, rated_power_watts = ?, unit_price = ?,
  vmp = ?, imp = ?, voc = ?, isc = ?, efficiency_pct = ?, weight_kg = ?, dimensions = ?, image_url = ?
WHERE id = ?`,
		p.Brand, p.Model, p.RatedPowerWatts, p.UnitPrice,
		p.Vmp, p.Imp, p.Voc, p.Isc, p.EfficiencyPct, p.WeightKg, p.Dimensions, p.ImageURL, id)
	if err != nil {
		return solar.PanelModel{}, err
	}
	return p, tx.Commit()
}

func (s *SQLiteStore) DeletePanel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM solar_panels WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("panel %s: %w", id, solar.ErrNotFound)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort as text. RFC3339Nano
// still parses it.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const kitColumns = `id, name, address, latitude, longitude, capacity_kw, status, monthly_consumption_kwh,
  energy_rate, total_amount, currency, billing_period, utility_provider, created_at, updated_at`

func scanKit(r rowScanner) (solar.Kit, error) {
	var k solar.Kit
	var lat, lon, capacity, consumption, rate, total sql.NullFloat64
	var status, created, updated string
	err := r.Scan(&k.ID, &k.Name, &k.Address, &lat, &lon, &capacity, &status, &consumption,
		&rate, &total, &k.Currency, &k.BillingPeriod, &k.UtilityProvider, &created, &updated)
	if err != nil {
		return solar.Kit{}, err
	}
	k.Status = solar.KitStatus(status)
	k.Latitude = fromNull(lat)
	k.Longitude = fromNull(lon)
	k.CapacityKw = fromNull(capacity)
	k.MonthlyConsumptionKwh = fromNull(consumption)
	k.EnergyRate = fromNull(rate)
	k.TotalAmount = fromNull(total)
	if k.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return solar.Kit{}, fmt.Errorf("kit %s created_at: %w", k.ID, err)
	}
	if k.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return solar.Kit{}, fmt.Errorf("kit %s updated_at: %w", k.ID, err)
	}
	return k, nil
}

func kitArgs(k solar.Kit) []any {
	return []any{k.ID, k.Name, k.Address, toNull(k.Latitude), toNull(k.Longitude), toNull(k.CapacityKw),
		string(k.Status), toNull(k.MonthlyConsumptionKwh), toNull(k.EnergyRate), toNull(k.TotalAmount),
		k.Currency, k.BillingPeriod, k.UtilityProvider,
		k.CreatedAt.UTC().Format(timeLayout), k.UpdatedAt.UTC().Format(timeLayout)}
}

func (s *SQLiteStore) CreateKit(ctx context.Context, k solar.Kit) (solar.Kit, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kits (`+kitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, kitArgs(k)...)
	if err != nil {
		return solar.Kit{}, fmt.Errorf("insert kit %s: %w", k.ID, conflictOr(err))
	}
	return k, nil
}

func (s *SQLiteStore) GetKit(ctx context.Context, id string) (solar.Kit, error) {
	k, err := scanKit(s.db.QueryRowContext(ctx, `SELECT `+kitColumns+` FROM kits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return solar.Kit{}, fmt.Errorf("kit %s: %w", id, solar.ErrNotFound)
	}
	return k, err
}

func (s *SQLiteStore) ListKits(ctx context.Context) ([]solar.Kit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+kitColumns+` FROM kits ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []solar.Kit
	for rows.Next() {
		k, err := scanKit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// SaveKit overwrites every mutable column of an existing kit.
func (s *SQLiteStore) SaveKit(ctx context.Context, k solar.Kit) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE kits SET name = ?, address = ?, latitude = ?, longitude = ?, capacity_kw = ?, status = ?,
  monthly_consumption_kwh = ?, energy_rate = ?, total_amount = ?, currency = ?, billing_period = ?,
  utility_provider = ?, updated_at = ?
WHERE id = ?`,
		k.Name, k.Address, toNull(k.Latitude), toNull(k.Longitude), toNull(k.CapacityKw), string(k.Status),
		toNull(k.MonthlyConsumptionKwh), toNull(k.EnergyRate), toNull(k.TotalAmount), k.Currency, k.BillingPeriod,
		k.UtilityProvider, k.UpdatedAt.UTC().Format(timeLayout), k.ID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("kit %s: %w", k.ID, solar.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteKit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("kit %s: %w", id, solar.ErrNotFound)
	}
	return nil
}

// conflictOr turns a uniqueness violation into solar.ErrConflict and keeps the
// driver error in the chain.
func conflictOr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return errors.Join(solar.ErrConflict, err)
	}
	return err
}

func toNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
