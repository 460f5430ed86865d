package solar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBillAnalysisDisabled is returned when no BillAnalyzer is configured.
	ErrBillAnalysisDisabled = errors.New("bill analysis is not configured")
	// ErrEquipmentDisabled is returned when no EquipmentStore or ComponentStore is configured.
	ErrEquipmentDisabled = errors.New("equipment catalog is not configured")
)

// IrradianceSource is what the Service needs from irradiance resolution.
// *IrradianceService implements it.
type IrradianceSource interface {
	Fetch(ctx context.Context, lat, lon float64) (IrradianceProfile, error)
	Refresh(ctx context.Context, lat, lon float64) (IrradianceProfile, error)
}

// Service wires the irradiance source, the panel catalog and kit storage
// around the pure sizing calculation.
type Service struct {
	irradiance IrradianceSource
	panels     PanelStore
	kits       KitStore
	equipment  EquipmentStore
	components ComponentStore

	cfg      SizingConfig
	geocoder Geocoder
	bills    BillAnalyzer
	logger   *zap.Logger
	recorder Recorder

	warmConcurrency int
	warmTimeout     time.Duration
	now             func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSizingConfig overrides the default sizing assumptions.
func WithSizingConfig(cfg SizingConfig) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithGeocoder enables address geocoding for kits created without coordinates.
func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithBillAnalyzer enables utility bill analysis.
func WithBillAnalyzer(b BillAnalyzer) Option {
	return func(s *Service) { s.bills = b }
}

// WithEquipment enables the non-panel catalogs and kit bills of materials.
func WithEquipment(equipment EquipmentStore, components ComponentStore) Option {
	return func(s *Service) {
		s.equipment = equipment
		s.components = components
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithWarmConcurrency bounds how many kits WarmKits refreshes at once.
func WithWarmConcurrency(n int) Option {
	return func(s *Service) { s.warmConcurrency = n }
}

// NewService creates a new Service.
func NewService(irradiance IrradianceSource, panels PanelStore, kits KitStore, opts ...Option) *Service {
	s := &Service{
		irradiance:      irradiance,
		panels:          panels,
		kits:            kits,
		cfg:             DefaultSizingConfig(),
		logger:          zap.NewNop(),
		recorder:        nopRecorder{},
		warmConcurrency: 4,
		warmTimeout:     30 * time.Second,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SizingConfig returns the assumptions the service sizes with.
func (s *Service) SizingConfig() SizingConfig {
	return s.cfg
}

// Size fetches the site's irradiance and the panel catalog concurrently and
// computes the sizing. The site is validated before any I/O happens and any
// collaborator failure fails the whole request.
func (s *Service) Size(ctx context.Context, site SiteProfile) (SizingResult, error) {
	if err := validateSite(site); err != nil {
		s.recorder.SizingOutcome(outcomeOf(err))
		return SizingResult{}, err
	}

	var (
		irradiance IrradianceProfile
		catalog    []PanelModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		irradiance, err = s.irradiance.Fetch(gctx, site.Latitude, site.Longitude)
		return err
	})
	g.Go(func() error {
		var err error
		catalog, err = s.panels.ListPanelModels(gctx)
		if err != nil {
			return fmt.Errorf("list panel models: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.recorder.SizingOutcome("upstream_error")
		s.logger.Error("sizing collaborators failed", zap.Error(err))
		return SizingResult{}, err
	}

	res, err := ComputeSizingWithConfig(s.cfg, site, irradiance, catalog)
	s.recorder.SizingOutcome(outcomeOf(err))
	if err != nil {
		s.logger.Info("sizing rejected", zap.Error(err))
		return SizingResult{}, err
	}

	s.logger.Debug("sizing computed",
		zap.String("source", irradiance.Source),
		zap.Float64("peakSunHours", res.PeakSunHours),
		zap.Float64("dailyDemandKwh", res.DailyDemandKwh),
		zap.Int("options", len(res.Options)))
	return res, nil
}

// SizeKit sizes a stored kit.
func (s *Service) SizeKit(ctx context.Context, kitID string) (SizingResult, error) {
	kit, err := s.kits.GetKit(ctx, kitID)
	if err != nil {
		return SizingResult{}, err
	}
	site, err := kit.SiteProfile()
	if err != nil {
		return SizingResult{}, err
	}
	return s.Size(ctx, site)
}

// Irradiance returns the irradiance profile for a point.
func (s *Service) Irradiance(ctx context.Context, lat, lon float64) (IrradianceProfile, error) {
	if err := validateSite(SiteProfile{Latitude: lat, Longitude: lon, MonthlyConsumptionKwh: 1}); err != nil {
		return IrradianceProfile{}, err
	}
	return s.irradiance.Fetch(ctx, lat, lon)
}

// WarmKits refreshes the cached irradiance of every kit that has coordinates.
// Failures are logged and skipped; the number of refreshed kits is returned.
func (s *Service) WarmKits(ctx context.Context) (int, error) {
	kits, err := s.kits.ListKits(ctx)
	if err != nil {
		return 0, fmt.Errorf("list kits: %w", err)
	}

	limit := s.warmConcurrency
	if limit < 1 {
		limit = 1
	}

	var warmed atomic.Int64
	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, k := range kits {
		if !k.HasLocation() {
			continue
		}
		lat, lon := *k.Latitude, *k.Longitude
		key := CoordinateKey(lat, lon)
		if seen[key] {
			continue
		}
		seen[key] = true

		kitID := k.ID
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, s.warmTimeout)
			defer cancel()

			if _, err := s.irradiance.Refresh(fctx, lat, lon); err != nil {
				s.logger.Warn("irradiance warm-up failed", zap.String("kit", kitID), zap.Error(err))
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(warmed.Load()), ctx.Err()
}

// ListPanels returns the catalog in insertion order.
func (s *Service) ListPanels(ctx context.Context) ([]PanelModel, error) {
	return s.panels.ListPanelModels(ctx)
}

// GetPanel returns one catalog entry.
func (s *Service) GetPanel(ctx context.Context, id string) (PanelModel, error) {
	return s.panels.GetPanel(ctx, id)
}

// CreatePanel validates and stores a panel, assigning an ID when none is given.
func (s *Service) CreatePanel(ctx context.Context, p PanelModel) (PanelModel, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := validatePanel(p); err != nil {
		return PanelModel{}, err
	}
	return s.panels.CreatePanel(ctx, p)
}

// BulkCreatePanels validates and stores panels in one transaction.
func (s *Service) BulkCreatePanels(ctx context.Context, panels []PanelModel) (int, error) {
	out := make([]PanelModel, len(panels))
	for i, p := range panels {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := validatePanel(p); err != nil {
			return 0, err
		}
		out[i] = p
	}
	return s.panels.BulkCreatePanels(ctx, out)
}

// UpdatePanel applies a partial update, rejecting results sizing could not use.
func (s *Service) UpdatePanel(ctx context.Context, id string, patch PanelPatch) (PanelModel, error) {
	current, err := s.panels.GetPanel(ctx, id)
	if err != nil {
		return PanelModel{}, err
	}
	if err := validatePanel(patch.Apply(current)); err != nil {
		return PanelModel{}, err
	}
	return s.panels.UpdatePanel(ctx, id, patch)
}

// DeletePanel removes a panel from the catalog.
func (s *Service) DeletePanel(ctx context.Context, id string) error {
	return s.panels.DeletePanel(ctx, id)
}

// CreateKit stores a new kit. When the kit has an address but no coordinates and a
// geocoder is configured, the address is geocoded; geocoding failures are logged and
// leave the kit without coordinates.
func (s *Service) CreateKit(ctx context.Context, k Kit) (Kit, error) {
	if k.Status == "" {
		k.Status = KitStatusDraft
	}
	if !k.Status.Valid() {
		return Kit{}, fmt.Errorf("%w: unknown kit status %q", ErrInvalidInput, k.Status)
	}
	k.ID = uuid.NewString()
	k.CreatedAt = s.now()
	k.UpdatedAt = k.CreatedAt

	if !k.HasLocation() {
		s.geocode(ctx, &k)
	}
	return s.kits.CreateKit(ctx, k)
}

// GetKit returns one kit.
func (s *Service) GetKit(ctx context.Context, id string) (Kit, error) {
	return s.kits.GetKit(ctx, id)
}

// ListKits returns all kits, newest first.
func (s *Service) ListKits(ctx context.Context) ([]Kit, error) {
	return s.kits.ListKits(ctx)
}

// UpdateKit applies a partial update. A changed address without new
// coordinates is geocoded again.
func (s *Service) UpdateKit(ctx context.Context, id string, patch KitPatch) (Kit, error) {
	k, err := s.kits.GetKit(ctx, id)
	if err != nil {
		return Kit{}, err
	}
	updated := patch.Apply(k)
	if !updated.Status.Valid() {
		return Kit{}, fmt.Errorf("%w: unknown kit status %q", ErrInvalidInput, updated.Status)
	}
	if patch.Address != nil && patch.Latitude == nil && patch.Longitude == nil && updated.Address != k.Address {
		updated.Latitude, updated.Longitude = nil, nil
		s.geocode(ctx, &updated)
	}
	updated.UpdatedAt = s.now()

	if err := s.kits.SaveKit(ctx, updated); err != nil {
		return Kit{}, err
	}
	return updated, nil
}

// DeleteKit removes a kit.
func (s *Service) DeleteKit(ctx context.Context, id string) error {
	return s.kits.DeleteKit(ctx, id)
}

// AnalyzeKitBill extracts consumption data from a bill image and stores it on the kit.
// The image itself is not kept.
func (s *Service) AnalyzeKitBill(ctx context.Context, kitID string, image []byte, mimeType string) (Kit, BillData, error) {
	if s.bills == nil {
		return Kit{}, BillData{}, ErrBillAnalysisDisabled
	}
	// Fail on unknown kits before paying for a model call.
	if _, err := s.kits.GetKit(ctx, kitID); err != nil {
		return Kit{}, BillData{}, err
	}

	data, err := s.bills.AnalyzeBill(ctx, image, mimeType)
	if err != nil {
		return Kit{}, BillData{}, err
	}

	k, err := s.ApplyBill(ctx, kitID, data)
	if err != nil {
		return Kit{}, BillData{}, err
	}
	return k, data, nil
}

// ApplyBill copies the non-empty bill fields onto a kit and saves it.
// A non-positive consumption is ignored so it cannot make the kit unsizable.
func (s *Service) ApplyBill(ctx context.Context, kitID string, data BillData) (Kit, error) {
	k, err := s.kits.GetKit(ctx, kitID)
	if err != nil {
		return Kit{}, err
	}

	if data.MonthlyConsumptionKwh != nil && *data.MonthlyConsumptionKwh > 0 {
		k.MonthlyConsumptionKwh = data.MonthlyConsumptionKwh
	}
	if data.EnergyRate != nil {
		k.EnergyRate = data.EnergyRate
	}
	if data.TotalAmount != nil {
		k.TotalAmount = data.TotalAmount
	}
	if data.Currency != "" {
		k.Currency = strings.ToUpper(data.Currency)
	}
	if data.BillingPeriod != "" {
		k.BillingPeriod = data.BillingPeriod
	}
	if data.Provider != "" {
		k.UtilityProvider = data.Provider
	}
	k.UpdatedAt = s.now()

	if err := s.kits.SaveKit(ctx, k); err != nil {
		return Kit{}, err
	}
	return k, nil
}

func (s *Service) geocode(ctx context.Context, k *Kit) {
	if s.geocoder == nil || strings.TrimSpace(k.Address) == "" {
		return
	}
	lat, lon, err := s.geocoder.Geocode(ctx, k.Address)
	if err != nil {
		s.logger.Warn("geocoding failed", zap.String("address", k.Address), zap.Error(err))
		return
	}
	k.Latitude, k.Longitude = &lat, &lon
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidConfig):
		return "invalid_input"
	case errors.Is(err, ErrEmptyCatalog):
		return "empty_catalog"
	case errors.Is(err, ErrInvalidCatalogEntry):
		return "invalid_catalog_entry"
	case errors.Is(err, ErrDegenerateProduction):
		return "degenerate_production"
	default:
		return "error"
	}
}
