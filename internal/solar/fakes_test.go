package solar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr[T any](v T) *T { return &v }

type fakeProvider struct {
	name    string
	profile IrradianceProfile
	err     error
	calls   atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchMonthlyIrradiance(ctx context.Context, _, _ float64) (IrradianceProfile, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return IrradianceProfile{}, err
	}
	return f.profile, f.err
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]IrradianceProfile
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]IrradianceProfile)}
}

func (c *fakeCache) Get(_ context.Context, key string) (IrradianceProfile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return IrradianceProfile{}, false, c.getErr
	}
	p, ok := c.data[key]
	return p, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, p IrradianceProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = p
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	hits     int
	misses   int
	fetches  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}, fetches: map[string]int{}}
}

func (r *countingRecorder) SizingOutcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o]++
}

func (r *countingRecorder) IrradianceFetch(provider, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[provider+":"+outcome]++
}

func (r *countingRecorder) CacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

// fakeIrradiance implements IrradianceSource.
type fakeIrradiance struct {
	profile   IrradianceProfile
	err       error
	delay     time.Duration
	fetches   atomic.Int32
	refreshes atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeIrradiance) Fetch(ctx context.Context, lat, lon float64) (IrradianceProfile, error) {
	f.fetches.Add(1)
	return f.profile, f.err
}

func (f *fakeIrradiance) Refresh(ctx context.Context, lat, lon float64) (IrradianceProfile, error) {
	f.refreshes.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return IrradianceProfile{}, ctx.Err()
		}
	}
	if f.err != nil && lat < 0 {
		return IrradianceProfile{}, f.err
	}
	return f.profile, nil
}

type fakePanels struct {
	mu      sync.Mutex
	panels  []PanelModel
	listErr error
}

func (f *fakePanels) ListPanelModels(context.Context) ([]PanelModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]PanelModel(nil), f.panels...), nil
}

func (f *fakePanels) CreatePanel(_ context.Context, p PanelModel) (PanelModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = append(f.panels, p)
	return p, nil
}

func (f *fakePanels) BulkCreatePanels(_ context.Context, ps []PanelModel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = append(f.panels, ps...)
	return len(ps), nil
}

func (f *fakePanels) GetPanel(_ context.Context, id string) (PanelModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.panels {
		if p.ID == id {
			return p, nil
		}
	}
	return PanelModel{}, ErrNotFound
}

func (f *fakePanels) UpdatePanel(_ context.Context, id string, patch PanelPatch) (PanelModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.panels {
		if p.ID == id {
			f.panels[i] = patch.Apply(p)
			return f.panels[i], nil
		}
	}
	return PanelModel{}, ErrNotFound
}

func (f *fakePanels) DeletePanel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.panels {
		if p.ID == id {
			f.panels = append(f.panels[:i], f.panels[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeKits struct {
	mu   sync.Mutex
	kits map[string]Kit
}

func newFakeKits(kits ...Kit) *fakeKits {
	f := &fakeKits{kits: make(map[string]Kit)}
	for _, k := range kits {
		f.kits[k.ID] = k
	}
	return f
}

func (f *fakeKits) CreateKit(_ context.Context, k Kit) (Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kits[k.ID] = k
	return k, nil
}

func (f *fakeKits) GetKit(_ context.Context, id string) (Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.kits[id]
	if !ok {
		return Kit{}, ErrNotFound
	}
	return k, nil
}

func (f *fakeKits) ListKits(context.Context) ([]Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Kit, 0, len(f.kits))
	for _, k := range f.kits {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeKits) SaveKit(_ context.Context, k Kit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kits[k.ID]; !ok {
		return ErrNotFound
	}
	f.kits[k.ID] = k
	return nil
}

func (f *fakeKits) DeleteKit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kits[id]; !ok {
		return ErrNotFound
	}
	delete(f.kits, id)
	return nil
}

type fakeGeocoder struct {
	lat, lon float64
	err      error
	calls    int
}

func (g *fakeGeocoder) Geocode(context.Context, string) (float64, float64, error) {
	g.calls++
	return g.lat, g.lon, g.err
}

type fakeBills struct {
	data BillData
	err  error
}

func (b fakeBills) AnalyzeBill(context.Context, []byte, string) (BillData, error) {
	return b.data, b.err
}

var errBoom = errors.New("boom")

type fakeEquipment struct {
	mu    sync.Mutex
	items []Equipment
}

func (f *fakeEquipment) ListEquipment(_ context.Context, kind EquipmentKind) ([]Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Equipment
	for _, e := range f.items {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEquipment) CreateEquipment(_ context.Context, e Equipment) (Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, e)
	return e, nil
}

func (f *fakeEquipment) BulkCreateEquipment(_ context.Context, items []Equipment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, items...)
	return len(items), nil
}

func (f *fakeEquipment) GetEquipment(_ context.Context, id string) (Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.ID == id {
			return e, nil
		}
	}
	return Equipment{}, ErrNotFound
}

func (f *fakeEquipment) UpdateEquipment(_ context.Context, id string, patch EquipmentPatch) (Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.items {
		if e.ID == id {
			f.items[i] = patch.Apply(e)
			return f.items[i], nil
		}
	}
	return Equipment{}, ErrNotFound
}

func (f *fakeEquipment) DeleteEquipment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.items {
		if e.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeComponents struct {
	mu   sync.Mutex
	rows []KitComponent
}

func (f *fakeComponents) AddKitComponent(_ context.Context, c KitComponent) (KitComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.KitID == c.KitID && row.Kind == c.Kind && row.ItemID == c.ItemID {
			f.rows[i].Quantity += c.Quantity
			return f.rows[i], nil
		}
	}
	f.rows = append(f.rows, c)
	return c, nil
}

func (f *fakeComponents) GetKitComponent(_ context.Context, id string) (KitComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return KitComponent{}, ErrNotFound
}

func (f *fakeComponents) ListKitComponents(_ context.Context, kitID string) ([]KitComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []KitComponent
	for _, row := range f.rows {
		if row.KitID == kitID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeComponents) SetKitComponentQuantity(_ context.Context, id string, quantity float64) (KitComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == id {
			f.rows[i].Quantity = quantity
			return f.rows[i], nil
		}
	}
	return KitComponent{}, ErrNotFound
}

func (f *fakeComponents) DeleteKitComponent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
