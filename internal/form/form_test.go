package form

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/ecoleta/internal/model"
)

var errDown = errors.New("down")

type fakeCatalog struct {
	items    []model.Item
	itemsErr error

	mu      sync.Mutex
	created []model.PointInput
	// createErr fails CreatePoint while non-nil.
	createErr error
	// gate, when set, blocks CreatePoint until closed.
	gate chan struct{}
}

func (c *fakeCatalog) ListItems(ctx context.Context) ([]model.Item, error) {
	return c.items, c.itemsErr
}

func (c *fakeCatalog) CreatePoint(ctx context.Context, in model.PointInput) (*model.Point, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, in)
	return &model.Point{ID: int64(len(c.created)), Name: in.Name, Items: in.Items}, nil
}

type fakeGeo struct {
	regions    []string
	regionsErr error
	localities map[string][]string

	// gates block Localities for a region until closed.
	gates         map[string]chan struct{}
	regionGate    chan struct{}
	localityCalls atomic.Int32
}

func (g *fakeGeo) Regions(ctx context.Context) ([]string, error) {
	if g.regionGate != nil {
		select {
		case <-g.regionGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.regions, g.regionsErr
}

func (g *fakeGeo) Localities(ctx context.Context, region string) ([]string, error) {
	g.localityCalls.Add(1)
	if gate, ok := g.gates[region]; ok {
		<-gate
	}
	l, ok := g.localities[region]
	if !ok {
		return nil, errDown
	}
	return l, nil
}

func newGeo() *fakeGeo {
	return &fakeGeo{
		regions: []string{"RJ", "SP"},
		localities: map[string][]string{
			"SP": {"Campinas", "São Paulo"},
			"RJ": {"Niterói", "Rio de Janeiro"},
		},
	}
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{items: []model.Item{{ID: 1, Title: "Lâmpadas"}, {ID: 2, Title: "Pilhas e Baterias"}}}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func(State) bool, f *Form) State {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		s := f.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, state: %+v", s)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMountLoadsIndependently(t *testing.T) {
	catalog := newCatalog()
	geo := newGeo()
	geo.regionsErr = errDown

	f := New(catalog, geo, nil, Options{})
	if s := f.Snapshot(); s.Items.Status != Idle || s.Regions.Status != Idle {
		t.Fatalf("expected idle before mount, got %v/%v", s.Items.Status, s.Regions.Status)
	}

	f.Mount()
	f.Mount()
	f.Wait()

	s := f.Snapshot()
	if s.Items.Status != Loaded || len(s.Items.Value) != 2 {
		t.Errorf("expected items loaded, got %+v", s.Items)
	}
	if s.Regions.Status != Failed || !errors.Is(s.Regions.Err, errDown) {
		t.Errorf("expected regions failed, got %+v", s.Regions)
	}
	if s.PositionSource != SourceNone {
		t.Errorf("expected no position without a locator, got %v", s.PositionSource)
	}
}

func TestFieldsEditableWhileLoading(t *testing.T) {
	geo := newGeo()
	geo.regionGate = make(chan struct{})

	f := New(newCatalog(), geo, nil, Options{})
	f.Mount()

	f.SetName("Eco Center")
	f.SetEmail("a@b.com")
	f.SetWhatsapp("5511999999999")

	s := f.Snapshot()
	if s.Regions.Status != Loading {
		t.Errorf("expected regions still loading, got %v", s.Regions.Status)
	}
	if s.Name != "Eco Center" || s.Email != "a@b.com" || s.Whatsapp != "5511999999999" {
		t.Errorf("fields not applied: %+v", s)
	}

	close(geo.regionGate)
	f.Wait()
	if s := f.Snapshot(); s.Regions.Status != Loaded {
		t.Errorf("expected regions loaded, got %v", s.Regions.Status)
	}
}

func TestToggleItem(t *testing.T) {
	f := New(newCatalog(), newGeo(), nil, Options{})

	f.ToggleItem(3)
	f.ToggleItem(1)
	if got := f.Snapshot().SelectedItems; !slices.Equal(got, []int64{3, 1}) {
		t.Errorf("expected insertion order [3 1], got %v", got)
	}

	before := f.Snapshot().SelectedItems
	f.ToggleItem(5)
	f.ToggleItem(5)
	if got := f.Snapshot().SelectedItems; !slices.Equal(got, before) {
		t.Errorf("double toggle should be a no-op, got %v want %v", got, before)
	}

	f.ToggleItem(3)
	if got := f.Snapshot().SelectedItems; !slices.Equal(got, []int64{1}) {
		t.Errorf("expected 3 removed, got %v", got)
	}
}

func TestSelectRegionLoadsLocalities(t *testing.T) {
	geo := newGeo()
	f := New(newCatalog(), geo, nil, Options{})

	f.SelectRegion("SP")
	f.Wait()

	s := f.Snapshot()
	if s.Localities.Status != Loaded || !slices.Equal(s.Localities.Value, []string{"Campinas", "São Paulo"}) {
		t.Errorf("unexpected localities %+v", s.Localities)
	}

	f.SelectLocality("Campinas")
	f.SelectRegion("SP")
	if s := f.Snapshot(); s.Locality != "Campinas" || geo.localityCalls.Load() != 1 {
		t.Errorf("reselecting the same region should be a no-op: %q, %d calls", s.Locality, geo.localityCalls.Load())
	}

	f.SelectRegion("RJ")
	if s := f.Snapshot(); s.Locality != model.Unset || s.Localities.Status != Loading || s.Localities.Value != nil {
		t.Errorf("expected locality reset and list cleared, got %q %+v", s.Locality, s.Localities)
	}
	f.Wait()
}

func TestStaleLocalitiesDiscarded(t *testing.T) {
	geo := newGeo()
	geo.gates = map[string]chan struct{}{
		"SP": make(chan struct{}),
		"RJ": make(chan struct{}),
	}
	f := New(newCatalog(), geo, nil, Options{})

	f.SelectRegion("SP")
	f.SelectRegion("RJ")

	close(geo.gates["RJ"])
	eventually(t, func(s State) bool { return s.Localities.Status == Loaded }, f)

	// The superseded SP answer arrives last and must not win.
	close(geo.gates["SP"])
	f.Wait()

	s := f.Snapshot()
	if s.Region != "RJ" || !slices.Equal(s.Localities.Value, []string{"Niterói", "Rio de Janeiro"}) {
		t.Errorf("expected RJ localities, got %s %v", s.Region, s.Localities.Value)
	}
}

func TestResetRegionClearsWithoutFetch(t *testing.T) {
	geo := newGeo()
	geo.gates = map[string]chan struct{}{"SP": make(chan struct{})}
	f := New(newCatalog(), geo, nil, Options{})

	f.SelectRegion("SP")
	f.SelectRegion(model.Unset)
	close(geo.gates["SP"])
	f.Wait()

	s := f.Snapshot()
	if s.Localities.Status != Idle || len(s.Localities.Value) != 0 {
		t.Errorf("expected idle empty localities, got %+v", s.Localities)
	}
	if n := geo.localityCalls.Load(); n != 1 {
		t.Errorf("expected only the SP fetch, got %d calls", n)
	}

	f.SelectRegion("")
	if n := geo.localityCalls.Load(); n != 1 {
		t.Errorf("empty region must not fetch, got %d calls", n)
	}
}

func TestLocalityFailureIsIsolated(t *testing.T) {
	geo := newGeo()
	f := New(newCatalog(), geo, nil, Options{})
	f.Mount()

	f.SelectRegion("AC")
	f.Wait()

	s := f.Snapshot()
	if s.Localities.Status != Failed {
		t.Errorf("expected localities failed, got %v", s.Localities.Status)
	}
	if s.Items.Status != Loaded || s.Regions.Status != Loaded {
		t.Errorf("other slices affected: %v %v", s.Items.Status, s.Regions.Status)
	}

	// Retrying by picking another region recovers.
	f.SelectRegion("SP")
	f.Wait()
	if s := f.Snapshot(); s.Localities.Status != Loaded {
		t.Errorf("expected recovery, got %v", s.Localities.Status)
	}
}

func TestUserClickBeatsPlatformPosition(t *testing.T) {
	release := make(chan struct{})
	locator := LocatorFunc(func(ctx context.Context) (Position, error) {
		<-release
		return Position{Lat: -22.9, Lng: -43.2}, nil
	})

	f := New(newCatalog(), newGeo(), locator, Options{})
	f.Mount()
	f.ClickMap(-23.5, -46.6)
	close(release)
	f.Wait()

	s := f.Snapshot()
	if s.PositionSource != SourceUser || s.Position != (Position{Lat: -23.5, Lng: -46.6}) {
		t.Errorf("expected user position to win, got %+v from %v", s.Position, s.PositionSource)
	}
}

func TestPlatformPositionApplies(t *testing.T) {
	locator := LocatorFunc(func(ctx context.Context) (Position, error) {
		return Position{Lat: -22.9, Lng: -43.2}, nil
	})

	f := New(newCatalog(), newGeo(), locator, Options{})
	f.Mount()
	f.Wait()

	s := f.Snapshot()
	if s.PositionSource != SourcePlatform || s.Position.Lat != -22.9 {
		t.Errorf("expected platform position, got %+v from %v", s.Position, s.PositionSource)
	}

	f.ClickMap(1, 2)
	if s := f.Snapshot(); s.PositionSource != SourceUser || s.Position.Lng != 2 {
		t.Errorf("expected click to override, got %+v", s.Position)
	}
}

func TestPayload(t *testing.T) {
	f := New(newCatalog(), newGeo(), nil, Options{})

	if in := f.Payload(); in.Latitude != nil || in.Longitude != nil || in.Items == nil {
		t.Errorf("expected no coordinates and empty items, got %+v", in)
	}

	f.SetName("Eco Center")
	f.SelectRegion("SP")
	f.Wait()
	f.SelectLocality("São Paulo")
	f.ClickMap(-23.5, -46.6)
	f.ToggleItem(3)
	f.ToggleItem(1)

	in := f.Payload()
	if in.UF != "SP" || in.City != "São Paulo" || in.Name != "Eco Center" {
		t.Errorf("unexpected payload %+v", in)
	}
	if in.Latitude == nil || *in.Latitude != -23.5 || *in.Longitude != -46.6 {
		t.Errorf("unexpected coordinates %v %v", in.Latitude, in.Longitude)
	}
	if !slices.Equal(in.Items, []int64{3, 1}) {
		t.Errorf("unexpected items %v", in.Items)
	}

	// The payload is a copy.
	in.Items[0] = 99
	if got := f.Snapshot().SelectedItems; got[0] != 3 {
		t.Errorf("payload aliases form state: %v", got)
	}
}

func TestSubmitSuccessClosesForm(t *testing.T) {
	catalog := newCatalog()
	geo := newGeo()
	geo.gates = map[string]chan struct{}{"SP": make(chan struct{})}

	var acknowledged *model.Point
	f := New(catalog, geo, nil, Options{OnSubmitted: func(p *model.Point) { acknowledged = p }})
	f.SetName("Eco Center")
	f.ToggleItem(1)
	f.SelectRegion("SP")

	point, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if acknowledged == nil || acknowledged.ID != point.ID {
		t.Errorf("expected acknowledgment hook with the created point, got %+v", acknowledged)
	}

	// A locality answer arriving after navigation away is ignored.
	close(geo.gates["SP"])
	f.Wait()

	s := f.Snapshot()
	if !s.Closed || !s.Submitted {
		t.Errorf("expected submitted and closed, got %+v", s)
	}
	if s.Localities.Status != Loading {
		t.Errorf("late result applied after close: %+v", s.Localities)
	}

	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitted) {
		t.Errorf("expected ErrSubmitted, got %v", err)
	}
	if len(catalog.created) != 1 {
		t.Errorf("expected exactly one CreatePoint, got %d", len(catalog.created))
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	catalog := newCatalog()
	ve := &model.ValidationError{Problems: []string{"email required"}}
	catalog.createErr = ve

	f := New(catalog, newGeo(), nil, Options{})
	f.SetName("Eco Center")
	f.ToggleItem(2)

	if _, err := f.Submit(context.Background()); !errors.Is(err, ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	s := f.Snapshot()
	if s.Closed || s.Submitted || s.Submitting {
		t.Errorf("form should stay open after failure: %+v", s)
	}
	if !errors.Is(s.LastError, ve) {
		t.Errorf("expected LastError recorded, got %v", s.LastError)
	}
	if s.Name != "Eco Center" || !slices.Equal(s.SelectedItems, []int64{2}) {
		t.Errorf("draft lost: %+v", s)
	}

	catalog.mu.Lock()
	catalog.createErr = nil
	catalog.mu.Unlock()
	f.SetEmail("a@b.com")

	if _, err := f.Submit(context.Background()); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if s := f.Snapshot(); s.LastError != nil {
		t.Errorf("expected LastError cleared, got %v", s.LastError)
	}
	if got := catalog.created[0]; got.Email != "a@b.com" || !slices.Equal(got.Items, []int64{2}) {
		t.Errorf("unexpected submitted payload %+v", got)
	}
}

func TestConcurrentSubmitRejected(t *testing.T) {
	catalog := newCatalog()
	catalog.gate = make(chan struct{})
	f := New(catalog, newGeo(), nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	eventually(t, func(s State) bool { return s.Submitting }, f)
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("expected ErrSubmitInProgress, got %v", err)
	}

	close(catalog.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

func TestCloseIgnoresLateResults(t *testing.T) {
	geo := newGeo()
	geo.regionGate = make(chan struct{})
	f := New(newCatalog(), geo, nil, Options{})

	f.Mount()
	f.Close()
	f.Wait()

	s := f.Snapshot()
	if s.Regions.Status != Loading {
		t.Errorf("expected regions untouched after close, got %v", s.Regions.Status)
	}

	f.SetName("late")
	f.SelectRegion("SP")
	if s := f.Snapshot(); s.Name != "" || s.Region != model.Unset {
		t.Errorf("edits applied after close: %+v", s)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{Idle: "idle", Loading: "loading", Loaded: "loaded", Failed: "failed"} {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
