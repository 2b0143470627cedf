// Package form holds the state of one point-creation session: the item catalog,
// region and locality pickers, the picked coordinate and the entered contact
// fields. Each asynchronous lookup resolves into its own slice of state, so a
// failure in one never blocks the others.
package form

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/erazemk/ecoleta/internal/model"
)

var (
	// ErrSubmitInProgress is returned when Submit is called while another
	// submission is still running.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrSubmitted is returned when the form was already submitted successfully.
	ErrSubmitted = errors.New("form already submitted")
	// ErrClosed is returned when Submit is called on a closed form.
	ErrClosed = errors.New("form closed")
)

// Catalog lists items and stores new points.
type Catalog interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	CreatePoint(ctx context.Context, in model.PointInput) (*model.Point, error)
}

// Geography resolves region codes and their localities.
type Geography interface {
	Regions(ctx context.Context) ([]string, error)
	Localities(ctx context.Context, region string) ([]string, error)
}

// Locator reports the device position once.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (Position, error) { return f(ctx) }

// Status is the lifecycle of an asynchronous slice.
type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Slice is one independently resolving piece of state.
type Slice[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Position is a latitude/longitude pair.
type Position struct {
	Lat float64
	Lng float64
}

// Source tells where the current position came from.
type Source int

const (
	SourceNone Source = iota
	SourcePlatform
	SourceUser
)

// State is a point-in-time copy of the form.
type State struct {
	Items      Slice[[]model.Item]
	Regions    Slice[[]string]
	Localities Slice[[]string]

	Position       Position
	PositionSource Source

	SelectedItems []int64

	Name     string
	Email    string
	Whatsapp string
	Region   string
	Locality string

	Submitting bool
	Submitted  bool
	Closed     bool
	LastError  error
}

// Options tunes a Form.
type Options struct {
	// OnSubmitted runs after a successful submission, before the form closes.
	OnSubmitted func(*model.Point)
}

// Form is a single point-creation session. All methods are safe for concurrent
// use.
type Form struct {
	catalog     Catalog
	geo         Geography
	locator     Locator
	onSubmitted func(*model.Point)

	ctx    context.Context
	cancel context.CancelFunc
	mount  sync.Once
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	localityGen uint64
}

// New creates a form. locator may be nil when no platform position is available.
func New(catalog Catalog, geo Geography, locator Locator, opts Options) *Form {
	ctx, cancel := context.WithCancel(context.Background())
	return &Form{
		catalog:     catalog,
		geo:         geo,
		locator:     locator,
		onSubmitted: opts.OnSubmitted,
		ctx:         ctx,
		cancel:      cancel,
		state: State{
			Region:        model.Unset,
			Locality:      model.Unset,
			SelectedItems: []int64{},
		},
	}
}

// Mount starts the item, region and position lookups. Only the first call has
// any effect.
func (f *Form) Mount() {
	f.mount.Do(func() {
		f.mu.Lock()
		if f.state.Closed {
			f.mu.Unlock()
			return
		}
		f.state.Items = Slice[[]model.Item]{Status: Loading}
		f.state.Regions = Slice[[]string]{Status: Loading}
		f.mu.Unlock()

		f.spawn(func(ctx context.Context) {
			items, err := f.catalog.ListItems(ctx)
			f.update(func(s *State) { s.Items = resolved(items, err) })
		})

		f.spawn(func(ctx context.Context) {
			regions, err := f.geo.Regions(ctx)
			f.update(func(s *State) { s.Regions = resolved(regions, err) })
		})

		if f.locator != nil {
			f.spawn(func(ctx context.Context) {
				pos, err := f.locator.Locate(ctx)
				if err != nil {
					return
				}
				f.update(func(s *State) {
					// A map click always beats the platform.
					if s.PositionSource == SourceUser {
						return
					}
					s.Position = pos
					s.PositionSource = SourcePlatform
				})
			})
		}
	})
}

// Close abandons the session. Lookups still in flight are cancelled and their
// results ignored.
func (f *Form) Close() {
	f.mu.Lock()
	f.state.Closed = true
	f.mu.Unlock()
	f.cancel()
}

// Wait blocks until every lookup started so far has finished.
func (f *Form) Wait() {
	f.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (f *Form) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.state
	s.Items.Value = slices.Clone(s.Items.Value)
	s.Regions.Value = slices.Clone(s.Regions.Value)
	s.Localities.Value = slices.Clone(s.Localities.Value)
	s.SelectedItems = slices.Clone(s.SelectedItems)
	return s
}

// SetName sets the entity name.
func (f *Form) SetName(v string) { f.update(func(s *State) { s.Name = v }) }

// SetEmail sets the contact e-mail.
func (f *Form) SetEmail(v string) { f.update(func(s *State) { s.Email = v }) }

// SetWhatsapp sets the contact phone number.
func (f *Form) SetWhatsapp(v string) { f.update(func(s *State) { s.Whatsapp = v }) }

// SelectLocality sets the chosen locality.
func (f *Form) SelectLocality(v string) { f.update(func(s *State) { s.Locality = v }) }

// SelectRegion changes the chosen region. Picking a new region resets the
// locality and fetches the region's localities; any fetch for a previous region
// is superseded. Resetting to the unset value clears the localities without a
// fetch.
func (f *Form) SelectRegion(region string) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = model.Unset
	}

	f.mu.Lock()
	if f.state.Closed || region == f.state.Region {
		f.mu.Unlock()
		return
	}

	f.state.Region = region
	f.state.Locality = model.Unset
	f.localityGen++
	gen := f.localityGen

	if model.IsUnset(region) {
		f.state.Localities = Slice[[]string]{Status: Idle}
		f.mu.Unlock()
		return
	}
	f.state.Localities = Slice[[]string]{Status: Loading}
	f.mu.Unlock()

	f.spawn(func(ctx context.Context) {
		localities, err := f.geo.Localities(ctx, region)
		f.update(func(s *State) {
			if gen != f.localityGen {
				return
			}
			s.Localities = resolved(localities, err)
		})
	})
}

// ClickMap moves the marker to a user-picked coordinate.
func (f *Form) ClickMap(lat, lng float64) {
	f.update(func(s *State) {
		s.Position = Position{Lat: lat, Lng: lng}
		s.PositionSource = SourceUser
	})
}

// ToggleItem adds id to the selection if absent and removes it if present.
func (f *Form) ToggleItem(id int64) {
	f.update(func(s *State) {
		if i := slices.Index(s.SelectedItems, id); i >= 0 {
			s.SelectedItems = slices.Delete(s.SelectedItems, i, i+1)
			return
		}
		s.SelectedItems = append(s.SelectedItems, id)
	})
}

// Payload flattens the current state into a submission.
func (f *Form) Payload() model.PointInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload()
}

func (f *Form) payload() model.PointInput {
	s := &f.state
	in := model.PointInput{
		Name:     s.Name,
		Email:    s.Email,
		Whatsapp: s.Whatsapp,
		UF:       s.Region,
		City:     s.Locality,
		Items:    slices.Clone(s.SelectedItems),
	}
	if s.PositionSource != SourceNone {
		lat, lng := s.Position.Lat, s.Position.Lng
		in.Latitude = &lat
		in.Longitude = &lng
	}
	return in
}

// Submit sends the draft as one CreatePoint call. On success the OnSubmitted
// hook runs and the form closes. On failure the draft is kept, the error is
// recorded as LastError and Submit may be called again.
func (f *Form) Submit(ctx context.Context) (*model.Point, error) {
	f.mu.Lock()
	switch {
	case f.state.Submitted:
		f.mu.Unlock()
		return nil, ErrSubmitted
	case f.state.Closed:
		f.mu.Unlock()
		return nil, ErrClosed
	case f.state.Submitting:
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	f.state.Submitting = true
	in := f.payload()
	f.mu.Unlock()

	point, err := f.catalog.CreatePoint(ctx, in)

	f.mu.Lock()
	f.state.Submitting = false
	if err != nil {
		f.state.LastError = err
		f.mu.Unlock()
		return nil, err
	}
	f.state.Submitted = true
	f.state.LastError = nil
	f.mu.Unlock()

	if f.onSubmitted != nil {
		f.onSubmitted(point)
	}
	f.Close()
	return point, nil
}

// spawn runs fn on its own goroutine, tied to the form's lifetime.
func (f *Form) spawn(fn func(ctx context.Context)) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn(f.ctx)
	}()
}

// update applies fn under the lock unless the form is closed.
func (f *Form) update(fn func(s *State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Closed {
		return
	}
	fn(&f.state)
}

func resolved[T any](v T, err error) Slice[T] {
	if err != nil {
		return Slice[T]{Status: Failed, Err: err}
	}
	return Slice[T]{Status: Loaded, Value: v}
}
