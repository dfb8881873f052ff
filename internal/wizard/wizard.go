// Package wizard implements the listing wizard: it owns the form snapshot,
// the attachment managers and the current step, gates forward navigation
// on step validation, applies the category-change policy, and assembles
// the payload handed to a persistence collaborator.
//
// A Wizard is single-owner state. It performs no locking; callers that
// share one across goroutines (the session manager) serialize access and
// use BeginSubmit/FinishSubmit to avoid holding a lock across network I/O.
package wizard

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/form"
	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/validate"
)

var (
	// ErrSubmitting is returned by mutating operations while a submission
	// is in flight.
	ErrSubmitting = errors.New("submission in progress")
	// ErrUnknownAmenity is returned when toggling an id the catalog does
	// not list.
	ErrUnknownAmenity = errors.New("unknown amenity")
	// ErrReservedField is returned when an update names a payload key that
	// is managed by a collector or attachment list.
	ErrReservedField = errors.New("reserved field")
	// ErrContract is returned when an assembled payload does not match the
	// outbound schema.
	ErrContract = errors.New("payload contract")
)

// Catalog is the read-only catalog view the wizard consults.
type Catalog interface {
	validate.Schema
	IsCategoryField(name string) bool
	Amenity(id string) (types.Amenity, bool)
}

// Phase is the submission lifecycle state.
type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)

var reservedFields = []string{"images", "documents", "amenities", "nearbyPlaces", "geohash", "propertyId"}

// Transition is the outcome of a navigation attempt.
type Transition struct {
	Step        validate.Step     `json:"step"`
	Advanced    bool              `json:"advanced"`
	ScrollToTop bool              `json:"scrollToTop"`
	Errors      map[string]string `json:"errors,omitempty"`
	Toast       string            `json:"toast,omitempty"`
}

// Wizard is one listing being created or edited.
type Wizard struct {
	id         string
	catalog    Catalog
	validator  *validate.Validator
	previews   *attachment.Previews
	snap       *form.Snapshot
	images     *attachment.Images
	docs       *attachment.Documents
	step       validate.Step
	result     validate.Result
	phase      Phase
	propertyID string
	createdAt  time.Time
}

type options struct {
	id       string
	now      func() time.Time
	previews *attachment.Previews
	maxSize  int64
}

// Option configures a Wizard.
type Option func(*options)

// WithID fixes the wizard id instead of generating one.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// WithClock injects the clock used by validation and timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithPreviews shares a preview store between wizards.
func WithPreviews(p *attachment.Previews) Option { return func(o *options) { o.previews = p } }

// WithMaxUploadSize sets the per-file upload ceiling in bytes.
func WithMaxUploadSize(n int64) Option { return func(o *options) { o.maxSize = n } }

// New returns an empty wizard positioned on the first step.
func New(cat Catalog, opts ...Option) *Wizard {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.New().String()
	}
	if o.previews == nil {
		o.previews = attachment.NewPreviews()
	}
	w := &Wizard{
		id:        o.id,
		catalog:   cat,
		validator: validate.New(cat, validate.WithClock(o.now)),
		previews:  o.previews,
		snap:      form.NewSnapshot(),
		images:    attachment.NewImages(o.previews, o.maxSize),
		docs:      attachment.NewDocuments(o.maxSize),
		step:      validate.StepBasic,
		phase:     PhaseEditing,
		createdAt: o.now(),
	}
	w.revalidate()
	return w
}

// ID returns the wizard id.
func (w *Wizard) ID() string { return w.id }

// Step returns the current step.
func (w *Wizard) Step() validate.Step { return w.step }

// Phase returns the submission phase.
func (w *Wizard) Phase() Phase { return w.phase }

// PropertyID returns the id of the listing being edited, or "" in create mode.
func (w *Wizard) PropertyID() string { return w.propertyID }

// CreatedAt returns when the wizard was created.
func (w *Wizard) CreatedAt() time.Time { return w.createdAt }

// Snapshot returns an independent copy of the form snapshot.
func (w *Wizard) Snapshot() *form.Snapshot { return w.snap.Clone() }

// Result returns the validation state of the current step.
func (w *Wizard) Result() validate.Result { return w.result }

// Images returns the image list in order.
func (w *Wizard) Images() []types.ImageAttachment { return w.images.List() }

// Documents returns the document list in order.
func (w *Wizard) Documents() []types.DocumentAttachment { return w.docs.List() }

// Plan returns the render plan of the details step for the current snapshot.
func (w *Wizard) Plan() []form.Field { return form.Plan(w.catalog, w.snap) }

// Update merges partial into the snapshot. A nil value clears a field. When
// the property type or sub-type changes, every category field that is not
// part of the new category is removed; the purged names are returned.
func (w *Wizard) Update(partial map[string]any) ([]string, error) {
	if err := w.editable(); err != nil {
		return nil, err
	}
	for k := range partial {
		if slices.Contains(reservedFields, k) {
			return nil, fmt.Errorf("%w: %s", ErrReservedField, k)
		}
	}

	oldType, oldSub := w.snap.PropertyType(), w.snap.SubType()
	for k, v := range partial {
		w.snap.Set(k, v)
	}

	var purged []string
	if w.snap.PropertyType() != oldType || w.snap.SubType() != oldSub {
		purged = w.purgeCategoryFields()
	}
	w.revalidate()
	return purged, nil
}

func (w *Wizard) purgeCategoryFields() []string {
	keep := make(map[string]bool)
	for _, name := range w.catalog.Resolve(w.snap.PropertyType(), w.snap.SubType()) {
		keep[name] = true
	}
	var purged []string
	for _, name := range w.snap.Keys() {
		if w.catalog.IsCategoryField(name) && !keep[name] {
			w.snap.Delete(name)
			purged = append(purged, name)
		}
	}
	return purged
}

// Touch marks fields as interacted with so their errors become visible.
func (w *Wizard) Touch(fields ...string) {
	w.result.Touch(fields...)
}

// Next validates the current step and advances when it passes. On failure
// the step's fields are marked touched and the errors are returned with a
// summary toast.
func (w *Wizard) Next() (Transition, error) {
	if err := w.editable(); err != nil {
		return Transition{}, err
	}
	r := w.validator.Step(w.step, w.snap, w.images.List())
	if !r.IsValid() {
		w.result.Errors = r.Errors
		w.result.Touch(w.validator.Fields(w.step, w.snap)...)
		w.result.Touch(r.Fields()...)
		return Transition{Step: w.step, Errors: w.result.Visible(), Toast: r.Toast()}, nil
	}
	moved := int(w.step) < validate.StepCount-1
	if moved {
		w.step++
	}
	w.revalidate()
	return Transition{Step: w.step, Advanced: moved, ScrollToTop: moved}, nil
}

// Back moves to the previous step without validating.
func (w *Wizard) Back() (Transition, error) {
	if err := w.editable(); err != nil {
		return Transition{}, err
	}
	moved := w.step > validate.StepBasic
	if moved {
		w.step--
	}
	w.revalidate()
	return Transition{Step: w.step, ScrollToTop: moved}, nil
}

// ToggleAmenity flips the selection of a catalog amenity.
func (w *Wizard) ToggleAmenity(id string) (bool, error) {
	if err := w.editable(); err != nil {
		return false, err
	}
	if _, ok := w.catalog.Amenity(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAmenity, id)
	}
	on := w.snap.Amenities.Toggle(id)
	w.revalidate()
	return on, nil
}

// AddNearbyPlace appends a nearby place and returns its index.
func (w *Wizard) AddNearbyPlace(p types.NearbyPlace) (int, error) {
	if err := w.editable(); err != nil {
		return -1, err
	}
	i := w.snap.NearbyPlaces.Add(p)
	w.revalidate()
	return i, nil
}

// EditNearbyPlace replaces the nearby place at index i.
func (w *Wizard) EditNearbyPlace(i int, p types.NearbyPlace) error {
	return w.mutate(func() error { return w.snap.NearbyPlaces.Edit(i, p) })
}

// RemoveNearbyPlace deletes the nearby place at index i.
func (w *Wizard) RemoveNearbyPlace(i int) error {
	return w.mutate(func() error { return w.snap.NearbyPlaces.Remove(i) })
}

// UploadImages adds image files; rejected files are reported per file.
func (w *Wizard) UploadImages(files []*types.File) ([]attachment.IntakeError, error) {
	if err := w.editable(); err != nil {
		return nil, err
	}
	rejected := w.images.Upload(files)
	w.revalidate()
	return rejected, nil
}

// RemoveImage deletes the image at index i.
func (w *Wizard) RemoveImage(i int) error {
	return w.mutate(func() error { return w.images.Remove(i) })
}

// SetCoverImage makes the image at index i the cover.
func (w *Wizard) SetCoverImage(i int) error {
	return w.mutate(func() error { return w.images.SetCover(i) })
}

// UpdateImageCaption sets the caption of the image at index i.
func (w *Wizard) UpdateImageCaption(i int, caption string) error {
	return w.mutate(func() error { return w.images.UpdateCaption(i, caption) })
}

// SetFloorPlan flags the image at index i as a floor plan.
func (w *Wizard) SetFloorPlan(i int, floorPlan bool) error {
	return w.mutate(func() error { return w.images.SetFloorPlan(i, floorPlan) })
}

// MoveImage reorders the image list.
func (w *Wizard) MoveImage(from, to int) error {
	return w.mutate(func() error { return w.images.Move(from, to) })
}

// UploadDocuments adds document files; rejected files are reported per file.
func (w *Wizard) UploadDocuments(files []*types.File) ([]attachment.IntakeError, error) {
	if err := w.editable(); err != nil {
		return nil, err
	}
	return w.docs.Upload(files), nil
}

// RemoveDocument deletes the document at index i.
func (w *Wizard) RemoveDocument(i int) error {
	return w.mutate(func() error { return w.docs.Remove(i) })
}

// Close releases every preview held by the wizard.
func (w *Wizard) Close() {
	w.images.Close()
}

func (w *Wizard) mutate(fn func() error) error {
	if err := w.editable(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	w.revalidate()
	return nil
}

func (w *Wizard) editable() error {
	if w.phase == PhaseSubmitting {
		return ErrSubmitting
	}
	return nil
}

// revalidate recomputes the current step's errors, keeping the touched set.
func (w *Wizard) revalidate() {
	r := w.validator.Step(w.step, w.snap, w.images.List())
	r.Touched = w.result.Touched
	if r.Touched == nil {
		r.Touched = make(map[string]bool)
	}
	w.result = r
}
