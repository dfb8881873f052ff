// Package validate implements the per-step rules of the listing wizard.
// Validation is pure: it reads a snapshot and the image list, never mutates
// them, and returns the same result for the same input and clock.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matthewbaird/listingform/internal/form"
	"github.com/matthewbaird/listingform/internal/types"
)

// Step identifies one wizard step.
type Step int

const (
	StepBasic Step = iota
	StepLocation
	StepDetails
	StepAmenities
	StepNearbyPlaces
	StepMedia
	StepDocuments
)

// StepCount is the number of wizard steps.
const StepCount = 7

var stepNames = [StepCount]string{
	"basic", "location", "details", "amenities", "nearby-places", "media", "documents",
}

func (s Step) String() string {
	if s < 0 || int(s) >= StepCount {
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
	return stepNames[s]
}

// Valid reports whether s addresses a wizard step.
func (s Step) Valid() bool {
	return s >= 0 && int(s) < StepCount
}

// Schema is the catalog view validation needs.
type Schema interface {
	form.Schema
	HasCategory(propertyType, subType string) bool
}

// Bounds used by the step rules.
const (
	TitleMin       = 10
	TitleMax       = 200
	DescriptionMin = 50
	DescriptionMax = 5000
	AreaMax        = 1_000_000
	YearBuiltMin   = 1800
	MinImages      = 3
)

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/(watch\?v=|embed/|shorts/|live/)|youtu\.be/)[\w-]{11}([?&#].*)?$`)

// Validator applies the step rules against a catalog.
type Validator struct {
	schema Schema
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock injects the time source used for the year-built ceiling.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New returns a Validator over schema.
func New(schema Schema, opts ...Option) *Validator {
	v := &Validator{schema: schema, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Step validates one step. An out-of-range step validates trivially.
func (v *Validator) Step(step Step, snap *form.Snapshot, images []types.ImageAttachment) Result {
	r := newResult()
	switch step {
	case StepBasic:
		v.basic(r, snap)
	case StepLocation:
		v.location(r, snap)
	case StepDetails:
		v.details(r, snap)
	case StepAmenities:
		if snap.Amenities.Len() == 0 {
			r.set("amenities", "Please select at least one amenity")
		}
	case StepNearbyPlaces:
		for i, p := range snap.NearbyPlaces.List() {
			if strings.TrimSpace(p.Name) == "" {
				r.set(fmt.Sprintf("nearbyPlaces.%d.name", i), "Place name is required")
			}
		}
	case StepMedia:
		v.media(r, snap, images)
	case StepDocuments:
	}
	return r
}

// All validates every step in order and stops at the first failure, which
// it returns together with its result. ok is true when every step passes.
func (v *Validator) All(snap *form.Snapshot, images []types.ImageAttachment) (Step, Result, bool) {
	for s := StepBasic; int(s) < StepCount; s++ {
		if r := v.Step(s, snap, images); !r.IsValid() {
			return s, r, false
		}
	}
	return StepDocuments, newResult(), true
}

// Fields returns the field names a step owns, used to mark them touched
// when the user tries to leave the step.
func (v *Validator) Fields(step Step, snap *form.Snapshot) []string {
	switch step {
	case StepBasic:
		return []string{"title", "description", "price", "listingType"}
	case StepLocation:
		return []string{"address", "city", "locality", "state", "pincode", "latitude", "longitude"}
	case StepDetails:
		return append([]string{form.KeyPropertyTypeID, form.KeySubTypeID}, form.VisibleFields(v.schema, snap)...)
	case StepAmenities:
		return []string{"amenities"}
	case StepNearbyPlaces:
		out := make([]string, 0, snap.NearbyPlaces.Len())
		for i := range snap.NearbyPlaces.List() {
			out = append(out, fmt.Sprintf("nearbyPlaces.%d.name", i))
		}
		return out
	case StepMedia:
		return []string{"images", "videoUrl", "virtualTourUrl"}
	}
	return nil
}

func (v *Validator) basic(r Result, snap *form.Snapshot) {
	lengthRule(r, snap, "title", "Title", TitleMin, TitleMax)
	lengthRule(r, snap, "description", "Description", DescriptionMin, DescriptionMax)

	price, ok := snap.Number("price")
	switch {
	case !ok:
		if _, present := snap.Get("price"); present {
			r.set("price", "Price must be a number")
		} else {
			r.set("price", "Price is required")
		}
	case price <= 0:
		r.set("price", "Price must be greater than 0")
	}
}

func lengthRule(r Result, snap *form.Snapshot, field, label string, lo, hi int) {
	if v, ok := snap.Get(field); ok && v != nil {
		if _, isString := v.(string); !isString {
			r.set(field, label+" must be text")
			return
		}
	}
	s := snap.String(field)
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		r.set(field, label+" is required")
	case n < lo:
		r.set(field, fmt.Sprintf("%s must be at least %d characters", label, lo))
	case n > hi:
		r.set(field, fmt.Sprintf("%s must be at most %d characters", label, hi))
	}
}

func (v *Validator) location(r Result, snap *form.Snapshot) {
	if snap.String("address") == "" {
		r.set("address", "Address is required")
	}
	if snap.String("city") == "" {
		r.set("city", "City is required")
	}
	coordinate(r, snap, "latitude", "Latitude", 90)
	coordinate(r, snap, "longitude", "Longitude", 180)
}

func coordinate(r Result, snap *form.Snapshot, field, label string, limit float64) {
	n, ok := snap.Number(field)
	switch {
	case !ok:
		r.set(field, "Please pick the property location on the map")
	case n < -limit || n > limit:
		r.set(field, fmt.Sprintf("%s must be between %g and %g", label, -limit, limit))
	}
}

func (v *Validator) details(r Result, snap *form.Snapshot) {
	pt, st := snap.PropertyType(), snap.SubType()
	if pt == "" {
		r.set(form.KeyPropertyTypeID, "Property type is required")
	}
	if st == "" {
		r.set(form.KeySubTypeID, "Sub-type is required")
	}
	if pt != "" && st != "" && !v.schema.HasCategory(pt, st) {
		r.set(form.KeySubTypeID, "Please select a valid property sub-type")
	}

	for _, f := range []struct{ name, label string }{{"bedrooms", "Bedrooms"}, {"bathrooms", "Bathrooms"}} {
		if n, ok := number(r, snap, f.name, f.label); ok && n < 0 {
			r.set(f.name, f.label+" cannot be negative")
		}
	}
	if n, ok := number(r, snap, "area", "Area"); ok {
		switch {
		case n <= 0:
			r.set("area", "Area must be greater than 0")
		case n > AreaMax:
			r.set("area", "Area must be at most 1,000,000")
		}
	}
	if n, ok := number(r, snap, "yearBuilt", "Year built"); ok {
		ceiling := v.now().Year() + 5
		if n < YearBuiltMin || n > float64(ceiling) {
			r.set("yearBuilt", fmt.Sprintf("Year built must be between %d and %d", YearBuiltMin, ceiling))
		}
	}

	for _, name := range form.VisibleFields(v.schema, snap) {
		meta, ok := v.schema.Field(name)
		if !ok {
			continue
		}
		label := meta.Label
		if label == "" {
			label = form.DeriveLabel(name)
		}
		val, present := snap.Get(name)
		if meta.Required && (!present || form.IsEmpty(val)) {
			r.set(name, label+" is required")
			continue
		}
		if !meta.Type.Numeric() {
			continue
		}
		if n, ok := number(r, snap, name, label); ok && meta.Min != nil && n < *meta.Min {
			r.set(name, fmt.Sprintf("%s must be at least %g", label, *meta.Min))
		}
	}
}

// number reads a numeric field. A filled-in value that does not parse is
// an error; an absent or blank one is left to the required rules.
func number(r Result, snap *form.Snapshot, field, label string) (float64, bool) {
	v, present := snap.Get(field)
	if !present || form.IsEmpty(v) {
		return 0, false
	}
	n, ok := form.ToNumber(v)
	if !ok {
		r.set(field, label+" must be a number")
	}
	return n, ok
}

func (v *Validator) media(r Result, snap *form.Snapshot, images []types.ImageAttachment) {
	covers := 0
	for _, img := range images {
		if img.IsCover {
			covers++
		}
	}
	switch {
	case len(images) == 0:
		r.set("images", "Please upload at least one image")
	case len(images) < MinImages:
		r.set("images", fmt.Sprintf("Please upload at least %d images", MinImages))
	case covers != 1:
		r.set("images", "Please select exactly one cover image")
	}

	if u := snap.String("videoUrl"); u != "" && !youtubeURL.MatchString(u) {
		r.set("videoUrl", "Please enter a valid YouTube URL")
	}
	if u := snap.String("virtualTourUrl"); u != "" && !absoluteHTTP(u) {
		r.set("virtualTourUrl", "Please enter a valid URL")
	}
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
