package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/form"
	"github.com/matthewbaird/listingform/internal/types"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func newValidator(t *testing.T) *Validator {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return New(cat, WithClock(fixedNow))
}

func snapshot(values map[string]any) *form.Snapshot {
	s := form.NewSnapshot()
	for k, v := range values {
		s.Set(k, v)
	}
	return s
}

func images(n, covers int) []types.ImageAttachment {
	out := make([]types.ImageAttachment, n)
	for i := range out {
		out[i] = types.ImageAttachment{URL: "https://cdn.example.com/" + string(rune('a'+i)), Order: i, IsCover: i < covers}
	}
	return out
}

func TestBasic_AllFieldsInvalid(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepBasic, snapshot(map[string]any{
		"title":       "",
		"description": "short",
		"price":       0,
	}), nil)

	assert.False(t, r.IsValid())
	assert.Equal(t, "Title is required", r.Errors["title"])
	assert.Equal(t, "Description must be at least 50 characters", r.Errors["description"])
	assert.Equal(t, "Price must be greater than 0", r.Errors["price"])
}

func TestBasic_Valid(t *testing.T) {
	v := newValidator(t)
	title := "Spacious 3BR Apartment Downtown"
	desc := strings.Repeat("Bright rooms, ", 6)[:80]
	require.Len(t, desc, 80)

	r := v.Step(StepBasic, snapshot(map[string]any{
		"title":       title,
		"description": desc,
		"price":       250000,
	}), nil)
	assert.True(t, r.IsValid())
	assert.Empty(t, r.Errors)
}

func TestBasic_Bounds(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepBasic, snapshot(map[string]any{
		"title":       strings.Repeat("x", TitleMax+1),
		"description": strings.Repeat("y", DescriptionMax+1),
		"price":       "abc",
	}), nil)
	assert.Equal(t, "Title must be at most 200 characters", r.Errors["title"])
	assert.Equal(t, "Description must be at most 5000 characters", r.Errors["description"])
	assert.Equal(t, "Price must be a number", r.Errors["price"])

	r = v.Step(StepBasic, snapshot(nil), nil)
	assert.Equal(t, "Price is required", r.Errors["price"])
	assert.Equal(t, "Title is required", r.Errors["title"])
}

func TestBasic_NonTextTitle(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepBasic, snapshot(map[string]any{
		"title":       12345678901,
		"description": strings.Repeat("y", 60),
		"price":       100,
	}), nil)
	assert.Equal(t, "Title must be text", r.Errors["title"])
	assert.NotContains(t, r.Errors, "description")
}

func TestLocation(t *testing.T) {
	v := newValidator(t)

	r := v.Step(StepLocation, snapshot(map[string]any{"address": "12 MG Road", "city": "Bengaluru", "latitude": 12.97}), nil)
	assert.False(t, r.IsValid())
	assert.Contains(t, r.Errors, "longitude")
	assert.NotContains(t, r.Errors, "latitude")

	r = v.Step(StepLocation, snapshot(map[string]any{"address": "12 MG Road", "city": "Bengaluru", "latitude": 95.0, "longitude": 77.59}), nil)
	assert.Equal(t, "Latitude must be between -90 and 90", r.Errors["latitude"])

	r = v.Step(StepLocation, snapshot(map[string]any{"address": "12 MG Road", "city": "Bengaluru", "latitude": 12.97, "longitude": 77.59}), nil)
	assert.True(t, r.IsValid())
}

func apartment(extra map[string]any) *form.Snapshot {
	values := map[string]any{
		form.KeyPropertyTypeName: "RESIDENTIAL",
		form.KeySubTypeName:      "APARTMENT",
		"bedrooms":               3,
		"bathrooms":              2,
		"area":                   map[string]any{"value": 1450.0, "unit": "sqft"},
		"furnishingStatus":       "Semi-Furnished",
		"possessionStatus":       "Ready to Move",
	}
	for k, val := range extra {
		values[k] = val
	}
	return snapshot(values)
}

func TestDetails_Valid(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepDetails, apartment(nil), nil)
	assert.True(t, r.IsValid(), r.Errors)
}

func TestDetails_TaxonomyRequired(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepDetails, snapshot(nil), nil)
	assert.Equal(t, "Property type is required", r.Errors[form.KeyPropertyTypeID])
	assert.Equal(t, "Sub-type is required", r.Errors[form.KeySubTypeID])

	r = v.Step(StepDetails, snapshot(map[string]any{form.KeyPropertyTypeName: "RESIDENTIAL", form.KeySubTypeName: "WAREHOUSE"}), nil)
	assert.Equal(t, "Please select a valid property sub-type", r.Errors[form.KeySubTypeID])
}

func TestDetails_NumericRules(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepDetails, apartment(map[string]any{
		"bedrooms":  -1,
		"area":      map[string]any{"value": 2_000_000.0, "unit": "sqft"},
		"yearBuilt": 2032,
	}), nil)
	assert.Equal(t, "Bedrooms cannot be negative", r.Errors["bedrooms"])
	assert.Equal(t, "Area must be at most 1,000,000", r.Errors["area"])
	assert.Equal(t, "Year built must be between 1800 and 2031", r.Errors["yearBuilt"])

	r = v.Step(StepDetails, apartment(map[string]any{"area": 0, "yearBuilt": 2031}), nil)
	assert.Equal(t, "Area must be greater than 0", r.Errors["area"])
	assert.NotContains(t, r.Errors, "yearBuilt")
}

func TestDetails_NonNumericValues(t *testing.T) {
	v := newValidator(t)
	r := v.Step(StepDetails, apartment(map[string]any{
		"bedrooms":  "three",
		"bathrooms": true,
		"area":      map[string]any{"value": "large", "unit": "sqft"},
		"yearBuilt": "nineteen-ninety",
	}), nil)
	assert.Equal(t, "Bedrooms must be a number", r.Errors["bedrooms"])
	assert.Equal(t, "Bathrooms must be a number", r.Errors["bathrooms"])
	assert.Equal(t, "Area must be a number", r.Errors["area"])
	assert.Equal(t, "Year built must be a number", r.Errors["yearBuilt"])

	r = v.Step(StepDetails, apartment(map[string]any{"yearBuilt": ""}), nil)
	assert.True(t, r.IsValid(), r.Errors)
}

func TestDetails_ConditionalRequired(t *testing.T) {
	v := newValidator(t)

	r := v.Step(StepDetails, apartment(map[string]any{"possessionStatus": "Under Construction"}), nil)
	assert.Contains(t, r.Errors, "possessionDate")

	r = v.Step(StepDetails, apartment(map[string]any{"possessionStatus": "Under Construction", "possessionDate": "2027-06-30"}), nil)
	assert.True(t, r.IsValid(), r.Errors)
}

func TestAmenitiesAndNearbyPlaces(t *testing.T) {
	v := newValidator(t)
	s := form.NewSnapshot()
	assert.Equal(t, "Please select at least one amenity", v.Step(StepAmenities, s, nil).Errors["amenities"])
	s.Amenities.Toggle("gym")
	assert.True(t, v.Step(StepAmenities, s, nil).IsValid())

	assert.True(t, v.Step(StepNearbyPlaces, s, nil).IsValid())
	s.NearbyPlaces.Add(types.NearbyPlace{Name: "Metro", Distance: "400m"})
	s.NearbyPlaces.Add(types.NearbyPlace{Name: "  ", Distance: "1km"})
	r := v.Step(StepNearbyPlaces, s, nil)
	assert.Equal(t, []string{"nearbyPlaces.1.name"}, r.Fields())
}

func TestMedia_ImageRules(t *testing.T) {
	v := newValidator(t)
	s := form.NewSnapshot()

	tests := []struct {
		name   string
		images []types.ImageAttachment
		want   string
	}{
		{"none", nil, "Please upload at least one image"},
		{"two with cover", images(2, 1), "Please upload at least 3 images"},
		{"no cover", images(3, 0), "Please select exactly one cover image"},
		{"two covers", images(4, 2), "Please select exactly one cover image"},
		{"ok", images(3, 1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Step(StepMedia, s, tt.images)
			assert.Equal(t, tt.want, r.Errors["images"])
		})
	}
}

func TestMedia_URLs(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		video, tour string
		videoOK     bool
		tourOK      bool
	}{
		{"", "", true, true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://my.matterport.com/show/?m=abc", true, true},
		{"https://youtu.be/dQw4w9WgXcQ", "http://tour.example.com", true, true},
		{"https://vimeo.com/123456", "tour.example.com", false, false},
		{"youtube.com/watch?v=short", "ftp://example.com/tour", false, false},
	}
	for _, tt := range tests {
		r := v.Step(StepMedia, snapshot(map[string]any{"videoUrl": tt.video, "virtualTourUrl": tt.tour}), images(3, 1))
		_, videoErr := r.Errors["videoUrl"]
		_, tourErr := r.Errors["virtualTourUrl"]
		assert.Equal(t, tt.videoOK, !videoErr, tt.video)
		assert.Equal(t, tt.tourOK, !tourErr, tt.tour)
	}
}

func TestDocuments_NeverBlocks(t *testing.T) {
	v := newValidator(t)
	assert.True(t, v.Step(StepDocuments, form.NewSnapshot(), nil).IsValid())
}

func TestStep_IsPure(t *testing.T) {
	v := newValidator(t)
	s := apartment(map[string]any{"title": "short", "possessionStatus": "Under Construction"})
	imgs := images(2, 1)
	before := s.Clone()

	for step := StepBasic; int(step) < StepCount; step++ {
		first := v.Step(step, s, imgs)
		second := v.Step(step, s, imgs)
		assert.Equal(t, first, second, step.String())
	}
	assert.Equal(t, before.Values(), s.Values())
	assert.Equal(t, images(2, 1), imgs)
}

func TestAll_StopsAtFirstFailure(t *testing.T) {
	v := newValidator(t)
	s := apartment(map[string]any{
		"title":       "Spacious 3BR Apartment Downtown",
		"description": strings.Repeat("d", 60),
		"price":       250000,
	})
	step, r, ok := v.All(s, nil)
	assert.False(t, ok)
	assert.Equal(t, StepLocation, step)
	assert.Contains(t, r.Errors, "address")
}

func TestResult_VisibleAndToast(t *testing.T) {
	r := newResult()
	r.set("title", "Title is required")
	r.set("title", "ignored")
	r.set("price", "Price is required")
	assert.Equal(t, "Title is required", r.Errors["title"])
	assert.Empty(t, r.Visible())

	r.Touch("title")
	assert.Equal(t, map[string]string{"title": "Title is required"}, r.Visible())
	assert.Equal(t, "Price is required; Title is required", r.Toast())

	single := newResult()
	single.set("price", "Price is required")
	assert.Equal(t, "Price is required", single.Toast())
	assert.Equal(t, "", newResult().Toast())
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "media", StepMedia.String())
	assert.Equal(t, "step(9)", Step(9).String())
	assert.False(t, Step(-1).Valid())
}
