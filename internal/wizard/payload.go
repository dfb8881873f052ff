package wizard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mmcloughlin/geohash"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/matthewbaird/listingform/internal/form"
	"github.com/matthewbaird/listingform/internal/types"
)

// ImageRef is one image entry of the outbound payload. Entries without a
// URL refer, in order, to the files in Payload.ImageFiles.
type ImageRef struct {
	URL         string `json:"url,omitempty"`
	Key         string `json:"key,omitempty"`
	Caption     string `json:"caption,omitempty"`
	IsFloorPlan bool   `json:"isFloorPlan"`
	Order       int    `json:"order"`
	IsCover     bool   `json:"isCover"`
}

// DocumentRef is one document entry of the outbound payload.
type DocumentRef struct {
	URL  string `json:"url,omitempty"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// PlaceRef is one nearby-place entry of the outbound payload.
type PlaceRef struct {
	Name     string `json:"name"`
	Distance string `json:"distance"`
	Category string `json:"category"`
}

// Payload is the assembled listing handed to a Submitter. Its JSON form is
// the flat object the persistence collaborators expect; file bodies travel
// separately as the "images" and "documents" upload streams.
type Payload struct {
	PropertyID   string
	Fields       map[string]any
	Images       []ImageRef
	Documents    []DocumentRef
	Amenities    []string
	NearbyPlaces []PlaceRef
	Geohash      string

	ImageFiles    []*types.File
	DocumentFiles []*types.File
}

// Update reports whether the payload targets an existing listing.
func (p *Payload) Update() bool {
	return p.PropertyID != ""
}

// MarshalJSON flattens Fields into the top-level object next to the
// structured collections.
func (p *Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+7)
	for k, v := range p.Fields {
		out[k] = v
	}
	out["images"] = nonNil(p.Images)
	out["documents"] = nonNil(p.Documents)
	out["amenities"] = nonNil(p.Amenities)
	out["nearbyPlaces"] = nonNil(p.NearbyPlaces)
	if p.Geohash != "" {
		out["geohash"] = p.Geohash
	}
	if p.PropertyID != "" {
		out["propertyId"] = p.PropertyID
	}
	return json.Marshal(out)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// geohashPrecision gives roughly 150m cells.
const geohashPrecision = 7

func assemble(propertyID string, snap *form.Snapshot, images []types.ImageAttachment, docs []types.DocumentAttachment) *Payload {
	p := &Payload{
		PropertyID: propertyID,
		Fields:     normalizeFields(snap.Values()),
		Amenities:  snap.Amenities.IDs(),
	}
	for _, img := range images {
		p.Images = append(p.Images, ImageRef{
			URL:         img.URL,
			Key:         img.Key,
			Caption:     img.Caption,
			IsFloorPlan: img.IsFloorPlan,
			Order:       img.Order,
			IsCover:     img.IsCover,
		})
		if img.File != nil {
			p.ImageFiles = append(p.ImageFiles, img.File)
		}
	}
	for _, d := range docs {
		p.Documents = append(p.Documents, DocumentRef{URL: d.URL, Name: d.Name, Type: d.Type, Size: d.Size})
		if d.File != nil {
			p.DocumentFiles = append(p.DocumentFiles, d.File)
		}
	}
	for _, np := range snap.NearbyPlaces.List() {
		p.NearbyPlaces = append(p.NearbyPlaces, PlaceRef{Name: np.Name, Distance: np.Distance, Category: np.Category})
	}
	lat, okLat := snap.Number("latitude")
	lng, okLng := snap.Number("longitude")
	if okLat && okLng {
		p.Geohash = geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
	}
	return p
}

// numericFields are sent as plain numbers whatever shape the client used.
var numericFields = []string{"price", "latitude", "longitude"}

// normalizeFields trims string values and flattens the top-level numeric
// fields, so the payload carries what validation measured.
func normalizeFields(fields map[string]any) map[string]any {
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = strings.TrimSpace(s)
		}
	}
	for _, k := range numericFields {
		if n, ok := form.ToNumber(fields[k]); ok {
			fields[k] = n
		}
	}
	return fields
}

//go:embed payload.schema.json
var payloadSchemaJSON []byte

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource("payload.schema.json", bytes.NewReader(payloadSchemaJSON)); err != nil {
			payloadSchemaErr = fmt.Errorf("add payload schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile("payload.schema.json")
	})
	return payloadSchema, payloadSchemaErr
}

// CheckContract validates the JSON form of p against the outbound payload
// schema.
func CheckContract(p *Payload) error {
	schema, err := compiledPayloadSchema()
	if err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrContract, err)
	}
	return nil
}
