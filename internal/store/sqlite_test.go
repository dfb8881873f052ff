package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/wizard"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePayload() *wizard.Payload {
	return &wizard.Payload{
		Fields: map[string]any{
			"title":       "Spacious 3BR Apartment Downtown",
			"price":       250000.0,
			"subTypeName": "APARTMENT",
		},
		Images: []wizard.ImageRef{
			{Order: 0, IsCover: true, Caption: "Front"},
			{Order: 1},
		},
		ImageFiles: []*types.File{
			{Name: "a.jpg", Type: "image/jpeg", Size: 3, Content: []byte("aaa")},
			{Name: "b.jpg", Type: "image/jpeg", Size: 3, Content: []byte("bbb")},
		},
		Documents:     []wizard.DocumentRef{{Name: "deed.pdf", Type: "application/pdf", Size: 4}},
		DocumentFiles: []*types.File{{Name: "deed.pdf", Type: "application/pdf", Size: 4, Content: []byte("%PDF")}},
		Amenities:     []string{"gym", "lift"},
		NearbyPlaces:  []wizard.PlaceRef{{Name: "Metro", Distance: "400m", Category: "Transit"}},
		Geohash:       "tdr1v9q",
	}
}

func TestSubmit_CreateThenGet(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	rec, err := s.Submit(ctx, samplePayload())
	require.NoError(t, err)
	assert.True(t, rec.Created)
	require.NotEmpty(t, rec.PropertyID)

	got, err := s.Get(ctx, rec.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, "Spacious 3BR Apartment Downtown", got.Fields["title"])
	assert.Equal(t, 250000.0, got.Fields["price"])
	assert.Equal(t, []string{"gym", "lift"}, got.Amenities)
	require.Len(t, got.NearbyPlaces, 1)
	assert.Equal(t, "Metro", got.NearbyPlaces[0].Name)

	require.Len(t, got.Images, 2)
	assert.True(t, got.Images[0].IsCover)
	assert.Equal(t, "Front", got.Images[0].Caption)
	assert.Equal(t, MediaPrefix+got.Images[0].Key, got.Images[0].URL)

	ct, body, err := s.Media(ctx, got.Images[1].Key)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, []byte("bbb"), body)

	require.Len(t, got.Documents, 1)
	assert.Equal(t, "deed.pdf", got.Documents[0].Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSubmit_UpdateKeepsPersistedMedia(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	rec, err := s.Submit(ctx, samplePayload())
	require.NoError(t, err)
	stored, err := s.Get(ctx, rec.PropertyID)
	require.NoError(t, err)

	// Drop the first image, make the second the cover, add one new file.
	kept := stored.Images[1]
	p := &wizard.Payload{
		PropertyID: rec.PropertyID,
		Fields:     map[string]any{"title": "Renovated 3BR Apartment Downtown"},
		Images: []wizard.ImageRef{
			{URL: kept.URL, Key: kept.Key, Order: 0, IsCover: true},
			{Order: 1},
		},
		ImageFiles: []*types.File{{Name: "c.jpg", Type: "image/jpeg", Size: 3, Content: []byte("ccc")}},
		Documents:  []wizard.DocumentRef{{URL: stored.Documents[0].URL, Name: "deed.pdf", Type: "application/pdf", Size: 4}},
	}
	upd, err := s.Submit(ctx, p)
	require.NoError(t, err)
	assert.False(t, upd.Created)
	assert.Equal(t, rec.PropertyID, upd.PropertyID)

	got, err := s.Get(ctx, rec.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, "Renovated 3BR Apartment Downtown", got.Fields["title"])
	require.Len(t, got.Images, 2)
	assert.Equal(t, kept.Key, got.Images[0].Key)
	assert.True(t, got.Images[0].IsCover)
	assert.False(t, got.Images[1].IsCover)
	assert.Len(t, got.Documents, 1)
	assert.Empty(t, got.Amenities)

	_, _, err = s.Media(ctx, stored.Images[0].Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmit_UpdateUnknownListing(t *testing.T) {
	s := openTestDB(t)
	_, err := s.Submit(context.Background(), &wizard.Payload{PropertyID: "missing", Fields: map[string]any{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestDB(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmit_ImageWithoutFile(t *testing.T) {
	s := openTestDB(t)
	p := samplePayload()
	p.ImageFiles = p.ImageFiles[:1]
	_, err := s.Submit(context.Background(), p)
	assert.Error(t, err)
}
