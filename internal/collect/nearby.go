package collect

import (
	"errors"
	"strings"

	"github.com/matthewbaird/listingform/internal/types"
)

// ErrIndexOutOfRange is returned when a list index does not address an entry.
var ErrIndexOutOfRange = errors.New("index out of range")

// NearbyPlaces is the free-form list of points of interest. Entries carry
// no uniqueness constraint.
type NearbyPlaces struct {
	places []types.NearbyPlace
}

// Add appends a place and returns its index.
func (n *NearbyPlaces) Add(p types.NearbyPlace) int {
	n.places = append(n.places, clean(p))
	return len(n.places) - 1
}

// Edit replaces the place at index i.
func (n *NearbyPlaces) Edit(i int, p types.NearbyPlace) error {
	if i < 0 || i >= len(n.places) {
		return ErrIndexOutOfRange
	}
	n.places[i] = clean(p)
	return nil
}

// Remove deletes the place at index i.
func (n *NearbyPlaces) Remove(i int) error {
	if i < 0 || i >= len(n.places) {
		return ErrIndexOutOfRange
	}
	n.places = append(n.places[:i], n.places[i+1:]...)
	return nil
}

// Len returns the number of places.
func (n *NearbyPlaces) Len() int {
	return len(n.places)
}

// List returns a copy of the places in order.
func (n *NearbyPlaces) List() []types.NearbyPlace {
	out := make([]types.NearbyPlace, len(n.places))
	copy(out, n.places)
	return out
}

// Set replaces the whole list.
func (n *NearbyPlaces) Set(places []types.NearbyPlace) {
	n.places = make([]types.NearbyPlace, 0, len(places))
	for _, p := range places {
		n.places = append(n.places, clean(p))
	}
}

func clean(p types.NearbyPlace) types.NearbyPlace {
	p.Name = strings.TrimSpace(p.Name)
	p.Distance = strings.TrimSpace(p.Distance)
	p.Category = strings.TrimSpace(p.Category)
	return p
}
