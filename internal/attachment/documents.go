package attachment

import (
	"github.com/matthewbaird/listingform/internal/collect"
	"github.com/matthewbaird/listingform/internal/types"
)

// Documents is the supporting-document list of one listing. Only files that
// pass intake ever enter the list.
type Documents struct {
	policy policy
	items  []types.DocumentAttachment
}

// NewDocuments returns an empty document list. maxSize <= 0 selects
// DefaultMaxSize.
func NewDocuments(maxSize int64) *Documents {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Documents{policy: policy{types: DocumentTypes, maxSize: maxSize}}
}

// Upload appends every accepted file and reports the rejected ones.
func (d *Documents) Upload(files []*types.File) []IntakeError {
	var rejected []IntakeError
	for _, f := range files {
		if ierr := d.policy.check(f); ierr != nil {
			rejected = append(rejected, *ierr)
			continue
		}
		d.items = append(d.items, types.DocumentAttachment{
			File: f,
			Name: f.Name,
			Type: f.Type,
			Size: f.Size,
		})
	}
	return rejected
}

// Remove deletes the document at index i.
func (d *Documents) Remove(i int) error {
	if i < 0 || i >= len(d.items) {
		return collect.ErrIndexOutOfRange
	}
	d.items = append(d.items[:i], d.items[i+1:]...)
	return nil
}

// Hydrate replaces the list with persisted documents.
func (d *Documents) Hydrate(persisted []types.PersistedDocument) {
	d.items = make([]types.DocumentAttachment, 0, len(persisted))
	for _, p := range persisted {
		d.items = append(d.items, types.DocumentAttachment{URL: p.URL, Name: p.Name, Type: p.Type, Size: p.Size})
	}
}

// List returns a copy of the documents in order.
func (d *Documents) List() []types.DocumentAttachment {
	out := make([]types.DocumentAttachment, len(d.items))
	copy(out, d.items)
	return out
}

// Len returns the number of documents.
func (d *Documents) Len() int {
	return len(d.items)
}

// Pending returns the file bodies of documents not persisted yet.
func (d *Documents) Pending() []*types.File {
	var out []*types.File
	for _, doc := range d.items {
		if doc.File != nil {
			out = append(out, doc.File)
		}
	}
	return out
}
