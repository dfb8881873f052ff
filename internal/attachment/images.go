package attachment

import (
	"sort"

	"github.com/matthewbaird/listingform/internal/collect"
	"github.com/matthewbaird/listingform/internal/types"
)

// Images is the ordered image list of one listing. Whenever the list is
// non-empty exactly one entry is the cover, and Order always equals the
// entry's position. Every mutation re-establishes both before returning.
//
// Images is owned by a single wizard and is not safe for concurrent use.
type Images struct {
	previews *Previews
	policy   policy
	items    []types.ImageAttachment
}

// NewImages returns an empty image list that registers previews in p.
// maxSize <= 0 selects DefaultMaxSize.
func NewImages(p *Previews, maxSize int64) *Images {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Images{previews: p, policy: policy{types: ImageTypes, maxSize: maxSize}}
}

// Upload appends the accepted files in the order given. When the list was
// empty, the first accepted file becomes the cover.
func (m *Images) Upload(files []*types.File) []IntakeError {
	var rejected []IntakeError
	for _, f := range files {
		if ierr := m.policy.check(f); ierr != nil {
			rejected = append(rejected, *ierr)
			continue
		}
		m.items = append(m.items, types.ImageAttachment{
			File:    f,
			Preview: m.previews.Acquire(f.Type, f.Content),
		})
	}
	m.normalize()
	return rejected
}

// Remove deletes the image at index i and releases its preview. Removing
// the cover promotes the new first image.
func (m *Images) Remove(i int) error {
	if !m.inRange(i) {
		return collect.ErrIndexOutOfRange
	}
	m.previews.Release(m.items[i].Preview)
	m.items = append(m.items[:i], m.items[i+1:]...)
	m.normalize()
	return nil
}

// SetCover makes the image at index i the only cover.
func (m *Images) SetCover(i int) error {
	if !m.inRange(i) {
		return collect.ErrIndexOutOfRange
	}
	for j := range m.items {
		m.items[j].IsCover = j == i
	}
	return nil
}

// UpdateCaption replaces the caption of the image at index i.
func (m *Images) UpdateCaption(i int, caption string) error {
	if !m.inRange(i) {
		return collect.ErrIndexOutOfRange
	}
	m.items[i].Caption = caption
	return nil
}

// SetFloorPlan flags the image at index i as a floor plan.
func (m *Images) SetFloorPlan(i int, floorPlan bool) error {
	if !m.inRange(i) {
		return collect.ErrIndexOutOfRange
	}
	m.items[i].IsFloorPlan = floorPlan
	return nil
}

// Move relocates the image at from to position to. The cover flag travels
// with the image.
func (m *Images) Move(from, to int) error {
	if !m.inRange(from) || !m.inRange(to) {
		return collect.ErrIndexOutOfRange
	}
	img := m.items[from]
	m.items = append(m.items[:from], m.items[from+1:]...)
	m.items = append(m.items[:to], append([]types.ImageAttachment{img}, m.items[to:]...)...)
	m.normalize()
	return nil
}

// Hydrate replaces the list with persisted images sorted by their stored
// order. Pending previews are released. If the stored data carries no cover
// the first image is promoted; if it carries several only the first is kept.
func (m *Images) Hydrate(persisted []types.PersistedImage) {
	m.releaseAll()
	sorted := make([]types.PersistedImage, len(persisted))
	copy(sorted, persisted)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Order < sorted[b].Order })

	m.items = make([]types.ImageAttachment, 0, len(sorted))
	for _, p := range sorted {
		m.items = append(m.items, types.ImageAttachment{
			URL:         p.URL,
			Key:         p.Key,
			Caption:     p.Caption,
			IsCover:     p.IsCover,
			IsFloorPlan: p.IsFloorPlan,
		})
	}
	m.normalize()
}

// List returns a copy of the images in order.
func (m *Images) List() []types.ImageAttachment {
	out := make([]types.ImageAttachment, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the number of images.
func (m *Images) Len() int {
	return len(m.items)
}

// Cover returns the index of the cover image.
func (m *Images) Cover() (int, bool) {
	for i, img := range m.items {
		if img.IsCover {
			return i, true
		}
	}
	return -1, false
}

// Pending returns the file bodies of images that are not persisted yet, in
// list order.
func (m *Images) Pending() []*types.File {
	var out []*types.File
	for _, img := range m.items {
		if img.File != nil {
			out = append(out, img.File)
		}
	}
	return out
}

// Close releases every preview and empties the list.
func (m *Images) Close() {
	m.releaseAll()
	m.items = nil
}

func (m *Images) releaseAll() {
	for _, img := range m.items {
		m.previews.Release(img.Preview)
	}
}

func (m *Images) inRange(i int) bool {
	return i >= 0 && i < len(m.items)
}

// normalize reassigns Order and enforces the single-cover invariant.
func (m *Images) normalize() {
	cover := -1
	for i := range m.items {
		m.items[i].Order = i
		if m.items[i].IsCover {
			if cover >= 0 {
				m.items[i].IsCover = false
				continue
			}
			cover = i
		}
	}
	if cover < 0 && len(m.items) > 0 {
		m.items[0].IsCover = true
	}
}
