// Package attachment manages the media of a listing being edited: the image
// list with its cover invariant, the supporting document list, and the
// transient preview references handed out for files not yet persisted.
package attachment

import (
	"sync"

	"github.com/google/uuid"
)

// Preview is a transient, in-memory view of an uploaded file that has not
// been persisted yet.
type Preview struct {
	Token       string
	ContentType string
	Body        []byte
}

// Previews hands out preview tokens for uploaded files. Every token acquired
// must be released exactly once; Len exposes the live count so leaks show up
// in tests and metrics. Safe for concurrent use.
type Previews struct {
	mu    sync.RWMutex
	items map[string]Preview
}

// NewPreviews returns an empty preview store.
func NewPreviews() *Previews {
	return &Previews{items: make(map[string]Preview)}
}

// Acquire registers a preview and returns its token.
func (p *Previews) Acquire(contentType string, body []byte) string {
	token := uuid.New().String()
	p.mu.Lock()
	p.items[token] = Preview{Token: token, ContentType: contentType, Body: body}
	p.mu.Unlock()
	return token
}

// Release drops a preview. Releasing an unknown token is a no-op.
func (p *Previews) Release(token string) {
	if token == "" {
		return
	}
	p.mu.Lock()
	delete(p.items, token)
	p.mu.Unlock()
}

// Get returns the preview for token.
func (p *Previews) Get(token string) (Preview, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pv, ok := p.items[token]
	return pv, ok
}

// Len returns the number of live previews.
func (p *Previews) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
