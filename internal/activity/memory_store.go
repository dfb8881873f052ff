package activity

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/listingform/internal/types"
)

// Store reads and writes activity entries.
type Store interface {
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error
	QueryByWizard(ctx context.Context, wizardID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)
	Forget(ctx context.Context, wizardID string) error
}

// MemoryStore implements Store in memory. Wizard sessions are in-memory
// too, so the log lives exactly as long as the process.
type MemoryStore struct {
	mu       sync.RWMutex
	byWizard map[string][]types.ActivityEntry
	capacity int
}

// NewMemoryStore creates an empty store that keeps at most capacity
// entries per wizard (oldest dropped first). capacity <= 0 means 1000.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{byWizard: make(map[string][]types.ActivityEntry), capacity: capacity}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		list := append(s.byWizard[e.WizardID], e)
		if over := len(list) - s.capacity; over > 0 {
			list = slices.Clone(list[over:])
		}
		s.byWizard[e.WizardID] = list
	}
	return nil
}

func (s *MemoryStore) QueryByWizard(_ context.Context, wizardID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor time.Time
	if opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			cursor = t
		}
	}

	list := s.byWizard[wizardID]
	var matched []types.ActivityEntry
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if len(opts.EventTypes) > 0 && !slices.Contains(opts.EventTypes, e.EventType) {
			continue
		}
		if !cursor.IsZero() && !e.OccurredAt.Before(cursor) {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	totalCount := len(matched)
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var nextCursor string
	if len(matched) > limit {
		matched = matched[:limit]
		nextCursor = matched[len(matched)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return matched, nextCursor, totalCount, nil
}

// Forget drops every entry of a wizard.
func (s *MemoryStore) Forget(_ context.Context, wizardID string) error {
	s.mu.Lock()
	delete(s.byWizard, wizardID)
	s.mu.Unlock()
	return nil
}
