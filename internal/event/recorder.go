package event

import (
	"context"

	"github.com/matthewbaird/listingform/internal/types"
)

// Recorder persists domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// EntryWriter is the write side of the activity log.
type EntryWriter interface {
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error
}

// ActivityRecorder writes each event to the activity log and, if a
// Publisher is set, publishes it after the write succeeds.
type ActivityRecorder struct {
	store EntryWriter
	bus   Publisher
}

// NewActivityRecorder creates a recorder backed by store.
func NewActivityRecorder(store EntryWriter) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes evt and publishes it.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	entry := types.ActivityEntry{
		EventID:    evt.ID,
		EventType:  evt.EventType,
		OccurredAt: evt.OccurredAt,
		WizardID:   evt.WizardID,
		PropertyID: evt.PropertyID,
		Step:       evt.Step,
		Summary:    evt.Summary,
		Payload:    evt.Payload,
	}
	if err := r.store.WriteEntries(ctx, []types.ActivityEntry{entry}); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
