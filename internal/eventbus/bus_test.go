package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matthewbaird/listingform/internal/event"
)

func TestBus_DispatchesInOrder(t *testing.T) {
	bus := New(8, nil)
	var mu sync.Mutex
	var got []string
	bus.Subscribe("collect", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		mu.Lock()
		got = append(got, evt.EventType)
		mu.Unlock()
		return nil
	}))
	bus.Subscribe("failing", HandlerFunc(func(context.Context, event.DomainEvent) error {
		return errors.New("boom")
	}))
	bus.Subscribe("log", NewLogConsumer(nil))

	bus.Start(context.Background())
	bus.Publish(context.Background(), event.NewWizardStarted(event.WizardStartedPayload{WizardID: "w-123456789"}))
	bus.Publish(context.Background(), event.NewStepAdvanced(event.StepPayload{WizardID: "w-123456789", From: "basic", To: "location"}))
	bus.Stop()
	bus.Stop()

	assert.Equal(t, []string{event.TypeWizardStarted, event.TypeStepAdvanced}, got)
}

func TestBus_DropsWhenQueueFull(t *testing.T) {
	bus := New(1, nil)
	evt := event.NewWizardStarted(event.WizardStartedPayload{WizardID: "w-1"})
	bus.Publish(context.Background(), evt)
	bus.Publish(context.Background(), evt)
	assert.Equal(t, int64(1), bus.Dropped())

	var delivered int
	bus.Subscribe("count", HandlerFunc(func(context.Context, event.DomainEvent) error {
		delivered++
		return nil
	}))
	bus.Start(context.Background())
	bus.Stop()
	assert.Equal(t, 1, delivered)
}

func TestBus_DeliversQueuedEventsAfterCancel(t *testing.T) {
	bus := New(4, nil)
	var got []string
	bus.Subscribe("collect", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		got = append(got, evt.WizardID)
		return nil
	}))
	bus.Publish(context.Background(), event.NewWizardStarted(event.WizardStartedPayload{WizardID: "w-1"}))
	bus.Publish(context.Background(), event.NewWizardStarted(event.WizardStartedPayload{WizardID: "w-2"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Start(ctx)
	bus.Stop()
	assert.Equal(t, []string{"w-1", "w-2"}, got)
}
