package eventbus

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/listingform/internal/event"
)

// LogConsumer logs every wizard event.
type LogConsumer struct {
	logger *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	level := slog.LevelInfo
	if evt.EventType == event.TypeSubmissionFailed || evt.EventType == event.TypeStepBlocked {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "event",
		"type", evt.EventType,
		"wizard", evt.WizardID,
		"property", evt.PropertyID,
		"summary", evt.Summary,
	)
	return nil
}
