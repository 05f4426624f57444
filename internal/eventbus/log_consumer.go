package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log *zap.Logger
}

func NewLogConsumer(log *zap.Logger) *LogConsumer {
	return &LogConsumer{log: log.Named("event")}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.Refs))
	for i, ref := range evt.Refs {
		entities[i] = ref.Collection + ":" + ref.ID
	}
	c.log.Info(evt.Summary,
		zap.String("type", evt.EventType),
		zap.String("category", evt.Category),
		zap.String("weight", evt.Weight),
		zap.Strings("entities", entities))
	return nil
}
