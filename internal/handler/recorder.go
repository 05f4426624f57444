package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/event"
)

// eventSink records domain events for write handlers. A nil recorder
// disables recording.
type eventSink struct {
	rec event.Recorder
	log *zap.Logger
}

// record records evt if a recorder is configured. Errors are logged but do
// not fail the request: the write has already committed.
func (s eventSink) record(ctx context.Context, evt event.DomainEvent) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(ctx, evt); err != nil {
		s.log.Warn("event recording failed", zap.String("type", evt.EventType), zap.Error(err))
	}
}
