package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/loomkit/loom/pkg/core"
)

// Recorder bridges interpreter events to a store. A failed write is
// logged and dropped: auditing must never fail an evaluation.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over store. A nil logger falls back to
// slog.Default.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

var _ core.EventEmitter = (*Recorder)(nil)

// Emit records tool invocation events. Other event types carry no tool
// name and are skipped.
func (r *Recorder) Emit(ctx context.Context, event core.Event) {
	if event.Type != core.EventToolInvoked && event.Type != core.EventToolFailed {
		return
	}
	rec := Record{
		ID:        uuid.NewString(),
		CallID:    event.CallID,
		Tool:      event.Tool,
		Duration:  event.Duration,
		StartedAt: event.Timestamp,
	}
	if event.Payload != nil {
		rec.Input = event.Payload["input"]
		rec.Output = event.Payload["output"]
		if errVal, ok := event.Payload["error"].(map[string]any); ok {
			rec.ErrorKind, _ = errVal["kind"].(string)
			rec.Error, _ = errVal["message"].(string)
		}
	}
	if err := r.store.Record(ctx, rec); err != nil {
		r.logger.Warn("audit.record.failed",
			slog.String("tool", rec.Tool),
			slog.String("call_id", rec.CallID),
			slog.String("error", err.Error()),
		)
	}
}
