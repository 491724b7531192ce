package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the interpreter or a
// dispatch surface.
type EventType string

const (
	EventEvalStarted   EventType = "eval.started"
	EventEvalCompleted EventType = "eval.completed"
	EventToolInvoked   EventType = "tool.invoked"
	EventToolFailed    EventType = "tool.failed"
	EventToolDefined   EventType = "tool.defined"
)

// Event captures one observable step of an evaluation.
type Event struct {
	Type      EventType
	Tool      string
	CallID    string
	Timestamp time.Time
	Duration  time.Duration
	Payload   map[string]any
}

// EventEmitter receives evaluation events. Emit must be safe for
// concurrent use and must not block evaluation for long; slow consumers
// buffer or drop on their side.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

type multiEmitter []EventEmitter

// Emit implements EventEmitter.
func (m multiEmitter) Emit(ctx context.Context, event Event) {
	for _, emitter := range m {
		emitter.Emit(ctx, event)
	}
}

// CombineEmitters fans each event out to every emitter in order. Nil
// entries are skipped.
func CombineEmitters(emitters ...EventEmitter) EventEmitter {
	out := make(multiEmitter, 0, len(emitters))
	for _, emitter := range emitters {
		if emitter != nil {
			out = append(out, emitter)
		}
	}
	if len(out) == 0 {
		return NoopEventEmitter{}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// NewEvent builds an event stamped with the call id from ctx and the
// current time.
func NewEvent(ctx context.Context, eventType EventType, tool string, payload map[string]any) Event {
	id, _ := CallID(ctx)
	return Event{
		Type:      eventType,
		Tool:      tool,
		CallID:    id,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
