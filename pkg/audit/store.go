// Package audit records tool invocations so operators can answer "what
// ran, with what input, and how did it end" after the fact. Stores are
// pluggable; the runtime wires one behind an event emitter so recording
// never changes evaluation semantics.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Record captures one tool invocation observed at a dispatch surface or
// inside the interpreter.
type Record struct {
	ID        string        `json:"id"`
	CallID    string        `json:"call_id,omitempty"`
	Tool      string        `json:"tool"`
	Input     any           `json:"input,omitempty"`
	Output    any           `json:"output,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
}

// Store persists invocation records.
type Store interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Filter limits record queries. Zero fields match everything.
type Filter struct {
	Tool      string
	CallID    string
	ErrorKind string
	Limit     int
}

// MemoryStore keeps records in memory, in arrival order.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a record.
func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.StartedAt = normalizeTime(rec.StartedAt)
	s.records = append(s.records, rec)
	return nil
}

// List returns records matching the filter, oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Tool != "" && rec.Tool != filter.Tool {
			continue
		}
		if filter.CallID != "" && rec.CallID != filter.CallID {
			continue
		}
		if filter.ErrorKind != "" && rec.ErrorKind != filter.ErrorKind {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// encodePayload marshals an input or output value for storage.
func encodePayload(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// decodePayload parses a stored JSON payload.
func decodePayload(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeTime keeps stored timestamps in UTC.
func normalizeTime(v time.Time) time.Time {
	if v.IsZero() {
		return v
	}
	return v.UTC()
}
