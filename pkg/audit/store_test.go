package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/loomkit/loom/pkg/core"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	rec := Record{
		ID:        "rec-1",
		CallID:    "call-1",
		Tool:      "print",
		Input:     "Hello, world",
		Output:    "Hello, world",
		Duration:  5 * time.Millisecond,
		StartedAt: time.Now().UTC(),
	}
	if err := store.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	records, err := store.List(context.Background(), Filter{Tool: "print"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CallID != "call-1" {
		t.Fatalf("unexpected call id: %s", records[0].CallID)
	}
}

func TestMemoryStoreFilters(t *testing.T) {
	store := NewMemoryStore()
	seed := []Record{
		{ID: "a", Tool: "add", CallID: "c1"},
		{ID: "b", Tool: "multiply", CallID: "c1", ErrorKind: "INVALID_INPUT", Error: "not a number"},
		{ID: "c", Tool: "add", CallID: "c2"},
	}
	for _, rec := range seed {
		if err := store.Record(context.Background(), rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	records, err := store.List(context.Background(), Filter{Tool: "add"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 add records, got %d", len(records))
	}

	records, err = store.List(context.Background(), Filter{ErrorKind: "INVALID_INPUT"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != "b" {
		t.Fatalf("unexpected error-kind filter result: %+v", records)
	}

	records, err = store.List(context.Background(), Filter{CallID: "c1", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != "a" {
		t.Fatalf("limit should keep the oldest record: %+v", records)
	}
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	rec := Record{
		ID:        "rec-1",
		CallID:    "call-1",
		Tool:      "multiply",
		Input:     []any{float64(21), float64(2)},
		Output:    float64(42),
		Duration:  3 * time.Millisecond,
		StartedAt: time.Now().UTC(),
	}
	if err := store.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	records, err := store.List(context.Background(), Filter{Tool: "multiply", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != "rec-1" || got.CallID != "call-1" {
		t.Fatalf("unexpected record identity: %+v", got)
	}
	if out, ok := got.Output.(float64); !ok || out != 42 {
		t.Fatalf("output did not round-trip: %#v", got.Output)
	}
	if got.Duration != 3*time.Millisecond {
		t.Fatalf("unexpected duration: %v", got.Duration)
	}
}

func TestSQLiteStoreError(t *testing.T) {
	db, err := sql.Open("sqlite", "file:audit_err_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	rec := Record{
		ID:        "rec-err",
		Tool:      "missing-tool",
		ErrorKind: "UNKNOWN_TOOL",
		Error:     `unknown tool "missing-tool"`,
		StartedAt: time.Now().UTC(),
	}
	if err := store.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	records, err := store.List(context.Background(), Filter{ErrorKind: "UNKNOWN_TOOL"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Error == "" {
		t.Fatalf("expected the failure text to survive: %+v", records)
	}
}

func TestRecorderEmitsInvocations(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, nil)

	ctx := core.WithCallID(context.Background(), "call-9")
	event := core.NewEvent(ctx, core.EventToolInvoked, "echo", map[string]any{
		"input":  "hi",
		"output": "hi",
	})
	event.Duration = time.Millisecond
	recorder.Emit(ctx, event)

	// Non-invocation events are skipped.
	recorder.Emit(ctx, core.NewEvent(ctx, core.EventEvalStarted, "", nil))

	records, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Tool != "echo" || got.CallID != "call-9" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.ID == "" {
		t.Fatal("recorder should assign a record id")
	}
}

func TestRecorderCapturesFailures(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, nil)

	ctx := context.Background()
	event := core.NewEvent(ctx, core.EventToolFailed, "multiply", map[string]any{
		"input": "nope",
		"error": map[string]any{"kind": "INVALID_INPUT", "message": "expects a list of numbers"},
	})
	recorder.Emit(ctx, event)

	records, err := store.List(context.Background(), Filter{ErrorKind: "INVALID_INPUT"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Error != "expects a list of numbers" {
		t.Fatalf("unexpected error text: %q", records[0].Error)
	}
}
