package audit

import (
	"context"
	"errors"
	"testing"
)

type failingSink struct{}

func (failingSink) Append(ctx context.Context, entry Entry) error {
	return errors.New("sink down")
}

func TestRecordAppendsEntry(t *testing.T) {
	sink := NewMemorySink()
	logger := &Logger{Sink: sink}

	logger.Record(context.Background(), "user-1", "verification.submitted", "verification_request", "req-1", map[string]any{"k": "v"})

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Fatal("expected generated entry ID")
	}
	if e.UserID != "user-1" || e.Action != "verification.submitted" || e.EntityID != "req-1" {
		t.Fatalf("entry = %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Fatal("expected createdAt to be set")
	}
	if e.Metadata["k"] != "v" {
		t.Fatalf("metadata = %+v", e.Metadata)
	}
}

func TestRecordSwallowsSinkErrors(t *testing.T) {
	logger := &Logger{Sink: failingSink{}}
	// Must not panic or propagate; audit failures never break the caller.
	logger.Record(context.Background(), "user-1", "verification.decided", "verification_attempt", "a-1", nil)
}
