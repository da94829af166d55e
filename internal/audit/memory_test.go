package audit

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryAppendAndList(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	entries := []Entry{
		{ActorID: "actor-1", ActiveRole: "SCOLARITE", Action: "grades.submit", Outcome: OutcomeAllowed},
		{ActorID: "actor-1", ActiveRole: "SCOLARITE", Action: "jury.close", Outcome: OutcomeBlocked},
		{ActorID: "actor-2", ActiveRole: "DOYEN", Action: "grades.submit", Outcome: OutcomeAllowed},
	}
	for i := range entries {
		if err := store.Append(ctx, &entries[i]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if entries[i].ID == "" {
			t.Fatal("expected appended entry to receive an id")
		}
		if entries[i].OccurredAt.IsZero() {
			t.Fatal("expected appended entry to receive a timestamp")
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	byActor, err := store.List(ctx, Filter{ActorID: "actor-1"})
	if err != nil {
		t.Fatalf("List by actor failed: %v", err)
	}
	if len(byActor) != 2 {
		t.Fatalf("expected 2 entries for actor-1, got %d", len(byActor))
	}

	byAction, err := store.List(ctx, Filter{ActorID: "actor-1", Action: "jury.close"})
	if err != nil {
		t.Fatalf("List by action failed: %v", err)
	}
	if len(byAction) != 1 || byAction[0].Outcome != OutcomeBlocked {
		t.Fatalf("unexpected filtered entries: %+v", byAction)
	}
}

func TestInMemoryRejectsInvalidEntry(t *testing.T) {
	store := NewInMemory()
	if err := store.Append(context.Background(), &Entry{ActorID: "actor"}); err != ErrInvalidEntry {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestInMemoryTimeWindow(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := Entry{
			ActorID:    "actor",
			Action:     "audit.read",
			Outcome:    OutcomeAllowed,
			OccurredAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Append(ctx, &entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	window, err := store.List(ctx, Filter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(window) != 1 {
		t.Fatalf("expected 1 entry in window, got %d", len(window))
	}
}
