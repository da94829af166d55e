package audit

import (
	"context"
	"errors"
	"time"
)

// Outcomes recorded for guarded actions.
const (
	OutcomeAllowed = "allowed"
	OutcomeBlocked = "blocked"
)

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry is one append-only audit record. Entries are never mutated or deleted.
type Entry struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	ActiveRole string            `json:"active_role"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Outcome    string            `json:"outcome"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Filter selects entries for the compliance export.
type Filter struct {
	ActorID string
	Action  string
	From    time.Time
	To      time.Time
	Limit   int
}

// Store appends immutable entries and lists them for compliance review.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}
