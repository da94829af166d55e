package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrConflict     = errors.New("identity: already exists")
	ErrInvalidInput = errors.New("identity: invalid input")
)

// Store describes persistence for identities and role assignments.
type Store interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Deactivate(ctx context.Context, id string) error

	Assign(ctx context.Context, a RoleAssignment) error
	Revoke(ctx context.Context, identityID, role, scope string) error
	Assignments(ctx context.Context, identityID string) ([]RoleAssignment, error)
}
