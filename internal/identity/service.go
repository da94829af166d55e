package identity

import (
	"context"
	"fmt"
	"strings"
)

// Directory is the lookup contract consumed by the rest of the core: an
// identity together with its active role assignments.
type Directory interface {
	Lookup(ctx context.Context, id string) (*Identity, []RoleAssignment, error)
}

// Service wraps a Store with input validation and the assignment invariant.
type Service struct {
	store Store
}

var _ Directory = (*Service)(nil)

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Service{store: store}, nil
}

// Register creates a new identity record.
func (s *Service) Register(ctx context.Context, id *Identity) error {
	id.Email = strings.TrimSpace(strings.ToLower(id.Email))
	id.Phone = strings.TrimSpace(id.Phone)
	if id.Email == "" || !strings.Contains(id.Email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if id.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if strings.TrimSpace(id.FirstName) == "" || strings.TrimSpace(id.LastName) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	id.Active = true
	return s.store.Create(ctx, id)
}

// Lookup returns the identity and its active role assignments.
func (s *Service) Lookup(ctx context.Context, id string) (*Identity, []RoleAssignment, error) {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	assignments, err := s.store.Assignments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, assignments, nil
}

// FindByEmail resolves an identity by its unique email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindByEmail(ctx, email)
}

// AssignRole grants a role within an optional scope. The (identity, role,
// scope) triple is unique while active.
func (s *Service) AssignRole(ctx context.Context, identityID, role, scope, assignedBy string) error {
	role = NormalizeRole(role)
	if identityID == "" || role == "" {
		return fmt.Errorf("%w: identity_id and role are required", ErrInvalidInput)
	}
	return s.store.Assign(ctx, RoleAssignment{
		IdentityID: identityID,
		Role:       role,
		Scope:      strings.TrimSpace(scope),
		AssignedBy: assignedBy,
	})
}

// RevokeRole deactivates an assignment.
func (s *Service) RevokeRole(ctx context.Context, identityID, role, scope string) error {
	role = NormalizeRole(role)
	if identityID == "" || role == "" {
		return fmt.Errorf("%w: identity_id and role are required", ErrInvalidInput)
	}
	return s.store.Revoke(ctx, identityID, role, strings.TrimSpace(scope))
}

// Deactivate soft-disables an identity; records are never deleted.
func (s *Service) Deactivate(ctx context.Context, identityID string) error {
	if identityID == "" {
		return fmt.Errorf("%w: identity_id is required", ErrInvalidInput)
	}
	return s.store.Deactivate(ctx, identityID)
}

// NormalizeRole canonicalizes a role code.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
