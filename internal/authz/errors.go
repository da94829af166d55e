package authz

import "errors"

var (
	// ErrUnauthorized is returned when the active role may not perform
	// the requested action.
	ErrUnauthorized = errors.New("authz: action not permitted for active role")
	// ErrRoleMismatch is returned when the override header names a role
	// the credential does not carry.
	ErrRoleMismatch = errors.New("authz: requested role not held by credential")
	// ErrOutOfScope is returned when the role is allowed in general but
	// the target falls outside the actor's scope.
	ErrOutOfScope = errors.New("authz: target outside active role scope")
	// ErrSoDViolation carries a deliberately stable message so callers
	// cannot probe which separation rule fired.
	ErrSoDViolation = errors.New("separation of duties violation")
	// ErrUnknownAction is returned for actions absent from the registry.
	ErrUnknownAction = errors.New("authz: unknown action")
)
