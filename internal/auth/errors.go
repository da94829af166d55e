package auth

import "errors"

var (
	// ErrInvalidToken indicates the credential failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrRoleNotAssigned is returned when a role switch requests a role that
	// is not part of the credential's assigned set.
	ErrRoleNotAssigned = errors.New("auth: role not assigned")
	// ErrUnauthenticated indicates a missing or expired credential.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)
