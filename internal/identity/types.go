package identity

import "time"

// Role codes recognized by the platform. Assignments may carry a faculty or
// program scope (e.g. a dean is scoped to one faculty).
const (
	RoleAdminSI         = "ADMIN_SI"
	RoleRecteur         = "RECTEUR"
	RoleSG              = "SG"
	RoleDAF             = "DAF"
	RoleDoyen           = "DOYEN"
	RoleScolarite       = "SCOLARITE"
	RoleOperatorFinance = "OPERATOR_FINANCE"
	RoleManagerRHPay    = "MANAGER_RH_PAY"
	RoleTeacher         = "TEACHER"
	RoleStudent         = "USER_STUDENT"
)

// Identity is the unique person record. Identifiers are immutable; records are
// soft-deactivated, never deleted.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleAssignment links an identity to a role within an optional scope.
// A role code appears at most once per identity per scope while active.
type RoleAssignment struct {
	IdentityID string    `json:"identity_id"`
	Role       string    `json:"role"`
	Scope      string    `json:"scope,omitempty"`
	Active     bool      `json:"active"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
