package authz

import (
	"context"

	"scolaris.org/internal/identity"
)

// Action names used across the API surface.
const (
	ActionGradesRead           = "grades.read"
	ActionGradesSubmit         = "grades.submit"
	ActionGradeFinalize        = "grade.finalize"
	ActionJuryClose            = "jury.close"
	ActionRegistrationRegister = "registration.register"
	ActionRegistrationValidate = "registration.validate"
	ActionRegistrationReopen   = "registration.reopen"
	ActionPayrollApprove       = "payroll.approve"
	ActionFinanceRead          = "finance.read"
	ActionFinanceManage        = "finance.manage"
	ActionAuditRead            = "audit.read"
	ActionIdentityManage       = "identity.manage"
	ActionRulesManage          = "rules.manage"
)

// Target identifies what an action is applied to, with enough provenance
// for scope and separation checks.
type Target struct {
	Type          string
	ID            string
	OwnerID       string
	FacultyCode   string
	SubmitterID   string
	SubmitterRole string
	BeneficiaryID string
}

// ScopePredicate narrows an allowed role to the targets it may touch.
type ScopePredicate func(ctx context.Context, rc *ActiveRoleContext, t Target) error

// Action declares who may do what. Sensitive actions additionally pass
// through the separation-of-duties guard.
type Action struct {
	Name      string
	Roles     []string
	Sensitive bool
	Scope     ScopePredicate
}

// FinancialGate answers whether a student may read academic results. The
// finance package's Gate satisfies it.
type FinancialGate interface {
	CheckAccess(ctx context.Context, studentID string) error
}

// Registry maps action names to their declarations.
type Registry map[string]Action

// DefaultActions builds the institutional action registry. The gate is
// consulted only for students reading their own results.
func DefaultActions(gate FinancialGate) Registry {
	reg := Registry{}
	add := func(a Action) { reg[a.Name] = a }

	add(Action{
		Name: ActionGradesRead,
		Roles: []string{
			identity.RoleAdminSI, identity.RoleRecteur, identity.RoleSG,
			identity.RoleDoyen, identity.RoleScolarite, identity.RoleTeacher,
			identity.RoleStudent,
		},
		Scope: func(ctx context.Context, rc *ActiveRoleContext, t Target) error {
			if rc.Role == identity.RoleStudent {
				if t.OwnerID == "" || t.OwnerID != rc.IdentityID {
					return ErrOutOfScope
				}
				if gate != nil {
					return gate.CheckAccess(ctx, t.OwnerID)
				}
				return nil
			}
			return facultyScope(rc, t)
		},
	})
	add(Action{
		Name:  ActionGradesSubmit,
		Roles: []string{identity.RoleAdminSI, identity.RoleScolarite, identity.RoleTeacher},
		Scope: facultyScopePredicate,
	})
	add(Action{
		Name:      ActionGradeFinalize,
		Roles:     []string{identity.RoleAdminSI, identity.RoleScolarite, identity.RoleDoyen},
		Sensitive: true,
		Scope:     facultyScopePredicate,
	})
	add(Action{
		Name:      ActionJuryClose,
		Roles:     []string{identity.RoleAdminSI, identity.RoleRecteur, identity.RoleDoyen},
		Sensitive: true,
		Scope:     facultyScopePredicate,
	})
	add(Action{
		Name:  ActionRegistrationRegister,
		Roles: []string{identity.RoleAdminSI, identity.RoleScolarite},
	})
	add(Action{
		Name:      ActionRegistrationValidate,
		Roles:     []string{identity.RoleAdminSI, identity.RoleScolarite, identity.RoleSG},
		Sensitive: true,
	})
	add(Action{
		Name:      ActionRegistrationReopen,
		Roles:     []string{identity.RoleAdminSI},
		Sensitive: true,
	})
	add(Action{
		Name:      ActionPayrollApprove,
		Roles:     []string{identity.RoleAdminSI, identity.RoleRecteur, identity.RoleDAF, identity.RoleManagerRHPay},
		Sensitive: true,
	})
	add(Action{
		Name: ActionFinanceRead,
		Roles: []string{
			identity.RoleAdminSI, identity.RoleRecteur, identity.RoleSG,
			identity.RoleDAF, identity.RoleOperatorFinance, identity.RoleStudent,
		},
		Scope: func(ctx context.Context, rc *ActiveRoleContext, t Target) error {
			if rc.Role == identity.RoleStudent && (t.OwnerID == "" || t.OwnerID != rc.IdentityID) {
				return ErrOutOfScope
			}
			return nil
		},
	})
	add(Action{
		Name:  ActionFinanceManage,
		Roles: []string{identity.RoleAdminSI, identity.RoleDAF, identity.RoleOperatorFinance},
	})
	add(Action{
		Name:  ActionAuditRead,
		Roles: []string{identity.RoleAdminSI, identity.RoleRecteur, identity.RoleSG},
	})
	add(Action{
		Name:  ActionIdentityManage,
		Roles: []string{identity.RoleAdminSI},
	})
	add(Action{
		Name:  ActionRulesManage,
		Roles: []string{identity.RoleAdminSI, identity.RoleScolarite},
	})
	return reg
}

func facultyScopePredicate(ctx context.Context, rc *ActiveRoleContext, t Target) error {
	return facultyScope(rc, t)
}

// facultyScope restricts faculty-bound roles to targets within their
// assigned faculty. Roles without a scope see the whole institution.
func facultyScope(rc *ActiveRoleContext, t Target) error {
	if rc.Scope == "" || t.FacultyCode == "" {
		return nil
	}
	if rc.Scope != t.FacultyCode {
		return ErrOutOfScope
	}
	return nil
}
