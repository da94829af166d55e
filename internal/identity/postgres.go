package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, id *Identity) error {
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, email, phone, first_name, last_name, password_hash, active)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		id.ID, strings.ToLower(id.Email), id.Phone, id.FirstName, id.LastName, id.PasswordHash, id.Active,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrConflict
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, phone, first_name, last_name, password_hash, active, created_at, updated_at
		 from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, phone, first_name, last_name, password_hash, active, created_at, updated_at
		 from identities where email=$1`, strings.ToLower(email))
	return scanIdentity(row)
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Assign(ctx context.Context, a RoleAssignment) error {
	// One row per (identity, role, scope): a revoked assignment is
	// reactivated in place, an active one is a conflict.
	res, err := s.db.ExecContext(ctx,
		`insert into role_assignments(identity_id, role, scope, active, assigned_by)
		 values($1,$2,$3,true,$4)
		 on conflict (identity_id, role, scope) do update
		 set active=true, assigned_by=excluded.assigned_by, created_at=now()
		 where role_assignments.active = false`,
		a.IdentityID, a.Role, a.Scope, a.AssignedBy,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PGStore) Revoke(ctx context.Context, identityID, role, scope string) error {
	res, err := s.db.ExecContext(ctx,
		`update role_assignments set active=false
		 where identity_id=$1 and role=$2 and scope=$3 and active`,
		identityID, role, scope)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Assignments(ctx context.Context, identityID string) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select identity_id, role, scope, active, assigned_by, created_at
		 from role_assignments where identity_id=$1 and active order by created_at asc`,
		identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.IdentityID, &a.Role, &a.Scope, &a.Active, &a.AssignedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	var id Identity
	err := row.Scan(&id.ID, &id.Email, &id.Phone, &id.FirstName, &id.LastName,
		&id.PasswordHash, &id.Active, &id.CreatedAt, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
