package academic

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"scolaris.org/internal/ids"
)

// PGStore implements Store on PostgreSQL. Grade batches run in one
// transaction so readers never observe a partial submission.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateProgram(ctx context.Context, p *Program) error {
	if p == nil || p.Code == "" {
		return ErrInvalidInput
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into programs(code, name, faculty_code, rules_json, created_at) values($1,$2,$3,$4,$5)`,
		p.Code, p.Name, p.FacultyCode, p.RulesJSON, p.CreatedAt)
	return err
}

func (s *PGStore) Program(ctx context.Context, code string) (*Program, error) {
	var p Program
	err := s.db.QueryRowContext(ctx,
		`select code, name, faculty_code, rules_json, created_at from programs where code = $1`, code).
		Scan(&p.Code, &p.Name, &p.FacultyCode, &p.RulesJSON, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) CreateUnit(ctx context.Context, u *Unit) error {
	if u == nil || u.ProgramCode == "" {
		return ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into units(id, code, name, program_code, period, created_at) values($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Code, u.Name, u.ProgramCode, u.Period, u.CreatedAt)
	return err
}

func (s *PGStore) Unit(ctx context.Context, id string) (*Unit, error) {
	var u Unit
	err := s.db.QueryRowContext(ctx,
		`select id, code, name, program_code, period, created_at from units where id = $1`, id).
		Scan(&u.ID, &u.Code, &u.Name, &u.ProgramCode, &u.Period, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) UnitsByProgram(ctx context.Context, programCode string) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, code, name, program_code, period, created_at from units where program_code = $1 order by code`, programCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.ProgramCode, &u.Period, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	if e == nil || e.UnitID == "" || !ValidComponent(e.Component) {
		return ErrInvalidInput
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into evaluations(id, unit_id, component, session_date, closed, created_at) values($1,$2,$3,$4,$5,$6)`,
		e.ID, e.UnitID, string(e.Component), e.SessionDate, e.Closed, e.CreatedAt)
	return err
}

func (s *PGStore) Evaluation(ctx context.Context, id string) (*Evaluation, error) {
	var e Evaluation
	var component string
	err := s.db.QueryRowContext(ctx,
		`select id, unit_id, component, session_date, closed, created_at from evaluations where id = $1`, id).
		Scan(&e.ID, &e.UnitID, &component, &e.SessionDate, &e.Closed, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Component = Component(component)
	return &e, nil
}

func (s *PGStore) EvaluationsByUnit(ctx context.Context, unitID string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, unit_id, component, session_date, closed, created_at from evaluations where unit_id = $1 order by session_date`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		var component string
		if err := rows.Scan(&e.ID, &e.UnitID, &component, &e.SessionDate, &e.Closed, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Component = Component(component)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) CloseEvaluation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update evaluations set closed = true where id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CloseEvaluations(ctx context.Context, unitID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`update evaluations set closed = true where unit_id = $1 and closed = false`, unitID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PGStore) ApplyGrades(ctx context.Context, entries []GradeEntry) ([]ApplyOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := make([]ApplyOutcome, len(entries))
	for i, entry := range entries {
		var closed bool
		err := tx.QueryRowContext(ctx, `select closed from evaluations where id = $1`, entry.EvaluationID).Scan(&closed)
		if errors.Is(err, sql.ErrNoRows) {
			out[i].Err = ErrNotFound
			continue
		}
		if err != nil {
			return nil, err
		}
		if closed {
			out[i].Err = ErrEvaluationClosed
			continue
		}

		res, err := tx.ExecContext(ctx,
			`update grade_entries
			 set score_centipoints = $3, absent = $4, author_id = $5, author_role = $6,
			     version = version + 1, updated_at = $8
			 where evaluation_id = $1 and student_id = $2 and version = $7`,
			entry.EvaluationID, entry.StudentID, entry.ScoreCentipoints, entry.Absent,
			entry.AuthorID, entry.AuthorRole, entry.Version, now)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			continue
		}

		var exists bool
		err = tx.QueryRowContext(ctx,
			`select exists(select 1 from grade_entries where evaluation_id = $1 and student_id = $2)`,
			entry.EvaluationID, entry.StudentID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists {
			out[i].Err = ErrConcurrentModification
			continue
		}
		_, err = tx.ExecContext(ctx,
			`insert into grade_entries(id, evaluation_id, student_id, score_centipoints, absent, author_id, author_role, version, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$6,$7,1,$8,$8)`,
			ids.New(), entry.EvaluationID, entry.StudentID, entry.ScoreCentipoints, entry.Absent,
			entry.AuthorID, entry.AuthorRole, now)
		if err != nil {
			return nil, err
		}
		out[i].Created = true
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) GradesByStudentUnit(ctx context.Context, studentID, unitID string) ([]GradeEntry, error) {
	return s.listGrades(ctx,
		`select g.id, g.evaluation_id, g.student_id, g.score_centipoints, g.absent, g.author_id, g.author_role, g.version, g.created_at, g.updated_at
		 from grade_entries g join evaluations e on e.id = g.evaluation_id
		 where g.student_id = $1 and e.unit_id = $2`, studentID, unitID)
}

func (s *PGStore) GradesByStudent(ctx context.Context, studentID string) ([]GradeEntry, error) {
	return s.listGrades(ctx,
		`select id, evaluation_id, student_id, score_centipoints, absent, author_id, author_role, version, created_at, updated_at
		 from grade_entries where student_id = $1`, studentID)
}

func (s *PGStore) GradeAuthors(ctx context.Context, unitID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct g.author_id from grade_entries g
		 join evaluations e on e.id = g.evaluation_id where e.unit_id = $1`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGStore) Register(ctx context.Context, r *RegistrationPedagogical) error {
	if r == nil || r.StudentID == "" || r.UnitID == "" {
		return ErrInvalidInput
	}
	if r.Status == "" {
		r.Status = StatusInProgress
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into registrations_pedagogical(student_id, unit_id, status, average_centipoints, blocked, confirmed, registered_by, validated_by, closed_at, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.StudentID, r.UnitID, r.Status, r.AverageCentipoints, r.Blocked, r.Confirmed,
		r.RegisteredBy, r.ValidatedBy, r.ClosedAt, r.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateRegistration
	}
	return err
}

func (s *PGStore) Registration(ctx context.Context, studentID, unitID string) (*RegistrationPedagogical, error) {
	row := s.db.QueryRowContext(ctx,
		`select student_id, unit_id, status, average_centipoints, blocked, confirmed, registered_by, validated_by, closed_at, created_at
		 from registrations_pedagogical where student_id = $1 and unit_id = $2`, studentID, unitID)
	var r RegistrationPedagogical
	var validatedBy sql.NullString
	var closedAt sql.NullTime
	err := row.Scan(&r.StudentID, &r.UnitID, &r.Status, &r.AverageCentipoints, &r.Blocked, &r.Confirmed,
		&r.RegisteredBy, &validatedBy, &closedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.ValidatedBy = validatedBy.String
	if closedAt.Valid {
		t := closedAt.Time
		r.ClosedAt = &t
	}
	return &r, nil
}

func (s *PGStore) RegistrationsByUnit(ctx context.Context, unitID string) ([]RegistrationPedagogical, error) {
	return s.listRegistrations(ctx,
		`select student_id, unit_id, status, average_centipoints, blocked, confirmed, registered_by, validated_by, closed_at, created_at
		 from registrations_pedagogical where unit_id = $1 order by student_id`, unitID)
}

func (s *PGStore) RegistrationsByStudent(ctx context.Context, studentID string) ([]RegistrationPedagogical, error) {
	return s.listRegistrations(ctx,
		`select student_id, unit_id, status, average_centipoints, blocked, confirmed, registered_by, validated_by, closed_at, created_at
		 from registrations_pedagogical where student_id = $1 order by unit_id`, studentID)
}

func (s *PGStore) SaveRegistration(ctx context.Context, r *RegistrationPedagogical) error {
	if r == nil {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx,
		`update registrations_pedagogical
		 set status = $3, average_centipoints = $4, blocked = $5, confirmed = $6, validated_by = $7, closed_at = $8
		 where student_id = $1 and unit_id = $2`,
		r.StudentID, r.UnitID, r.Status, r.AverageCentipoints, r.Blocked, r.Confirmed, r.ValidatedBy, r.ClosedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) listGrades(ctx context.Context, query string, args ...any) ([]GradeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GradeEntry
	for rows.Next() {
		var g GradeEntry
		if err := rows.Scan(&g.ID, &g.EvaluationID, &g.StudentID, &g.ScoreCentipoints, &g.Absent,
			&g.AuthorID, &g.AuthorRole, &g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGStore) listRegistrations(ctx context.Context, query string, args ...any) ([]RegistrationPedagogical, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegistrationPedagogical
	for rows.Next() {
		var r RegistrationPedagogical
		var validatedBy sql.NullString
		var closedAt sql.NullTime
		if err := rows.Scan(&r.StudentID, &r.UnitID, &r.Status, &r.AverageCentipoints, &r.Blocked, &r.Confirmed,
			&r.RegisteredBy, &validatedBy, &closedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ValidatedBy = validatedBy.String
		if closedAt.Valid {
			t := closedAt.Time
			r.ClosedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
