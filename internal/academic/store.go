package academic

import "context"

// ApplyOutcome reports what happened to one entry of a grade batch.
type ApplyOutcome struct {
	Created bool
	Err     error
}

// Store persists the academic aggregates. ApplyGrades must apply the whole
// batch under a single lock or transaction so readers never observe a
// half-applied submission.
type Store interface {
	CreateProgram(ctx context.Context, p *Program) error
	Program(ctx context.Context, code string) (*Program, error)

	CreateUnit(ctx context.Context, u *Unit) error
	Unit(ctx context.Context, id string) (*Unit, error)
	UnitsByProgram(ctx context.Context, programCode string) ([]Unit, error)

	CreateEvaluation(ctx context.Context, e *Evaluation) error
	Evaluation(ctx context.Context, id string) (*Evaluation, error)
	EvaluationsByUnit(ctx context.Context, unitID string) ([]Evaluation, error)
	CloseEvaluation(ctx context.Context, id string) error
	CloseEvaluations(ctx context.Context, unitID string) (int, error)

	ApplyGrades(ctx context.Context, entries []GradeEntry) ([]ApplyOutcome, error)
	GradesByStudentUnit(ctx context.Context, studentID, unitID string) ([]GradeEntry, error)
	GradesByStudent(ctx context.Context, studentID string) ([]GradeEntry, error)
	GradeAuthors(ctx context.Context, unitID string) ([]string, error)

	Register(ctx context.Context, r *RegistrationPedagogical) error
	Registration(ctx context.Context, studentID, unitID string) (*RegistrationPedagogical, error)
	RegistrationsByUnit(ctx context.Context, unitID string) ([]RegistrationPedagogical, error)
	RegistrationsByStudent(ctx context.Context, studentID string) ([]RegistrationPedagogical, error)
	SaveRegistration(ctx context.Context, r *RegistrationPedagogical) error
}

// Evaluator converts a student's component grades into a registration
// outcome. The rules engine implements it; the indirection keeps grading
// rules out of the academic aggregate.
type Evaluator interface {
	Evaluate(ctx context.Context, studentID, unitID string) (*RegistrationPedagogical, error)
}
