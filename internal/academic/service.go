package academic

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/authz"
)

var validate = validator.New()

// GradeSubmission is one entry of a bulk grade upload.
type GradeSubmission struct {
	EvaluationID     string `json:"evaluation_id" validate:"required"`
	StudentID        string `json:"student_id" validate:"required"`
	ScoreCentipoints int64  `json:"score_centipoints" validate:"min=0,max=2000"`
	Absent           bool   `json:"absent"`
	Version          int    `json:"version" validate:"min=0"`
}

// SubmissionFailure explains why one entry of a batch was not applied.
type SubmissionFailure struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkResult summarizes a bulk grade submission.
type BulkResult struct {
	Created  int                 `json:"created"`
	Updated  int                 `json:"updated"`
	Failures []SubmissionFailure `json:"failures,omitempty"`
}

// JuryResult summarizes one jury closure.
type JuryResult struct {
	UnitID            string                    `json:"unit_id"`
	EvaluationsClosed int                       `json:"evaluations_closed"`
	Outcomes          []RegistrationPedagogical `json:"outcomes"`
}

// Service runs the academic operations behind authorization.
type Service struct {
	store     Store
	authz     *authz.Authorizer
	evaluator Evaluator
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, az *authz.Authorizer, opts ...Option) *Service {
	s := &Service{store: store, authz: az, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEvaluator wires the rule engine in. Done after construction because
// the engine itself reads from the same store.
func (s *Service) SetEvaluator(ev Evaluator) { s.evaluator = ev }

// RegisterStudent opens a pedagogical registration for a student in a unit.
func (s *Service) RegisterStudent(ctx context.Context, rc *authz.ActiveRoleContext, studentID, unitID string) (*RegistrationPedagogical, error) {
	if err := s.authz.Authorize(ctx, rc, authz.ActionRegistrationRegister, authz.Target{Type: "unit", ID: unitID}); err != nil {
		return nil, err
	}
	if _, err := s.store.Unit(ctx, unitID); err != nil {
		return nil, err
	}
	reg := &RegistrationPedagogical{
		StudentID:    studentID,
		UnitID:       unitID,
		Status:       StatusInProgress,
		RegisteredBy: rc.IdentityID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Register(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// BulkSubmit validates and applies a grade batch. Entries that fail
// validation or hit a closed evaluation are reported individually; the
// remainder is applied atomically with respect to readers.
func (s *Service) BulkSubmit(ctx context.Context, rc *authz.ActiveRoleContext, subs []GradeSubmission) (*BulkResult, error) {
	if err := s.authz.Authorize(ctx, rc, authz.ActionGradesSubmit, authz.Target{Type: "grade_batch"}); err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrInvalidInput
	}

	res := &BulkResult{}
	entries := make([]GradeEntry, 0, len(subs))
	indexes := make([]int, 0, len(subs))
	for i, sub := range subs {
		if err := validate.Struct(sub); err != nil {
			res.Failures = append(res.Failures, SubmissionFailure{Index: i, StudentID: sub.StudentID, Reason: "invalid submission"})
			continue
		}
		if sub.Absent && sub.ScoreCentipoints != 0 {
			res.Failures = append(res.Failures, SubmissionFailure{Index: i, StudentID: sub.StudentID, Reason: "absent entry carries a score"})
			continue
		}
		entries = append(entries, GradeEntry{
			EvaluationID:     sub.EvaluationID,
			StudentID:        sub.StudentID,
			ScoreCentipoints: sub.ScoreCentipoints,
			Absent:           sub.Absent,
			AuthorID:         rc.IdentityID,
			AuthorRole:       rc.Role,
			Version:          sub.Version,
		})
		indexes = append(indexes, i)
	}

	if len(entries) > 0 {
		outcomes, err := s.store.ApplyGrades(ctx, entries)
		if err != nil {
			return nil, err
		}
		for j, out := range outcomes {
			switch {
			case out.Err != nil:
				res.Failures = append(res.Failures, SubmissionFailure{
					Index:     indexes[j],
					StudentID: entries[j].StudentID,
					Reason:    failureReason(out.Err),
				})
			case out.Created:
				res.Created++
			default:
				res.Updated++
			}
		}
	}
	_ = audit.LogEvent(ctx, "grades.submitted", map[string]any{
		"created": res.Created, "updated": res.Updated, "failed": len(res.Failures),
	})
	return res, nil
}

// FinalizeEvaluation freezes one evaluation so further submissions fail.
// An actor who authored grades in the evaluation's unit cannot finalize it.
func (s *Service) FinalizeEvaluation(ctx context.Context, rc *authz.ActiveRoleContext, evaluationID string) (*Evaluation, error) {
	eval, err := s.store.Evaluation(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	unit, err := s.store.Unit(ctx, eval.UnitID)
	if err != nil {
		return nil, err
	}
	faculty := ""
	if program, err := s.store.Program(ctx, unit.ProgramCode); err == nil {
		faculty = program.FacultyCode
	}
	submitter := ""
	authors, err := s.store.GradeAuthors(ctx, eval.UnitID)
	if err != nil {
		return nil, err
	}
	for _, a := range authors {
		if a == rc.IdentityID {
			submitter = a
			break
		}
	}
	target := authz.Target{Type: "evaluation", ID: evaluationID, FacultyCode: faculty, SubmitterID: submitter}
	if err := s.authz.Authorize(ctx, rc, authz.ActionGradeFinalize, target); err != nil {
		return nil, err
	}
	if !eval.Closed {
		if err := s.store.CloseEvaluation(ctx, evaluationID); err != nil {
			return nil, err
		}
		eval.Closed = true
	}
	_ = audit.LogEvent(ctx, "evaluation.finalized", map[string]any{
		"evaluation": evaluationID, "unit": eval.UnitID,
	})
	return eval, nil
}

// CloseJury closes every evaluation of the unit and evaluates all of its
// registrations. An actor who authored any of the unit's grades cannot
// close its jury.
func (s *Service) CloseJury(ctx context.Context, rc *authz.ActiveRoleContext, unitID string) (*JuryResult, error) {
	unit, err := s.store.Unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	faculty := ""
	if program, err := s.store.Program(ctx, unit.ProgramCode); err == nil {
		faculty = program.FacultyCode
	}
	submitter := ""
	authors, err := s.store.GradeAuthors(ctx, unitID)
	if err != nil {
		return nil, err
	}
	for _, a := range authors {
		if a == rc.IdentityID {
			submitter = a
			break
		}
	}
	target := authz.Target{Type: "unit", ID: unitID, FacultyCode: faculty, SubmitterID: submitter}
	if err := s.authz.Authorize(ctx, rc, authz.ActionJuryClose, target); err != nil {
		return nil, err
	}
	if s.evaluator == nil {
		return nil, errors.New("academic: no evaluator wired")
	}

	closed, err := s.store.CloseEvaluations(ctx, unitID)
	if err != nil {
		return nil, err
	}
	regs, err := s.store.RegistrationsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	result := &JuryResult{UnitID: unitID, EvaluationsClosed: closed}
	for _, reg := range regs {
		if reg.Terminal() {
			result.Outcomes = append(result.Outcomes, reg)
			continue
		}
		outcome, err := s.evaluator.Evaluate(ctx, reg.StudentID, unitID)
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, *outcome)
	}
	_ = audit.LogEvent(ctx, "jury.closed", map[string]any{
		"unit": unitID, "registrations": len(result.Outcomes),
	})
	return result, nil
}

// ValidateRegistration confirms the administrative side of a registration.
// Separation of duties forbids confirming a registration you opened.
func (s *Service) ValidateRegistration(ctx context.Context, rc *authz.ActiveRoleContext, studentID, unitID string) (*RegistrationPedagogical, error) {
	reg, err := s.store.Registration(ctx, studentID, unitID)
	if err != nil {
		return nil, err
	}
	target := authz.Target{Type: "registration", ID: unitID, OwnerID: studentID, SubmitterID: reg.RegisteredBy}
	if err := s.authz.Authorize(ctx, rc, authz.ActionRegistrationValidate, target); err != nil {
		return nil, err
	}
	if reg.Confirmed {
		return reg, nil
	}
	reg.Confirmed = true
	reg.ValidatedBy = rc.IdentityID
	if err := s.store.SaveRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// ReopenRegistration reverts a terminal registration so grades can be
// corrected. Restricted to the systems administrator and always audited.
func (s *Service) ReopenRegistration(ctx context.Context, rc *authz.ActiveRoleContext, studentID, unitID string) (*RegistrationPedagogical, error) {
	target := authz.Target{Type: "registration", ID: unitID, OwnerID: studentID}
	if err := s.authz.Authorize(ctx, rc, authz.ActionRegistrationReopen, target); err != nil {
		return nil, err
	}
	reg, err := s.store.Registration(ctx, studentID, unitID)
	if err != nil {
		return nil, err
	}
	if !reg.Terminal() {
		return reg, nil
	}
	reg.Status = StatusInProgress
	reg.AverageCentipoints = 0
	reg.Blocked = false
	reg.ClosedAt = nil
	if err := s.store.SaveRegistration(ctx, reg); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "registration.reopened", map[string]any{
		"student": studentID, "unit": unitID,
	})
	return reg, nil
}

// Transcript is a student's grades plus registration outcomes.
type Transcript struct {
	StudentID     string                    `json:"student_id"`
	Grades        []GradeEntry              `json:"grades"`
	Registrations []RegistrationPedagogical `json:"registrations"`
}

// StudentGrades returns a student's transcript. Students reach their own
// through the financial gate; staff roles see any student in scope.
func (s *Service) StudentGrades(ctx context.Context, rc *authz.ActiveRoleContext, studentID string) (*Transcript, error) {
	target := authz.Target{Type: "student", ID: studentID, OwnerID: studentID}
	if err := s.authz.Authorize(ctx, rc, authz.ActionGradesRead, target); err != nil {
		return nil, err
	}
	grades, err := s.store.GradesByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	regs, err := s.store.RegistrationsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &Transcript{StudentID: studentID, Grades: grades, Registrations: regs}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEvaluationClosed):
		return "evaluation closed"
	case errors.Is(err, ErrConcurrentModification):
		return "stale version"
	case errors.Is(err, ErrNotFound):
		return "unknown evaluation"
	default:
		return "not applied"
	}
}
