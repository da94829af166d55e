package academic

import (
	"errors"
	"time"
)

// Component identifies which part of a unit's assessment a grade belongs to.
type Component string

const (
	ComponentCC   Component = "CC"
	ComponentTP   Component = "TP"
	ComponentExam Component = "EXAM"
)

// ValidComponent reports whether c is a recognized assessment component.
func ValidComponent(c Component) bool {
	switch c {
	case ComponentCC, ComponentTP, ComponentExam:
		return true
	}
	return false
}

// Scores are carried in centipoints: 0..2000 maps to 0.00..20.00. No floats
// in storage or arithmetic.
const MaxScoreCentipoints = 2000

// Registration statuses. InProgress transitions to exactly one of the
// terminal statuses at jury closure.
const (
	StatusInProgress = "in_progress"
	StatusValidated  = "validated"
	StatusAjourned   = "ajourned"
)

// Program is a curriculum with its rule configuration attached as raw JSON.
// The rules package parses and validates RulesJSON.
type Program struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	FacultyCode string    `json:"faculty_code"`
	RulesJSON   []byte    `json:"rules_json"`
	CreatedAt   time.Time `json:"created_at"`
}

// Unit is one teaching unit inside a program.
type Unit struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ProgramCode string    `json:"program_code"`
	Period      string    `json:"period"`
	CreatedAt   time.Time `json:"created_at"`
}

// Evaluation is a graded session for one component of a unit. Once closed
// its grades are immutable to writers.
type Evaluation struct {
	ID          string    `json:"id"`
	UnitID      string    `json:"unit_id"`
	Component   Component `json:"component"`
	SessionDate time.Time `json:"session_date"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
}

// GradeEntry is one student's score for one evaluation. Version supports
// optimistic last-writer-wins while the evaluation is open.
type GradeEntry struct {
	ID               string    `json:"id"`
	EvaluationID     string    `json:"evaluation_id"`
	StudentID        string    `json:"student_id"`
	ScoreCentipoints int64     `json:"score_centipoints"`
	Absent           bool      `json:"absent"`
	AuthorID         string    `json:"author_id"`
	AuthorRole       string    `json:"author_role"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RegistrationPedagogical ties a student to a unit and records the outcome
// once the jury closes.
type RegistrationPedagogical struct {
	StudentID          string     `json:"student_id"`
	UnitID             string     `json:"unit_id"`
	Status             string     `json:"status"`
	AverageCentipoints int64      `json:"average_centipoints"`
	Blocked            bool       `json:"blocked"`
	Confirmed          bool       `json:"confirmed"`
	RegisteredBy       string     `json:"registered_by"`
	ValidatedBy        string     `json:"validated_by,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Terminal reports whether the registration has reached a final outcome.
func (r *RegistrationPedagogical) Terminal() bool {
	return r.Status == StatusValidated || r.Status == StatusAjourned
}

var (
	ErrNotFound               = errors.New("academic: not found")
	ErrInvalidInput           = errors.New("academic: invalid input")
	ErrEvaluationClosed       = errors.New("academic: evaluation closed")
	ErrConcurrentModification = errors.New("academic: concurrent modification")
	ErrRegistrationTerminal   = errors.New("academic: registration already closed")
	ErrDuplicateRegistration  = errors.New("academic: student already registered")
)
