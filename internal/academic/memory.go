package academic

import (
	"context"
	"sync"
	"time"

	"scolaris.org/internal/ids"
)

// InMemory implements Store for tests and single-node deployments. One
// mutex covers every aggregate so a grade batch is atomic to readers.
type InMemory struct {
	mu            sync.RWMutex
	programs      map[string]*Program
	units         map[string]*Unit
	evaluations   map[string]*Evaluation
	grades        map[string]*GradeEntry // key evaluationID|studentID
	registrations map[string]*RegistrationPedagogical
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		programs:      make(map[string]*Program),
		units:         make(map[string]*Unit),
		evaluations:   make(map[string]*Evaluation),
		grades:        make(map[string]*GradeEntry),
		registrations: make(map[string]*RegistrationPedagogical),
	}
}

func gradeKey(evaluationID, studentID string) string {
	return evaluationID + "|" + studentID
}

func regKey(studentID, unitID string) string {
	return studentID + "|" + unitID
}

func (s *InMemory) CreateProgram(ctx context.Context, p *Program) error {
	if p == nil || p.Code == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[p.Code]; ok {
		return ErrInvalidInput
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.programs[p.Code] = &cp
	return nil
}

func (s *InMemory) Program(ctx context.Context, code string) (*Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) CreateUnit(ctx context.Context, u *Unit) error {
	if u == nil || u.ProgramCode == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	s.units[u.ID] = &cp
	return nil
}

func (s *InMemory) Unit(ctx context.Context, id string) (*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) UnitsByProgram(ctx context.Context, programCode string) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Unit
	for _, u := range s.units {
		if u.ProgramCode == programCode {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *InMemory) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	if e == nil || e.UnitID == "" || !ValidComponent(e.Component) {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	s.evaluations[e.ID] = &cp
	return nil
}

func (s *InMemory) Evaluation(ctx context.Context, id string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evaluations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemory) EvaluationsByUnit(ctx context.Context, unitID string) ([]Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Evaluation
	for _, e := range s.evaluations {
		if e.UnitID == unitID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *InMemory) CloseEvaluation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluations[id]
	if !ok {
		return ErrNotFound
	}
	e.Closed = true
	return nil
}

func (s *InMemory) CloseEvaluations(ctx context.Context, unitID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.evaluations {
		if e.UnitID == unitID && !e.Closed {
			e.Closed = true
			n++
		}
	}
	return n, nil
}

func (s *InMemory) ApplyGrades(ctx context.Context, entries []GradeEntry) ([]ApplyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	out := make([]ApplyOutcome, len(entries))
	for i, entry := range entries {
		eval, ok := s.evaluations[entry.EvaluationID]
		if !ok {
			out[i].Err = ErrNotFound
			continue
		}
		if eval.Closed {
			out[i].Err = ErrEvaluationClosed
			continue
		}
		key := gradeKey(entry.EvaluationID, entry.StudentID)
		existing, ok := s.grades[key]
		if !ok {
			entry.ID = ids.New()
			entry.Version = 1
			entry.CreatedAt = now
			entry.UpdatedAt = now
			cp := entry
			s.grades[key] = &cp
			out[i].Created = true
			continue
		}
		if entry.Version != existing.Version {
			out[i].Err = ErrConcurrentModification
			continue
		}
		existing.ScoreCentipoints = entry.ScoreCentipoints
		existing.Absent = entry.Absent
		existing.AuthorID = entry.AuthorID
		existing.AuthorRole = entry.AuthorRole
		existing.Version++
		existing.UpdatedAt = now
	}
	return out, nil
}

func (s *InMemory) GradesByStudentUnit(ctx context.Context, studentID, unitID string) ([]GradeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GradeEntry
	for _, g := range s.grades {
		if g.StudentID != studentID {
			continue
		}
		eval, ok := s.evaluations[g.EvaluationID]
		if !ok || eval.UnitID != unitID {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *InMemory) GradesByStudent(ctx context.Context, studentID string) ([]GradeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GradeEntry
	for _, g := range s.grades {
		if g.StudentID == studentID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *InMemory) GradeAuthors(ctx context.Context, unitID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, g := range s.grades {
		eval, ok := s.evaluations[g.EvaluationID]
		if !ok || eval.UnitID != unitID {
			continue
		}
		if !seen[g.AuthorID] {
			seen[g.AuthorID] = true
			out = append(out, g.AuthorID)
		}
	}
	return out, nil
}

func (s *InMemory) Register(ctx context.Context, r *RegistrationPedagogical) error {
	if r == nil || r.StudentID == "" || r.UnitID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey(r.StudentID, r.UnitID)
	if _, ok := s.registrations[key]; ok {
		return ErrDuplicateRegistration
	}
	if r.Status == "" {
		r.Status = StatusInProgress
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	s.registrations[key] = &cp
	return nil
}

func (s *InMemory) Registration(ctx context.Context, studentID, unitID string) (*RegistrationPedagogical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[regKey(studentID, unitID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) RegistrationsByUnit(ctx context.Context, unitID string) ([]RegistrationPedagogical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RegistrationPedagogical
	for _, r := range s.registrations {
		if r.UnitID == unitID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *InMemory) RegistrationsByStudent(ctx context.Context, studentID string) ([]RegistrationPedagogical, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RegistrationPedagogical
	for _, r := range s.registrations {
		if r.StudentID == studentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *InMemory) SaveRegistration(ctx context.Context, r *RegistrationPedagogical) error {
	if r == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey(r.StudentID, r.UnitID)
	if _, ok := s.registrations[key]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.registrations[key] = &cp
	return nil
}
