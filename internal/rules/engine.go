package rules

import (
	"context"
	"fmt"
	"math"
	"time"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/obs"
)

// Engine turns component grades into registration outcomes according to
// each program's rule document. It implements academic.Evaluator.
type Engine struct {
	store academic.Store
	now   func() time.Time
}

var _ academic.Evaluator = (*Engine)(nil)

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the time source, primarily for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store academic.Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes the outcome for one registration. A registration that
// already reached a terminal status is returned unchanged, so re-running a
// jury closure is safe.
func (e *Engine) Evaluate(ctx context.Context, studentID, unitID string) (*academic.RegistrationPedagogical, error) {
	reg, err := e.store.Registration(ctx, studentID, unitID)
	if err != nil {
		return nil, err
	}
	if reg.Terminal() {
		return reg, nil
	}

	unit, err := e.store.Unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	program, err := e.store.Program(ctx, unit.ProgramCode)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(program.Code, program.RulesJSON)
	if err != nil {
		return nil, err
	}

	scores, err := e.componentScores(ctx, studentID, unitID)
	if err != nil {
		return nil, err
	}

	avg := weightedAverage(doc.ComponentWeights, scores)
	status := academic.StatusAjourned
	blocked := false
	floor := toCentipoints(doc.BlockingFloor)
	for _, component := range doc.BlockingComponents {
		if scores[component] < floor {
			blocked = true
		}
	}
	switch {
	case blocked:
		// Blocking floor overrides the average.
	case avg < toCentipoints(doc.EliminationThreshold):
		// Eliminated.
	case avg >= toCentipoints(doc.MinValidate):
		status = academic.StatusValidated
	}

	now := e.now().UTC()
	reg.Status = status
	reg.AverageCentipoints = avg
	reg.Blocked = blocked
	reg.ClosedAt = &now
	if err := e.store.SaveRegistration(ctx, reg); err != nil {
		return nil, err
	}
	obs.RuleEvaluations.WithLabelValues(status).Inc()
	return reg, nil
}

// componentScores averages the student's grades per component over the
// unit's closed evaluations. A closed evaluation with no entry, or an
// absence, counts as zero.
func (e *Engine) componentScores(ctx context.Context, studentID, unitID string) (map[academic.Component]int64, error) {
	evals, err := e.store.EvaluationsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	grades, err := e.store.GradesByStudentUnit(ctx, studentID, unitID)
	if err != nil {
		return nil, err
	}
	byEval := make(map[string]academic.GradeEntry, len(grades))
	for _, g := range grades {
		byEval[g.EvaluationID] = g
	}

	sums := make(map[academic.Component]int64)
	counts := make(map[academic.Component]int)
	for _, ev := range evals {
		if !ev.Closed {
			continue
		}
		var score int64
		if g, ok := byEval[ev.ID]; ok && !g.Absent {
			score = g.ScoreCentipoints
		}
		sums[ev.Component] += score
		counts[ev.Component]++
	}

	out := make(map[academic.Component]int64, len(sums))
	for component, sum := range sums {
		out[component] = divHalfUp(sum, int64(counts[component]))
	}
	return out, nil
}

// CompensationResult summarizes one compensation pass.
type CompensationResult struct {
	ProgramCode      string `json:"program_code"`
	Period           string `json:"period"`
	StudentsReviewed int    `json:"students_reviewed"`
	UnitsCompensated int    `json:"units_compensated"`
}

// ErrPeriodOpen is returned when compensation is requested before every
// sibling unit of the period has closed its evaluations.
var ErrPeriodOpen = fmt.Errorf("rules: period has open evaluations")

// CompensatePeriod runs the single deferred compensation pass over all
// sibling units of a program period. It may flip an Ajourned unit to
// Validated when the unit sits within the compensation band, the unit is
// not blocked, and the student's program average reaches the validation
// minimum. It never downgrades a Validated unit.
func (e *Engine) CompensatePeriod(ctx context.Context, programCode, period string) (*CompensationResult, error) {
	program, err := e.store.Program(ctx, programCode)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(program.Code, program.RulesJSON)
	if err != nil {
		return nil, err
	}
	res := &CompensationResult{ProgramCode: programCode, Period: period}
	if !doc.Compensation {
		return res, nil
	}

	units, err := e.store.UnitsByProgram(ctx, programCode)
	if err != nil {
		return nil, err
	}
	var periodUnits []academic.Unit
	for _, u := range units {
		if u.Period == period {
			periodUnits = append(periodUnits, u)
		}
	}
	for _, u := range periodUnits {
		evals, err := e.store.EvaluationsByUnit(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, ev := range evals {
			if !ev.Closed {
				return nil, fmt.Errorf("%w: unit %s", ErrPeriodOpen, u.Code)
			}
		}
	}

	regsByStudent := make(map[string][]academic.RegistrationPedagogical)
	for _, u := range periodUnits {
		regs, err := e.store.RegistrationsByUnit(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range regs {
			regsByStudent[r.StudentID] = append(regsByStudent[r.StudentID], r)
		}
	}

	minValidate := toCentipoints(doc.MinValidate)
	bandFloor := toCentipoints(doc.MinValidate - doc.CompensationBand)
	for _, regs := range regsByStudent {
		res.StudentsReviewed++
		var sum int64
		for _, r := range regs {
			sum += r.AverageCentipoints
		}
		programAvg := divHalfUp(sum, int64(len(regs)))
		if programAvg < minValidate {
			continue
		}
		for i := range regs {
			r := regs[i]
			if r.Status != academic.StatusAjourned || r.Blocked {
				continue
			}
			if r.AverageCentipoints < bandFloor {
				continue
			}
			r.Status = academic.StatusValidated
			if err := e.store.SaveRegistration(ctx, &r); err != nil {
				return nil, err
			}
			res.UnitsCompensated++
		}
	}
	return res, nil
}

func toCentipoints(points float64) int64 {
	return int64(math.Floor(points*100 + 0.5))
}

func weightedAverage(weights map[academic.Component]float64, scores map[academic.Component]int64) int64 {
	var acc float64
	for component, weight := range weights {
		acc += weight * float64(scores[component])
	}
	return int64(math.Floor(acc + 0.5))
}

func divHalfUp(sum, n int64) int64 {
	if n == 0 {
		return 0
	}
	return (sum + n/2) / n
}
