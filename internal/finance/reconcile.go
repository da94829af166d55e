package finance

import (
	"context"
	"time"
)

// Reconciler is the scheduled batch collaborator. It advances moratorium and
// scholarship statuses; the gate itself only reads.
type Reconciler struct {
	store Store
	gate  *Gate
}

func NewReconciler(store Store, gate *Gate) *Reconciler {
	return &Reconciler{store: store, gate: gate}
}

// Result summarizes one reconciliation pass.
type Result struct {
	MoratoriaHonored  int
	MoratoriaOverdue  int
	ScholarshipsEnded int
}

// Run advances every active moratorium and scholarship as of the given
// instant. A moratorium whose student has cleared the balance becomes
// Honored; one past its end date with money still owed becomes Overdue.
func (r *Reconciler) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	res := &Result{}

	moratoria, err := r.store.ActiveMoratoria(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range moratoria {
		report, err := r.gate.EffectiveStatusAt(ctx, m.StudentID, asOf)
		if err != nil {
			return nil, err
		}
		switch {
		case report.Balance.Amount <= 0:
			if err := r.store.SetMoratoriumStatus(ctx, m.ID, MoratoriumHonored); err != nil {
				return nil, err
			}
			res.MoratoriaHonored++
		case asOf.After(m.EndDate):
			if err := r.store.SetMoratoriumStatus(ctx, m.ID, MoratoriumOverdue); err != nil {
				return nil, err
			}
			res.MoratoriaOverdue++
		}
	}

	scholarships, err := r.store.ActiveScholarships(ctx)
	if err != nil {
		return nil, err
	}
	for _, sch := range scholarships {
		if !sch.ValidUntil.IsZero() && asOf.After(sch.ValidUntil) {
			if err := r.store.SetScholarshipStatus(ctx, sch.ID, ScholarshipEnded); err != nil {
				return nil, err
			}
			res.ScholarshipsEnded++
		}
	}
	return res, nil
}
