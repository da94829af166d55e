package finance

import (
	"context"
	"time"

	"scolaris.org/internal/obs"
)

// Gate derives the effective financial status from the ledger. It never
// mutates the ledger; advancing moratorium and scholarship statuses is the
// reconciler's job.
type Gate struct {
	store Store
	now   func() time.Time
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithGateClock overrides the time source, primarily for tests.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func NewGate(store Store, opts ...GateOption) *Gate {
	g := &Gate{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EffectiveStatus computes the student's balance and gate status as of now.
// Balance is the sum of non-cancelled invoice totals minus payments and
// active scholarship coverage. A positive balance blocks the student unless
// an active moratorium is still within its end date.
func (g *Gate) EffectiveStatus(ctx context.Context, studentID string) (*Report, error) {
	return g.EffectiveStatusAt(ctx, studentID, g.now().UTC())
}

// EffectiveStatusAt is EffectiveStatus evaluated at an explicit instant.
func (g *Gate) EffectiveStatusAt(ctx context.Context, studentID string, asOf time.Time) (*Report, error) {
	if studentID == "" {
		return nil, ErrInvalidInput
	}
	invoices, err := g.store.InvoicesByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	payments, err := g.store.PaymentsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	scholarships, err := g.store.ScholarshipsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var invoiced int64
	for _, inv := range invoices {
		if inv.Status == InvoiceCancelled {
			continue
		}
		invoiced += inv.Total.Amount
	}
	var paid int64
	for _, p := range payments {
		paid += p.Amount.Amount
	}
	var covered int64
	for _, sch := range scholarships {
		if !scholarshipCovers(sch, asOf) {
			continue
		}
		if sch.Percent > 0 {
			covered += invoiced * int64(sch.Percent) / 100
		} else {
			covered += sch.Amount.Amount
		}
	}

	balance := invoiced - paid - covered
	report := &Report{
		StudentID: studentID,
		Balance:   Money{Currency: DefaultCurrency, Amount: balance},
	}
	switch {
	case balance <= 0:
		report.Status = StatusOK
	default:
		moratoria, err := g.store.MoratoriaByStudent(ctx, studentID)
		if err != nil {
			return nil, err
		}
		report.Status = StatusBlocked
		for i := range moratoria {
			m := moratoria[i]
			if m.Status == MoratoriumActive && !asOf.After(m.EndDate) {
				report.Status = StatusMoratorium
				report.Moratorium = &m
				break
			}
		}
	}
	obs.FinancialGateChecks.WithLabelValues(report.Status).Inc()
	return report, nil
}

// CheckAccess returns ErrFinancialBlock when the student's effective status
// is Blocked. OK and Moratorium both grant access to grades.
func (g *Gate) CheckAccess(ctx context.Context, studentID string) error {
	report, err := g.EffectiveStatus(ctx, studentID)
	if err != nil {
		return err
	}
	if report.Status == StatusBlocked {
		return ErrFinancialBlock
	}
	return nil
}

func scholarshipCovers(sch Scholarship, asOf time.Time) bool {
	if sch.Status != ScholarshipActive {
		return false
	}
	if !sch.ValidFrom.IsZero() && asOf.Before(sch.ValidFrom) {
		return false
	}
	if !sch.ValidUntil.IsZero() && asOf.After(sch.ValidUntil) {
		return false
	}
	return true
}
