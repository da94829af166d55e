package finance

import (
	"context"
	"fmt"
	"time"
)

// Service exposes the cashier-desk operations over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source, primarily for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueInvoice numbers and persists a new invoice. Mandatory lines are the
// program's required products: any that the request omitted are appended
// before the total is computed, so an issued invoice always carries them.
func (s *Service) IssueInvoice(ctx context.Context, studentID, programCode string, lines, mandatory []InvoiceLine, dueDate time.Time) (*Invoice, error) {
	if studentID == "" {
		return nil, ErrInvalidInput
	}
	lines = ensureMandatoryLines(lines, mandatory)
	if len(lines) == 0 {
		return nil, ErrInvalidInput
	}
	var total int64
	for _, l := range lines {
		if l.Amount.Amount <= 0 {
			return nil, fmt.Errorf("%w: line %s", ErrInvalidAmount, l.ProductCode)
		}
		total += l.Amount.Amount
	}
	now := s.now().UTC()
	seq, err := s.store.NextInvoiceSeq(ctx, now.Year())
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		Number:      FormatInvoiceNumber(now.Year(), seq),
		StudentID:   studentID,
		ProgramCode: programCode,
		Lines:       lines,
		Total:       Money{Currency: DefaultCurrency, Amount: total},
		Status:      InvoiceIssued,
		IssueDate:   now,
		DueDate:     dueDate,
	}
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RecordPayment persists a payment and settles the invoice once the sum of
// its payments reaches the invoiced total.
func (s *Service) RecordPayment(ctx context.Context, p *Payment) error {
	if p == nil || p.InvoiceID == "" {
		return ErrInvalidInput
	}
	inv, err := s.store.Invoice(ctx, p.InvoiceID)
	if err != nil {
		return err
	}
	if p.StudentID == "" {
		p.StudentID = inv.StudentID
	}
	if err := s.store.RecordPayment(ctx, p); err != nil {
		return err
	}
	payments, err := s.store.PaymentsByStudent(ctx, inv.StudentID)
	if err != nil {
		return err
	}
	var paid int64
	for _, existing := range payments {
		if existing.InvoiceID == inv.ID {
			paid += existing.Amount.Amount
		}
	}
	if paid >= inv.Total.Amount && inv.Status == InvoiceIssued {
		return s.store.SetInvoiceStatus(ctx, inv.ID, InvoiceSettled)
	}
	return nil
}

// GrantMoratorium opens a deferral window for a student's outstanding balance.
func (s *Service) GrantMoratorium(ctx context.Context, m *Moratorium) error {
	if m == nil || m.EndDate.Before(s.now()) {
		return ErrInvalidInput
	}
	return s.store.GrantMoratorium(ctx, m)
}

// AwardScholarship registers a coverage grant for a student.
func (s *Service) AwardScholarship(ctx context.Context, sch *Scholarship) error {
	return s.store.AwardScholarship(ctx, sch)
}

// ensureMandatoryLines appends any required product line missing from the
// requested ones. Matching is by product code.
func ensureMandatoryLines(lines, mandatory []InvoiceLine) []InvoiceLine {
	present := make(map[string]bool, len(lines))
	for _, l := range lines {
		present[l.ProductCode] = true
	}
	for _, m := range mandatory {
		if present[m.ProductCode] {
			continue
		}
		m.Mandatory = true
		lines = append(lines, m)
	}
	return lines
}
