package finance

import (
	"context"
	"sync"
	"time"

	"scolaris.org/internal/ids"
)

// InMemory implements Store for tests and single-node deployments.
type InMemory struct {
	mu           sync.RWMutex
	invoices     map[string]*Invoice
	payments     map[string][]Payment // student id -> payments
	moratoria    map[string]*Moratorium
	scholarships map[string]*Scholarship
	seqByYear    map[int]int
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		invoices:     make(map[string]*Invoice),
		payments:     make(map[string][]Payment),
		moratoria:    make(map[string]*Moratorium),
		scholarships: make(map[string]*Scholarship),
		seqByYear:    make(map[int]int),
	}
}

func (s *InMemory) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv == nil || inv.StudentID == "" || len(inv.Lines) == 0 {
		return ErrInvalidInput
	}
	if !inv.Total.IsPositive() {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	if inv.Status == "" {
		inv.Status = InvoiceIssued
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	cp := *inv
	cp.Lines = append([]InvoiceLine(nil), inv.Lines...)
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *InMemory) Invoice(ctx context.Context, id string) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	cp.Lines = append([]InvoiceLine(nil), inv.Lines...)
	return &cp, nil
}

func (s *InMemory) InvoicesByStudent(ctx context.Context, studentID string) ([]Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if inv.StudentID != studentID {
			continue
		}
		cp := *inv
		cp.Lines = append([]InvoiceLine(nil), inv.Lines...)
		out = append(out, cp)
	}
	return out, nil
}

func (s *InMemory) SetInvoiceStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	return nil
}

func (s *InMemory) NextInvoiceSeq(ctx context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqByYear[year]++
	return s.seqByYear[year], nil
}

func (s *InMemory) RecordPayment(ctx context.Context, p *Payment) error {
	if p == nil || p.StudentID == "" {
		return ErrInvalidInput
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !ValidMethod(p.Method) {
		return ErrInvalidMethod
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = time.Now().UTC()
	}
	s.payments[p.StudentID] = append(s.payments[p.StudentID], *p)
	return nil
}

func (s *InMemory) PaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Payment(nil), s.payments[studentID]...), nil
}

func (s *InMemory) GrantMoratorium(ctx context.Context, m *Moratorium) error {
	if m == nil || m.StudentID == "" || m.EndDate.IsZero() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = ids.New()
	}
	if m.Status == "" {
		m.Status = MoratoriumActive
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	cp := *m
	s.moratoria[m.ID] = &cp
	return nil
}

func (s *InMemory) MoratoriaByStudent(ctx context.Context, studentID string) ([]Moratorium, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Moratorium
	for _, m := range s.moratoria {
		if m.StudentID == studentID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *InMemory) SetMoratoriumStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.moratoria[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	return nil
}

func (s *InMemory) ActiveMoratoria(ctx context.Context) ([]Moratorium, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Moratorium
	for _, m := range s.moratoria {
		if m.Status == MoratoriumActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *InMemory) AwardScholarship(ctx context.Context, sch *Scholarship) error {
	if sch == nil || sch.StudentID == "" {
		return ErrInvalidInput
	}
	if sch.Amount.IsPositive() == (sch.Percent > 0) {
		return ErrInvalidInput
	}
	if sch.Percent < 0 || sch.Percent > 100 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sch.ID == "" {
		sch.ID = ids.New()
	}
	if sch.Status == "" {
		sch.Status = ScholarshipActive
	}
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = time.Now().UTC()
	}
	cp := *sch
	s.scholarships[sch.ID] = &cp
	return nil
}

func (s *InMemory) ScholarshipsByStudent(ctx context.Context, studentID string) ([]Scholarship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Scholarship
	for _, sch := range s.scholarships {
		if sch.StudentID == studentID {
			out = append(out, *sch)
		}
	}
	return out, nil
}

func (s *InMemory) SetScholarshipStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.scholarships[id]
	if !ok {
		return ErrNotFound
	}
	sch.Status = status
	return nil
}

func (s *InMemory) ActiveScholarships(ctx context.Context) ([]Scholarship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Scholarship
	for _, sch := range s.scholarships {
		if sch.Status == ScholarshipActive {
			out = append(out, *sch)
		}
	}
	return out, nil
}
