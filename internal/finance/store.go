package finance

import "context"

// Store persists the student financial ledger. Implementations must keep
// invoices and payments append-style: settled money is never rewritten.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	Invoice(ctx context.Context, id string) (*Invoice, error)
	InvoicesByStudent(ctx context.Context, studentID string) ([]Invoice, error)
	SetInvoiceStatus(ctx context.Context, id, status string) error
	NextInvoiceSeq(ctx context.Context, year int) (int, error)

	RecordPayment(ctx context.Context, p *Payment) error
	PaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error)

	GrantMoratorium(ctx context.Context, m *Moratorium) error
	MoratoriaByStudent(ctx context.Context, studentID string) ([]Moratorium, error)
	SetMoratoriumStatus(ctx context.Context, id, status string) error
	ActiveMoratoria(ctx context.Context) ([]Moratorium, error)

	AwardScholarship(ctx context.Context, s *Scholarship) error
	ScholarshipsByStudent(ctx context.Context, studentID string) ([]Scholarship, error)
	SetScholarshipStatus(ctx context.Context, id, status string) error
	ActiveScholarships(ctx context.Context) ([]Scholarship, error)
}
