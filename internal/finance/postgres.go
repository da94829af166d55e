package finance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"scolaris.org/internal/ids"
)

// PGStore implements Store on PostgreSQL. Invoice lines are stored as a
// jsonb column since they are only ever read back whole.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv == nil || inv.StudentID == "" || len(inv.Lines) == 0 {
		return ErrInvalidInput
	}
	if !inv.Total.IsPositive() {
		return ErrInvalidAmount
	}
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	if inv.Status == "" {
		inv.Status = InvoiceIssued
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into invoices(id, number, student_id, program_code, lines, total_amount, currency, status, issue_date, due_date, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inv.ID, inv.Number, inv.StudentID, inv.ProgramCode, lines,
		inv.Total.Amount, inv.Total.Currency, inv.Status, inv.IssueDate, inv.DueDate, inv.CreatedAt,
	)
	return err
}

func (s *PGStore) Invoice(ctx context.Context, id string) (*Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, number, student_id, program_code, lines, total_amount, currency, status, issue_date, due_date, created_at
		 from invoices where id = $1`, id)
	return scanInvoice(row)
}

func (s *PGStore) InvoicesByStudent(ctx context.Context, studentID string) ([]Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, number, student_id, program_code, lines, total_amount, currency, status, issue_date, due_date, created_at
		 from invoices where student_id = $1 order by created_at`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *PGStore) SetInvoiceStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `update invoices set status = $2 where id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) NextInvoiceSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		`insert into invoice_sequences(year, seq) values($1, 1)
		 on conflict (year) do update set seq = invoice_sequences.seq + 1
		 returning seq`, year).Scan(&seq)
	return seq, err
}

func (s *PGStore) RecordPayment(ctx context.Context, p *Payment) error {
	if p == nil || p.StudentID == "" {
		return ErrInvalidInput
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !ValidMethod(p.Method) {
		return ErrInvalidMethod
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into payments(id, invoice_id, student_id, amount, currency, method, reference, received_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.InvoiceID, p.StudentID, p.Amount.Amount, p.Amount.Currency, p.Method, p.Reference, p.ReceivedAt,
	)
	return err
}

func (s *PGStore) PaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, invoice_id, student_id, amount, currency, method, reference, received_at
		 from payments where student_id = $1 order by received_at`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.StudentID, &p.Amount.Amount, &p.Amount.Currency, &p.Method, &p.Reference, &p.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) GrantMoratorium(ctx context.Context, m *Moratorium) error {
	if m == nil || m.StudentID == "" || m.EndDate.IsZero() {
		return ErrInvalidInput
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	if m.Status == "" {
		m.Status = MoratoriumActive
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into moratoria(id, student_id, deferred_amount, currency, end_date, status, granted_by, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.StudentID, m.Deferred.Amount, m.Deferred.Currency, m.EndDate, m.Status, m.GrantedBy, m.CreatedAt,
	)
	return err
}

func (s *PGStore) MoratoriaByStudent(ctx context.Context, studentID string) ([]Moratorium, error) {
	return s.listMoratoria(ctx,
		`select id, student_id, deferred_amount, currency, end_date, status, granted_by, created_at
		 from moratoria where student_id = $1 order by created_at`, studentID)
}

func (s *PGStore) ActiveMoratoria(ctx context.Context) ([]Moratorium, error) {
	return s.listMoratoria(ctx,
		`select id, student_id, deferred_amount, currency, end_date, status, granted_by, created_at
		 from moratoria where status = $1 order by created_at`, MoratoriumActive)
}

func (s *PGStore) SetMoratoriumStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `update moratoria set status = $2 where id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) AwardScholarship(ctx context.Context, sch *Scholarship) error {
	if sch == nil || sch.StudentID == "" {
		return ErrInvalidInput
	}
	if sch.Amount.IsPositive() == (sch.Percent > 0) {
		return ErrInvalidInput
	}
	if sch.ID == "" {
		sch.ID = ids.New()
	}
	if sch.Status == "" {
		sch.Status = ScholarshipActive
	}
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into scholarships(id, student_id, kind, amount, currency, percent, valid_from, valid_until, status, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sch.ID, sch.StudentID, sch.Kind, sch.Amount.Amount, sch.Amount.Currency, sch.Percent,
		sch.ValidFrom, sch.ValidUntil, sch.Status, sch.CreatedAt,
	)
	return err
}

func (s *PGStore) ScholarshipsByStudent(ctx context.Context, studentID string) ([]Scholarship, error) {
	return s.listScholarships(ctx,
		`select id, student_id, kind, amount, currency, percent, valid_from, valid_until, status, created_at
		 from scholarships where student_id = $1 order by created_at`, studentID)
}

func (s *PGStore) ActiveScholarships(ctx context.Context) ([]Scholarship, error) {
	return s.listScholarships(ctx,
		`select id, student_id, kind, amount, currency, percent, valid_from, valid_until, status, created_at
		 from scholarships where status = $1 order by created_at`, ScholarshipActive)
}

func (s *PGStore) SetScholarshipStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `update scholarships set status = $2 where id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) listMoratoria(ctx context.Context, query string, arg any) ([]Moratorium, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Moratorium
	for rows.Next() {
		var m Moratorium
		if err := rows.Scan(&m.ID, &m.StudentID, &m.Deferred.Amount, &m.Deferred.Currency, &m.EndDate, &m.Status, &m.GrantedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) listScholarships(ctx context.Context, query string, arg any) ([]Scholarship, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Scholarship
	for rows.Next() {
		var sch Scholarship
		if err := rows.Scan(&sch.ID, &sch.StudentID, &sch.Kind, &sch.Amount.Amount, &sch.Amount.Currency, &sch.Percent,
			&sch.ValidFrom, &sch.ValidUntil, &sch.Status, &sch.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var (
		inv   Invoice
		lines []byte
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.StudentID, &inv.ProgramCode, &lines,
		&inv.Total.Amount, &inv.Total.Currency, &inv.Status, &inv.IssueDate, &inv.DueDate, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &inv.Lines); err != nil {
		return nil, err
	}
	return &inv, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
