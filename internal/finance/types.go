package finance

import (
	"errors"
	"fmt"
	"time"
)

// Money is represented in minor units. No floats.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }

// DefaultCurrency is the settlement currency for student accounts.
const DefaultCurrency = "XAF"

// Effective financial statuses returned by the gate.
const (
	StatusOK         = "OK"
	StatusBlocked    = "Blocked"
	StatusMoratorium = "Moratorium"
)

// Invoice statuses.
const (
	InvoiceIssued    = "issued"
	InvoiceSettled   = "settled"
	InvoiceCancelled = "cancelled"
)

// Payment methods accepted by the cashier desk.
const (
	MethodCash   = "CASH"
	MethodBank   = "BANK"
	MethodMobile = "MOBILE"
)

// Moratorium statuses.
const (
	MoratoriumActive  = "Active"
	MoratoriumHonored = "Honored"
	MoratoriumOverdue = "Overdue"
)

// Scholarship statuses.
const (
	ScholarshipActive    = "Active"
	ScholarshipSuspended = "Suspended"
	ScholarshipEnded     = "Ended"
)

// InvoiceLine is one billed item. Mandatory lines come from the program
// rule configuration and cannot be removed at issue time.
type InvoiceLine struct {
	ProductCode string `json:"product_code"`
	Label       string `json:"label"`
	Amount      Money  `json:"amount"`
	Mandatory   bool   `json:"mandatory"`
}

// Invoice is a tuition or fee invoice for one student and academic year.
type Invoice struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	StudentID   string        `json:"student_id"`
	ProgramCode string        `json:"program_code"`
	Lines       []InvoiceLine `json:"lines"`
	Total       Money         `json:"total"`
	Status      string        `json:"status"`
	IssueDate   time.Time     `json:"issue_date"`
	DueDate     time.Time     `json:"due_date"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Payment is one settlement received against an invoice.
type Payment struct {
	ID         string    `json:"id"`
	InvoiceID  string    `json:"invoice_id"`
	StudentID  string    `json:"student_id"`
	Amount     Money     `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Moratorium defers part of a student's balance until EndDate.
type Moratorium struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Deferred  Money     `json:"deferred"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	GrantedBy string    `json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Scholarship covers part of a student's fees, either a fixed amount or a
// percentage of invoiced totals. Exactly one of Amount and Percent is set.
type Scholarship struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Kind       string    `json:"kind"`
	Amount     Money     `json:"amount"`
	Percent    int       `json:"percent,omitempty"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Report is the gate's answer for one student at one point in time.
type Report struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Balance   Money  `json:"balance"`
	// Moratorium is set when an active moratorium is the reason the
	// student is not blocked.
	Moratorium *Moratorium `json:"moratorium,omitempty"`
}

var (
	ErrNotFound       = errors.New("finance: not found")
	ErrInvalidInput   = errors.New("finance: invalid input")
	ErrInvalidAmount  = errors.New("finance: invalid amount (must be > 0)")
	ErrInvalidMethod  = errors.New("finance: invalid payment method")
	ErrFinancialBlock = errors.New("finance: access blocked for unpaid balance")
)

// FormatInvoiceNumber renders the sequential institutional invoice number,
// for example 2026_FACT_SCOL_0042.
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%d_FACT_SCOL_%04d", year, seq)
}

// ValidMethod reports whether m is an accepted payment method.
func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodBank, MethodMobile:
		return true
	}
	return false
}
