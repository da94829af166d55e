package finance

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestIssueInvoiceInjectsMandatoryLines(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, WithServiceClock(testClock(now)))

	mandatory := []InvoiceLine{
		{ProductCode: "KIT_AGRO", Label: "Kit agronomie", Amount: Money{Currency: DefaultCurrency, Amount: 25000}},
		{ProductCode: "LABO", Label: "Frais laboratoire", Amount: Money{Currency: DefaultCurrency, Amount: 15000}},
	}
	requested := []InvoiceLine{
		{ProductCode: "SCOL", Label: "Scolarite", Amount: Money{Currency: DefaultCurrency, Amount: 300000}},
		{ProductCode: "KIT_AGRO", Label: "Kit agronomie", Amount: Money{Currency: DefaultCurrency, Amount: 25000}},
	}

	inv, err := svc.IssueInvoice(context.Background(), "std-1", "AGRO-L1", requested, mandatory, now.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("IssueInvoice failed: %v", err)
	}
	if len(inv.Lines) != 3 {
		t.Fatalf("expected the missing mandatory line to be appended, got %d lines", len(inv.Lines))
	}
	if inv.Total.Amount != 340000 {
		t.Fatalf("expected total 340000, got %d", inv.Total.Amount)
	}
	var labo *InvoiceLine
	for i := range inv.Lines {
		if inv.Lines[i].ProductCode == "LABO" {
			labo = &inv.Lines[i]
		}
	}
	if labo == nil || !labo.Mandatory {
		t.Fatalf("expected injected LABO line marked mandatory, got %+v", inv.Lines)
	}
}

func TestIssueInvoiceNumbersSequentially(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, WithServiceClock(testClock(now)))
	lines := []InvoiceLine{
		{ProductCode: "SCOL", Label: "Scolarite", Amount: Money{Currency: DefaultCurrency, Amount: 100000}},
	}

	first, err := svc.IssueInvoice(context.Background(), "std-1", "AGRO-L1", lines, nil, now)
	if err != nil {
		t.Fatalf("IssueInvoice failed: %v", err)
	}
	second, err := svc.IssueInvoice(context.Background(), "std-2", "AGRO-L1", lines, nil, now)
	if err != nil {
		t.Fatalf("IssueInvoice failed: %v", err)
	}
	if first.Number != "2026_FACT_SCOL_0001" {
		t.Fatalf("unexpected first number %q", first.Number)
	}
	if second.Number != "2026_FACT_SCOL_0002" {
		t.Fatalf("unexpected second number %q", second.Number)
	}
	if !strings.HasPrefix(second.Number, "2026_FACT_SCOL_") {
		t.Fatalf("unexpected number format %q", second.Number)
	}
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, WithServiceClock(testClock(now)))
	ctx := context.Background()

	inv, err := svc.IssueInvoice(ctx, "std-1", "AGRO-L1", []InvoiceLine{
		{ProductCode: "SCOL", Label: "Scolarite", Amount: Money{Currency: DefaultCurrency, Amount: 80000}},
	}, nil, now)
	if err != nil {
		t.Fatalf("IssueInvoice failed: %v", err)
	}

	if err := svc.RecordPayment(ctx, &Payment{
		InvoiceID: inv.ID,
		Amount:    Money{Currency: DefaultCurrency, Amount: 30000},
		Method:    MethodCash,
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	got, err := store.Invoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Invoice failed: %v", err)
	}
	if got.Status != InvoiceIssued {
		t.Fatalf("partial payment must not settle, got %s", got.Status)
	}

	if err := svc.RecordPayment(ctx, &Payment{
		InvoiceID: inv.ID,
		Amount:    Money{Currency: DefaultCurrency, Amount: 50000},
		Method:    MethodBank,
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	got, err = store.Invoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Invoice failed: %v", err)
	}
	if got.Status != InvoiceSettled {
		t.Fatalf("expected settled invoice, got %s", got.Status)
	}
}

func TestRecordPaymentRejectsBadMethod(t *testing.T) {
	store := NewInMemory()
	err := store.RecordPayment(context.Background(), &Payment{
		StudentID: "std-1",
		Amount:    Money{Currency: DefaultCurrency, Amount: 1000},
		Method:    "CHEQUE",
	})
	if err != ErrInvalidMethod {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}
