package finance

import (
	"context"
	"testing"
	"time"
)

func testClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func issueTestInvoice(t *testing.T, store Store, studentID string, amount int64) *Invoice {
	t.Helper()
	inv := &Invoice{
		StudentID:   studentID,
		ProgramCode: "AGRO-L1",
		Number:      FormatInvoiceNumber(2026, 1),
		Lines: []InvoiceLine{
			{ProductCode: "SCOL", Label: "Scolarite", Amount: Money{Currency: DefaultCurrency, Amount: amount}},
		},
		Total:   Money{Currency: DefaultCurrency, Amount: amount},
		DueDate: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	if err := store.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return inv
}

func TestGateBlocksUnpaidBalance(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	gate := NewGate(store, WithGateClock(testClock(now)))
	ctx := context.Background()

	issueTestInvoice(t, store, "std-1", 150000)

	report, err := gate.EffectiveStatus(ctx, "std-1")
	if err != nil {
		t.Fatalf("EffectiveStatus failed: %v", err)
	}
	if report.Status != StatusBlocked {
		t.Fatalf("expected %s, got %s", StatusBlocked, report.Status)
	}
	if report.Balance.Amount != 150000 {
		t.Fatalf("expected balance 150000, got %d", report.Balance.Amount)
	}
	if err := gate.CheckAccess(ctx, "std-1"); err != ErrFinancialBlock {
		t.Fatalf("expected ErrFinancialBlock, got %v", err)
	}
}

func TestGateMoratoriumOverridesBlock(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	gate := NewGate(store, WithGateClock(testClock(now)))
	ctx := context.Background()

	issueTestInvoice(t, store, "std-2", 150000)
	err := store.GrantMoratorium(ctx, &Moratorium{
		StudentID: "std-2",
		Deferred:  Money{Currency: DefaultCurrency, Amount: 150000},
		EndDate:   now.AddDate(0, 0, 30),
		GrantedBy: "daf-1",
	})
	if err != nil {
		t.Fatalf("GrantMoratorium failed: %v", err)
	}

	report, err := gate.EffectiveStatus(ctx, "std-2")
	if err != nil {
		t.Fatalf("EffectiveStatus failed: %v", err)
	}
	if report.Status != StatusMoratorium {
		t.Fatalf("expected %s, got %s", StatusMoratorium, report.Status)
	}
	if report.Moratorium == nil {
		t.Fatal("expected moratorium detail on report")
	}
	if err := gate.CheckAccess(ctx, "std-2"); err != nil {
		t.Fatalf("moratorium should grant access, got %v", err)
	}

	// Past the end date the deferral no longer shields the student.
	late := NewGate(store, WithGateClock(testClock(now.AddDate(0, 0, 45))))
	report, err = late.EffectiveStatus(ctx, "std-2")
	if err != nil {
		t.Fatalf("EffectiveStatus failed: %v", err)
	}
	if report.Status != StatusBlocked {
		t.Fatalf("expected %s after end date, got %s", StatusBlocked, report.Status)
	}
}

func TestGatePaymentsAndScholarshipClearBalance(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	gate := NewGate(store, WithGateClock(testClock(now)))
	ctx := context.Background()

	inv := issueTestInvoice(t, store, "std-3", 200000)
	err := store.RecordPayment(ctx, &Payment{
		InvoiceID: inv.ID,
		StudentID: "std-3",
		Amount:    Money{Currency: DefaultCurrency, Amount: 100000},
		Method:    MethodMobile,
		Reference: "MM-778",
	})
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	err = store.AwardScholarship(ctx, &Scholarship{
		StudentID: "std-3",
		Kind:      "excellence",
		Percent:   50,
		ValidFrom: now.AddDate(0, -1, 0),
	})
	if err != nil {
		t.Fatalf("AwardScholarship failed: %v", err)
	}

	report, err := gate.EffectiveStatus(ctx, "std-3")
	if err != nil {
		t.Fatalf("EffectiveStatus failed: %v", err)
	}
	if report.Status != StatusOK {
		t.Fatalf("expected %s, got %s (balance %d)", StatusOK, report.Status, report.Balance.Amount)
	}
	if report.Balance.Amount != 0 {
		t.Fatalf("expected zero balance, got %d", report.Balance.Amount)
	}
}

func TestGateRejectsUnknownStudentID(t *testing.T) {
	gate := NewGate(NewInMemory())
	if _, err := gate.EffectiveStatus(context.Background(), ""); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReconcilerAdvancesMoratoria(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gate := NewGate(store, WithGateClock(testClock(now)))
	ctx := context.Background()

	// Overdue: balance unpaid past the end date.
	issueTestInvoice(t, store, "std-4", 90000)
	if err := store.GrantMoratorium(ctx, &Moratorium{
		StudentID: "std-4",
		Deferred:  Money{Currency: DefaultCurrency, Amount: 90000},
		EndDate:   now.AddDate(0, 0, -1),
	}); err != nil {
		t.Fatalf("GrantMoratorium failed: %v", err)
	}

	// Honored: balance cleared before the end date.
	inv := issueTestInvoice(t, store, "std-5", 50000)
	if err := store.GrantMoratorium(ctx, &Moratorium{
		StudentID: "std-5",
		Deferred:  Money{Currency: DefaultCurrency, Amount: 50000},
		EndDate:   now.AddDate(0, 0, 30),
	}); err != nil {
		t.Fatalf("GrantMoratorium failed: %v", err)
	}
	if err := store.RecordPayment(ctx, &Payment{
		InvoiceID: inv.ID,
		StudentID: "std-5",
		Amount:    Money{Currency: DefaultCurrency, Amount: 50000},
		Method:    MethodBank,
	}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	res, err := NewReconciler(store, gate).Run(ctx, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.MoratoriaOverdue != 1 || res.MoratoriaHonored != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	overdue, err := store.MoratoriaByStudent(ctx, "std-4")
	if err != nil || len(overdue) != 1 {
		t.Fatalf("MoratoriaByStudent failed: %v", err)
	}
	if overdue[0].Status != MoratoriumOverdue {
		t.Fatalf("expected Overdue, got %s", overdue[0].Status)
	}
}
