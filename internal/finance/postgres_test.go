package finance

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGNextInvoiceSeqUpserts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`insert into invoice_sequences\(year, seq\) values\(\$1, 1\)\s+on conflict \(year\) do update set seq = invoice_sequences\.seq \+ 1\s+returning seq`).
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))

	store := NewPGStore(db)
	seq, err := store.NextInvoiceSeq(context.Background(), 2026)
	if err != nil {
		t.Fatalf("NextInvoiceSeq failed: %v", err)
	}
	if seq != 42 {
		t.Fatalf("expected seq 42, got %d", seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
