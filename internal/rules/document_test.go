package rules

import (
	"errors"
	"strings"
	"testing"
)

const goodDocument = `{
	"component_weights": {"CC": 0.3, "TP": 0.2, "EXAM": 0.5},
	"min_validate": 10,
	"elimination_threshold": 10,
	"blocking_components": ["TP"],
	"blocking_floor": 10,
	"compensation": true,
	"compensation_band": 2,
	"mandatory_products": [
		{"code": "KIT_AGRO", "label": "Kit agronomie", "amount_minor": 25000}
	]
}`

func TestParseValidDocument(t *testing.T) {
	doc, err := Parse("AGRO-L1", []byte(goodDocument))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.ComponentWeights) != 3 {
		t.Fatalf("expected 3 weights, got %d", len(doc.ComponentWeights))
	}
	if !doc.Compensation || doc.CompensationBand != 2 {
		t.Fatalf("unexpected compensation settings: %+v", doc)
	}
	lines := doc.InvoiceLines("XAF")
	if len(lines) != 1 || lines[0].ProductCode != "KIT_AGRO" || lines[0].AmountMinor != 25000 {
		t.Fatalf("unexpected mandatory lines: %+v", lines)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	raw := `{"component_weights": {"EXAM": 1.0}, "min_validate": 10, "bonus_points": 2}`
	_, err := Parse("AGRO-L1", []byte(raw))
	if !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument, got %v", err)
	}
	if !strings.Contains(err.Error(), "AGRO-L1") {
		t.Fatalf("error should name the program, got %q", err.Error())
	}
}

func TestParseRejectsBadWeightSum(t *testing.T) {
	raw := `{"component_weights": {"CC": 0.3, "EXAM": 0.5}, "min_validate": 10}`
	if _, err := Parse("AGRO-L1", []byte(raw)); !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument, got %v", err)
	}
}

func TestParseRejectsUnknownComponent(t *testing.T) {
	raw := `{"component_weights": {"ORAL": 1.0}, "min_validate": 10}`
	if _, err := Parse("AGRO-L1", []byte(raw)); !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument, got %v", err)
	}
}

func TestParseRejectsUnweightedBlockingComponent(t *testing.T) {
	raw := `{"component_weights": {"EXAM": 1.0}, "min_validate": 10, "blocking_components": ["TP"], "blocking_floor": 10}`
	if _, err := Parse("AGRO-L1", []byte(raw)); !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument, got %v", err)
	}
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	if _, err := Parse("AGRO-L1", nil); !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument, got %v", err)
	}
	if _, err := Parse("AGRO-L1", []byte(`{}`)); !errors.Is(err, ErrInvalidRuleDocument) {
		t.Fatalf("expected ErrInvalidRuleDocument for missing weights, got %v", err)
	}
}
