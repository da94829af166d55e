package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"scolaris.org/internal/academic"
)

// ErrInvalidRuleDocument marks a malformed or inconsistent program rule
// configuration. A program with an invalid document cannot be evaluated.
var ErrInvalidRuleDocument = errors.New("rules: invalid rule document")

var validate = validator.New()

// Product is a billing item the program makes mandatory on every invoice.
type Product struct {
	Code        string `json:"code" validate:"required"`
	Label       string `json:"label"`
	AmountMinor int64  `json:"amount_minor" validate:"min=1"`
}

// TutelleExport describes the flat file shape the supervising ministry
// expects for this program.
type TutelleExport struct {
	Format  string   `json:"format" validate:"required"`
	Columns []string `json:"columns" validate:"min=1"`
}

// Document is the strongly typed program rule configuration. Weights are
// per assessment component and must sum to one.
type Document struct {
	ComponentWeights     map[academic.Component]float64 `json:"component_weights" validate:"required,min=1"`
	MinValidate          float64                        `json:"min_validate" validate:"min=0,max=20"`
	EliminationThreshold float64                        `json:"elimination_threshold" validate:"min=0,max=20"`
	BlockingComponents   []academic.Component           `json:"blocking_components,omitempty"`
	BlockingFloor        float64                        `json:"blocking_floor" validate:"min=0,max=20"`
	Compensation         bool                           `json:"compensation"`
	CompensationBand     float64                        `json:"compensation_band" validate:"min=0,max=20"`
	MandatoryProducts    []Product                      `json:"mandatory_products,omitempty"`
	TutelleExport        *TutelleExport                 `json:"tutelle_export,omitempty"`
}

// Parse decodes and validates a program's rule document. Unknown fields,
// missing weights, and weights that do not sum to one are all fatal; a
// document is never silently defaulted.
func Parse(programCode string, raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: program %s: empty document", ErrInvalidRuleDocument, programCode)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: program %s: %v", ErrInvalidRuleDocument, programCode, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: program %s: %v", ErrInvalidRuleDocument, programCode, err)
	}

	var sum float64
	for component, weight := range doc.ComponentWeights {
		if !academic.ValidComponent(component) {
			return nil, fmt.Errorf("%w: program %s: unknown component %q", ErrInvalidRuleDocument, programCode, component)
		}
		if weight < 0 || weight > 1 {
			return nil, fmt.Errorf("%w: program %s: weight %v out of range for %s", ErrInvalidRuleDocument, programCode, weight, component)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("%w: program %s: component weights sum to %v, want 1.0", ErrInvalidRuleDocument, programCode, sum)
	}
	for _, component := range doc.BlockingComponents {
		if _, ok := doc.ComponentWeights[component]; !ok {
			return nil, fmt.Errorf("%w: program %s: blocking component %s has no weight", ErrInvalidRuleDocument, programCode, component)
		}
	}
	return &doc, nil
}

// InvoiceLines converts the mandatory products to billing lines.
func (d *Document) InvoiceLines(currency string) []MandatoryLine {
	out := make([]MandatoryLine, 0, len(d.MandatoryProducts))
	for _, p := range d.MandatoryProducts {
		out = append(out, MandatoryLine{
			ProductCode: p.Code,
			Label:       p.Label,
			AmountMinor: p.AmountMinor,
			Currency:    currency,
		})
	}
	return out
}

// MandatoryLine is a mandatory product flattened for invoice issuance.
type MandatoryLine struct {
	ProductCode string
	Label       string
	AmountMinor int64
	Currency    string
}
