package httpapi

import (
	"net/http"
	"strings"
	"time"

	"scolaris.org/internal/authz"
	"scolaris.org/internal/finance"
	"scolaris.org/internal/rules"
)

type invoiceLineRequest struct {
	ProductCode string `json:"product_code"`
	Label       string `json:"label"`
	Amount      int64  `json:"amount"`
}

type issueInvoiceRequest struct {
	StudentID   string               `json:"student_id"`
	ProgramCode string               `json:"program_code"`
	Lines       []invoiceLineRequest `json:"lines"`
	DueDate     string               `json:"due_date"`
}

type paymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type moratoriumRequest struct {
	StudentID string `json:"student_id"`
	Deferred  int64  `json:"deferred"`
	Days      int    `json:"days"`
}

type scholarshipRequest struct {
	StudentID string `json:"student_id"`
	Kind      string `json:"kind"`
	Amount    int64  `json:"amount"`
	Percent   int    `json:"percent"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_until"`
}

// handleFinanceStatus serves /v1/finance/students/{id}/status.
func (a *API) handleFinanceStatus(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/finance/students/")
	if !strings.HasSuffix(path, "/status") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	studentID := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
	if studentID == "" || strings.Contains(studentID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	target := authz.Target{Type: "student", ID: studentID, OwnerID: studentID}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionFinanceRead, target); err != nil {
		handleDomainError(w, r, err)
		return
	}
	report, err := a.gate.EffectiveStatus(r.Context(), studentID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionFinanceManage, authz.Target{Type: "invoice"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req issueInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StudentID == "" || req.ProgramCode == "" {
		writeError(w, r, http.StatusBadRequest, "student_id and program_code are required")
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	mandatory, err := a.mandatoryLines(r, req.ProgramCode)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	lines := make([]finance.InvoiceLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, finance.InvoiceLine{
			ProductCode: l.ProductCode,
			Label:       l.Label,
			Amount:      finance.Money{Currency: finance.DefaultCurrency, Amount: l.Amount},
		})
	}
	inv, err := a.finance.IssueInvoice(r.Context(), req.StudentID, req.ProgramCode, lines, mandatory, dueDate)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// mandatoryLines loads the program's rule document and converts its
// mandatory products to invoice lines.
func (a *API) mandatoryLines(r *http.Request, programCode string) ([]finance.InvoiceLine, error) {
	program, err := a.academicStore.Program(r.Context(), programCode)
	if err != nil {
		return nil, err
	}
	doc, err := rules.Parse(program.Code, program.RulesJSON)
	if err != nil {
		return nil, err
	}
	var out []finance.InvoiceLine
	for _, m := range doc.InvoiceLines(finance.DefaultCurrency) {
		out = append(out, finance.InvoiceLine{
			ProductCode: m.ProductCode,
			Label:       m.Label,
			Amount:      finance.Money{Currency: m.Currency, Amount: m.AmountMinor},
			Mandatory:   true,
		})
	}
	return out, nil
}

func (a *API) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionFinanceManage, authz.Target{Type: "payment"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	payment := &finance.Payment{
		InvoiceID: req.InvoiceID,
		Amount:    finance.Money{Currency: finance.DefaultCurrency, Amount: req.Amount},
		Method:    strings.ToUpper(strings.TrimSpace(req.Method)),
		Reference: req.Reference,
	}
	if err := a.finance.RecordPayment(r.Context(), payment); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (a *API) handleMoratoria(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionFinanceManage, authz.Target{Type: "moratorium"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req moratoriumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Days != 30 && req.Days != 60 && req.Days != 90 {
		writeError(w, r, http.StatusBadRequest, "days must be 30, 60 or 90")
		return
	}
	m := &finance.Moratorium{
		StudentID: req.StudentID,
		Deferred:  finance.Money{Currency: finance.DefaultCurrency, Amount: req.Deferred},
		EndDate:   time.Now().UTC().AddDate(0, 0, req.Days),
		GrantedBy: rc.IdentityID,
	}
	if err := a.finance.GrantMoratorium(r.Context(), m); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) handleScholarships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionFinanceManage, authz.Target{Type: "scholarship"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req scholarshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sch := &finance.Scholarship{
		StudentID: req.StudentID,
		Kind:      req.Kind,
		Percent:   req.Percent,
	}
	if req.Amount > 0 {
		sch.Amount = finance.Money{Currency: finance.DefaultCurrency, Amount: req.Amount}
	}
	if req.ValidFrom != "" {
		t, err := time.Parse("2006-01-02", req.ValidFrom)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "valid_from must be YYYY-MM-DD")
			return
		}
		sch.ValidFrom = t
	}
	if req.ValidTo != "" {
		t, err := time.Parse("2006-01-02", req.ValidTo)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "valid_until must be YYYY-MM-DD")
			return
		}
		sch.ValidUntil = t
	}
	if err := a.finance.AwardScholarship(r.Context(), sch); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sch)
}
