package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/audit"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/authz"
	"scolaris.org/internal/finance"
	"scolaris.org/internal/identity"
	"scolaris.org/internal/obs"
	"scolaris.org/internal/rules"
)

// ReadyProbe checks backing services for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Identity       *identity.Service
	Issuer         *auth.Issuer
	Authorizer     *authz.Authorizer
	Academic       *academic.Service
	Engine         *rules.Engine
	Gate           *finance.Gate
	Finance        *finance.Service
	FinanceStore   finance.Store
	AcademicStore  academic.Store
	Audit          audit.Store
	ReadyProbe     ReadyProbe
	Version        string
	OverrideHeader string
	RatePerSecond  int
	RateBurst      int
}

// API is the HTTP layer.
type API struct {
	mux            *http.ServeMux
	identity       *identity.Service
	issuer         *auth.Issuer
	authz          *authz.Authorizer
	academic       *academic.Service
	engine         *rules.Engine
	gate           *finance.Gate
	finance        *finance.Service
	financeStore   finance.Store
	academicStore  academic.Store
	audit          audit.Store
	readyProbe     ReadyProbe
	version        string
	overrideHeader string
	ratePerSecond  int
	rateBurst      int
}

func New(d Deps) *API {
	a := &API{
		mux:            http.NewServeMux(),
		identity:       d.Identity,
		issuer:         d.Issuer,
		authz:          d.Authorizer,
		academic:       d.Academic,
		engine:         d.Engine,
		gate:           d.Gate,
		finance:        d.Finance,
		financeStore:   d.FinanceStore,
		academicStore:  d.AcademicStore,
		audit:          d.Audit,
		readyProbe:     d.ReadyProbe,
		version:        d.Version,
		overrideHeader: d.OverrideHeader,
		ratePerSecond:  d.RatePerSecond,
		rateBurst:      d.RateBurst,
	}
	if a.overrideHeader == "" {
		a.overrideHeader = "X-Active-Role"
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 50
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 100
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// session
	a.mux.HandleFunc("/v1/session/login", a.handleLogin)
	a.mux.HandleFunc("/v1/session/switch-role", a.handleSwitchRole)

	// identities + programs
	a.mux.HandleFunc("/v1/identities", a.handleIdentities)
	a.mux.HandleFunc("/v1/identities/roles", a.handleIdentityRoles)
	a.mux.HandleFunc("/v1/programs", a.handlePrograms)
	a.mux.HandleFunc("/v1/programs/", a.handleProgramResource)

	// grades + jury
	a.mux.HandleFunc("/v1/grades/bulk-submit", a.handleBulkSubmit)
	a.mux.HandleFunc("/v1/evaluations/finalize", a.handleEvaluationFinalize)
	a.mux.HandleFunc("/v1/jury/close", a.handleJuryClose)
	a.mux.HandleFunc("/v1/jury/compensate", a.handleCompensate)
	a.mux.HandleFunc("/v1/students/", a.handleStudentResource)

	// registrations
	a.mux.HandleFunc("/v1/registrations", a.handleRegistrations)
	a.mux.HandleFunc("/v1/registrations/validate", a.handleRegistrationValidate)
	a.mux.HandleFunc("/v1/registrations/reopen", a.handleRegistrationReopen)

	// finance
	a.mux.HandleFunc("/v1/finance/students/", a.handleFinanceStatus)
	a.mux.HandleFunc("/v1/finance/invoices", a.handleInvoices)
	a.mux.HandleFunc("/v1/finance/payments", a.handlePayments)
	a.mux.HandleFunc("/v1/finance/moratoria", a.handleMoratoria)
	a.mux.HandleFunc("/v1/finance/scholarships", a.handleScholarships)

	// audit export
	a.mux.HandleFunc("/v1/audit", a.handleAuditExport)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- infra handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "scolaris-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "scolaris-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
