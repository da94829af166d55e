package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/audit"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/authz"
	"scolaris.org/internal/config"
	"scolaris.org/internal/finance"
	"scolaris.org/internal/httpapi"
	"scolaris.org/internal/identity"
	"scolaris.org/internal/obs"
	"scolaris.org/internal/rules"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("SCOLARIS_CONFIG"), "Path to TOML config")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("missing auth secret: set SCOLARIS_AUTH_SECRET or [auth].secret")
	}

	// Persistent stores when a DSN is configured, in-memory otherwise.
	var (
		db            *sql.DB
		identityStore identity.Store
		academicStore academic.Store
		financeStore  finance.Store
		auditStore    audit.Store
	)
	if dsn := cfg.Database.DSN; dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		identityStore = identity.NewPGStore(db)
		academicStore = academic.NewPGStore(db)
		financeStore = finance.NewPGStore(db)
		auditStore = audit.NewPGStore(db)
	} else {
		log.Print("no DSN configured, using in-memory stores")
		identityStore = identity.NewInMemory()
		academicStore = academic.NewInMemory()
		financeStore = finance.NewInMemory()
		auditStore = audit.NewInMemory()
	}

	identitySvc, err := identity.NewService(identityStore)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	issuer, err := auth.NewIssuer(cfg.Auth.Secret,
		auth.WithIssuerName("scolaris"),
		auth.WithTTL(cfg.AccessTTLDuration()))
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	gate := finance.NewGate(financeStore)
	authorizer := authz.NewAuthorizer(authz.DefaultActions(gate), authz.NewGuard(auditStore))

	academicSvc := academic.NewService(academicStore, authorizer)
	engine := rules.NewEngine(academicStore)
	academicSvc.SetEvaluator(engine)

	api := httpapi.New(httpapi.Deps{
		Identity:       identitySvc,
		Issuer:         issuer,
		Authorizer:     authorizer,
		Academic:       academicSvc,
		Engine:         engine,
		Gate:           gate,
		Finance:        finance.NewService(financeStore),
		FinanceStore:   financeStore,
		AcademicStore:  academicStore,
		Audit:          auditStore,
		ReadyProbe:     httpapi.ReadyProbe{DB: db},
		Version:        version,
		OverrideHeader: cfg.Auth.OverrideHeader,
		RatePerSecond:  cfg.RateLimit.PerSecond,
		RateBurst:      cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting scolaris-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
