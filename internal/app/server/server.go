package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/audit"
	domainauth "madrasa/internal/domain/auth"
	"madrasa/internal/domain/billing"
	"madrasa/internal/domain/payroll"
	"madrasa/internal/platform/config"
	"madrasa/internal/platform/crypto"
	"madrasa/internal/platform/db"
	"madrasa/internal/platform/jobs"
	"madrasa/internal/platform/metrics"
	"madrasa/internal/platform/sms"
	"madrasa/internal/platform/video"
	"madrasa/internal/transport/http/api"
	attendancehandler "madrasa/internal/transport/http/handlers/attendance"
	auditloghandler "madrasa/internal/transport/http/handlers/auditlog"
	authnhandler "madrasa/internal/transport/http/handlers/authn"
	billinghandler "madrasa/internal/transport/http/handlers/billing"
	halaqahandler "madrasa/internal/transport/http/handlers/halaqa"
	messaginghandler "madrasa/internal/transport/http/handlers/messaging"
	payrollhandler "madrasa/internal/transport/http/handlers/payroll"
	progresshandler "madrasa/internal/transport/http/handlers/progress"
	staffhandler "madrasa/internal/transport/http/handlers/staff"
	studentshandler "madrasa/internal/transport/http/handlers/students"
	"madrasa/internal/transport/http/middleware"
)

// App bundles everything a running instance needs. Tests construct one via
// New and mount Router on an httptest server.
type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service

	cancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption key invalid: %w", err)
	}

	authStore := domainauth.NewStore(pool)
	auditSvc := audit.New(pool)
	collector := metrics.New()
	smsSender := sms.New(cfg)
	videoSvc := video.New(cfg.SFUTokenSecret, cfg.SFUTokenTTL)

	payrollSvc := payroll.NewService(payroll.NewStore(pool), cfg.SchoolName, cfg.PayrollClampNegative)
	billingStore := billing.NewStore(pool)

	jobCtx, cancel := context.WithCancel(context.Background())
	jobSvc := jobs.New(pool, cfg, billingStore, smsSender)
	jobSvc.Start(jobCtx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(domainauth.PermSystemAdmin, authStore)).
			Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
			})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authnhandler.NewHandler(pool, authStore, cryptoSvc, auditSvc, cfg.JWTSecret, cfg.SchoolName, cfg.Environment).RegisterRoutes(r)
		staffhandler.NewHandler(pool, authStore, auditSvc).RegisterRoutes(r)
		studentshandler.NewHandler(pool, authStore, auditSvc).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollSvc, authStore, auditSvc).RegisterRoutes(r)
		halaqahandler.NewHandler(pool, videoSvc, authStore, auditSvc).RegisterRoutes(r)
		attendancehandler.NewHandler(pool, authStore, auditSvc).RegisterRoutes(r)
		progresshandler.NewHandler(pool, authStore, auditSvc).RegisterRoutes(r)
		billinghandler.NewHandler(billingStore, cfg.DefaultCurrency, authStore, auditSvc).RegisterRoutes(r)
		messaginghandler.NewHandler(smsSender, jobSvc, authStore, auditSvc).RegisterRoutes(r)
		auditloghandler.NewHandler(auditSvc, authStore).RegisterRoutes(r)
	})

	return &App{
		Config: cfg,
		DB:     pool,
		Router: router,
		Jobs:   jobSvc,
		cancel: cancel,
	}, nil
}

func (a *App) Close() {
	a.cancel()
	a.DB.Close()
}

func Run() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	slog.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
