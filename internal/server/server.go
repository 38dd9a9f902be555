// Package server wires storage, the Zoho client and the billing jobs behind
// the admin HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/distrokit/internal/auth"
	"github.com/mbd888/distrokit/internal/billing"
	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/health"
	"github.com/mbd888/distrokit/internal/idgen"
	"github.com/mbd888/distrokit/internal/invoices"
	"github.com/mbd888/distrokit/internal/logging"
	"github.com/mbd888/distrokit/internal/metrics"
	"github.com/mbd888/distrokit/internal/ratelimit"
	"github.com/mbd888/distrokit/internal/security"
	"github.com/mbd888/distrokit/internal/tenant"
	"github.com/mbd888/distrokit/internal/traces"
	"github.com/mbd888/distrokit/internal/validation"
	"github.com/mbd888/distrokit/internal/zoho"
	"github.com/mbd888/distrokit/migrations"
)

// Version is reported by the health endpoint. Set by ldflags in cmd/server.
var Version = "dev"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	db          *sql.DB // nil if using in-memory
	tenants     tenant.Store
	ledger      invoices.Reader
	provider    billing.Provider // nil when Zoho is not configured
	jobs        *billing.Jobs
	timers      []*billing.Timer
	timersWG    sync.WaitGroup
	health      *health.Registry
	rateLimiter *ratelimit.Limiter
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	drainDelay  time.Duration

	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run
	shutdownTraces func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProvider replaces the Zoho client (for testing).
func WithProvider(p billing.Provider) Option {
	return func(s *Server) {
		s.provider = p
	}
}

// WithStores replaces the tenant store and invoice reader, skipping database
// setup (for testing).
func WithStores(tenants tenant.Store, ledger invoices.Reader) Option {
	return func(s *Server) {
		s.tenants = tenants
		s.ledger = ledger
	}
}

// WithDrainDelay sets how long Shutdown waits for load balancers to stop
// routing traffic before closing listeners.
func WithDrainDelay(d time.Duration) Option {
	return func(s *Server) {
		s.drainDelay = d
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	if err := s.setupStorage(ctx); err != nil {
		return nil, err
	}

	if s.provider == nil && cfg.Zoho.HasCredentials() {
		client, err := zoho.NewClient(cfg.Zoho, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create zoho client: %w", err)
		}
		s.provider = client
		s.logger.Info("zoho books client configured", "base_url", cfg.Zoho.BaseURL)
	} else if s.provider == nil {
		s.logger.Warn("zoho books not configured, provider calls disabled")
	}

	s.jobs = billing.NewJobs(cfg.Billing, s.ledger, s.tenants, s.provider, s.logger)
	if cfg.Billing.JobsEnabled {
		s.timers = s.jobs.Timers()
		runners := make([]health.Runner, len(s.timers))
		for i, t := range s.timers {
			runners[i] = t
		}
		s.health.Register("billing_jobs", health.Jobs(runners...))
		s.logger.Info("billing jobs enabled",
			"suspension_days", cfg.Billing.SuspensionDays,
			"warning_days", cfg.Billing.WarningDays,
		)
	} else {
		s.logger.Warn("billing jobs disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.rateLimiter = ratelimit.New(s.rateLimitConfig())
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func (s *Server) setupStorage(ctx context.Context) error {
	if s.tenants != nil && s.ledger != nil {
		return nil
	}

	if s.cfg.DatabaseURL == "" {
		mem := tenant.NewMemoryStore()
		s.tenants = mem
		s.ledger = invoices.NewMemoryStore(mem)
		s.logger.Warn("using in-memory storage (data will not persist)")
		return nil
	}

	db, err := sql.Open("postgres", s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if s.cfg.MigrateOnStart {
		if err := migrations.Up(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		s.logger.Info("database migrations applied")
	}

	s.db = db
	s.tenants = tenant.NewPostgresStore(db)
	s.ledger = invoices.NewPostgresStore(db)
	s.health.Register("postgres", health.Database("postgres", db, 2*time.Second))
	s.logger.Info("using PostgreSQL storage", "url", maskDSN(s.cfg.DatabaseURL))
	return nil
}

func (s *Server) rateLimitConfig() ratelimit.Config {
	rl := ratelimit.DefaultConfig()
	if s.cfg.AdminRatePerMinute > 0 {
		rl.RequestsPerMinute = s.cfg.AdminRatePerMinute
	}
	return rl
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an ID assigned upstream (load balancer, operator tooling).
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		case path == "/health/live" || path == "/health/ready" || path == "/metrics":
			logger.Debug("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	admin := s.router.Group("/v1/admin")
	admin.Use(auth.RequireAdmin(s.cfg.AdminSecret))
	admin.Use(s.rateLimiter.Middleware())

	tenant.NewHandler(s.tenants, s.jobs.Enforcer).RegisterAdminRoutes(admin)
	billing.NewHandler(
		s.tenants,
		s.ledger,
		billing.NewPaymentRecorder(s.tenants, s.provider, s.logger),
		billing.NewOnboarder(s.tenants, s.provider, s.logger),
		s.jobs.All(),
	).RegisterAdminRoutes(admin)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.health.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and the billing jobs, and blocks until a signal
// arrives, ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTraces, err := traces.Init(ctx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // manual job runs are synchronous
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	for _, t := range s.timers {
		s.timersWG.Add(1)
		go func(t *billing.Timer) {
			defer s.timersWG.Done()
			t.Start(runCtx)
		}(t)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = s.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server. A suspension in flight finishes its
// status write before the timers return.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	for _, t := range s.timers {
		t.Stop()
	}
	if len(s.timers) > 0 {
		done := make(chan struct{})
		go func() {
			s.timersWG.Wait()
			close(done)
		}()
		select {
		case <-done:
			s.logger.Info("billing jobs stopped")
		case <-time.After(30 * time.Second):
			s.logger.Warn("billing jobs still running after 30s, continuing shutdown")
		}
	}

	if s.drainDelay > 0 {
		time.Sleep(s.drainDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Warn("trace exporter shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
