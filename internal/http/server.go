package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"moneta/internal/cache"
	"moneta/internal/core"
	applog "moneta/internal/log"
	"moneta/internal/middleware/ratelimit"
	"moneta/internal/middleware/security"
	"moneta/internal/middleware/trace"
	"moneta/internal/services"
	appweb "moneta/web"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services bundles what the handlers call into.
type Services struct {
	Transactions *services.TransactionService
	Importer     *services.ImportService
	Exporter     *services.ExportService
	Health       HealthChecker
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	ImportMaxBytes     int64
	StatsCacheTTL      time.Duration
	Logger             *applog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

const (
	defaultImportMaxBytes = 10 << 20
	statsCacheSize        = 64
	cacheSweepInterval    = 10 * time.Minute
	requestTimeout        = 7 * time.Second
)

type Server struct {
	http.Server
	templates *template.Template
	svc       Services
	cfg       Config
	logger    *applog.Logger
	events    *applog.StructuredLogger
	started   time.Time

	rateLimiter *ratelimit.Limiter
	clientIP    *security.ClientIP
	trace       *trace.Middleware

	caches      *cache.Manager
	statsCache  *cache.LRUCache[core.Stats]
	totalsCache *cache.LRUCache[[]core.CategoryTotal]

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(cfg Config, svc Services) *Server {
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.DefaultConfig())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ImportMaxBytes <= 0 {
		cfg.ImportMaxBytes = defaultImportMaxBytes
	}

	logger := cfg.Logger.WithComponent(applog.ComponentHTTP)
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		svc:         svc,
		cfg:         cfg,
		logger:      logger,
		events:      applog.NewStructuredLogger(logger),
		started:     time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		clientIP:    security.NewClientIP(),
		caches:      cache.NewManager(),
		statsCache:  cache.NewLRUCache[core.Stats](statsCacheSize, cfg.StatsCacheTTL),
		totalsCache: cache.NewLRUCache[[]core.CategoryTotal](statsCacheSize, cfg.StatsCacheTTL),
	}
	s.trace = trace.NewMiddleware(s.clientIP.Extract, cfg.Logger)

	s.caches.Register("stats", s.statsCache)
	s.caches.Register("category_totals", s.totalsCache)
	s.caches.StartCleanup(cacheSweepInterval)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	// Pages
	mux.HandleFunc("/{$}", s.handleDashboard)
	mux.HandleFunc("/transactions", s.handleTransactionsPage)

	// Health
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// API
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/categories", s.handleCategoryTotals)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/{id}", s.handleTransaction)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/settings/clear", s.handleClear)

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.clientIP.Extract, onLimit)(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.trace.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown stops background sweepers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks templates and the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.svc.Health == nil:
		checks["database"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	default:
		if err := s.svc.Health.Ping(ctx); err != nil {
			checks["database"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	checks["cache"] = map[string]int{
		"stats_entries":           s.statsCache.Size(),
		"category_totals_entries": s.totalsCache.Size(),
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"blocked":        s.rateLimiter.Blocked(),
	}
	checks["requests_total"] = s.trace.TotalRequests()

	NewResponse().Status(httpStatus).JSON(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// writeError maps err to a status and writes {"error": msg}. Server
// failures are logged with full detail; client errors at warn.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errType := statusForError(err)
	if status >= 500 {
		s.events.LogError(r.Context(), "Request failed", err, op, errType, applog.NewFields())
	} else {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, errType,
			applog.FieldStatusCode, status,
			applog.FieldError, err.Error())
	}
	ErrorResponse(status, errorMessage(status, err)).Write(w)
}

func (s *Server) today() core.Date {
	now := s.cfg.Now().UTC()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

func filterKey(f core.Filter) string {
	key := string(f.Type) + "|" + strconv.Itoa(f.Limit)
	if f.Range != nil {
		key += "|" + f.Range.Start.String() + "|" + f.Range.End.String()
	}
	return key
}

func (s *Server) cachedStats(ctx context.Context, f core.Filter) (core.Stats, error) {
	return s.statsCache.GetOrLoad(filterKey(f), func() (core.Stats, error) {
		return s.svc.Transactions.Stats(ctx, f)
	})
}

func (s *Server) cachedCategoryTotals(ctx context.Context, f core.Filter) ([]core.CategoryTotal, error) {
	return s.totalsCache.GetOrLoad(filterKey(f), func() ([]core.CategoryTotal, error) {
		return s.svc.Transactions.CategoryTotals(ctx, f)
	})
}

// invalidate drops cached aggregates after any write.
func (s *Server) invalidate() {
	s.caches.InvalidateAll()
}
