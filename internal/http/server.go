// Package http serves the ledger's JSON API.
package http

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"budgetledger/internal/cache"
	"budgetledger/internal/core"
	"budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/travel"
)

// summaryCacheSize covers a couple of years of months.
const summaryCacheSize = 24

// Store is what the API needs from the database beyond the services: a
// reachability check and the write revision that keys derived views.
type Store interface {
	Ping(ctx context.Context) error
	Revision(ctx context.Context) (int64, error)
}

// Services are the operations the API exposes.
type Services struct {
	Store     Store
	Imports   *services.ImportService
	Ledger    *services.LedgerService
	Recurring *services.RecurringService
	Summary   *services.SummaryService
	Travel    *travel.Ledger
}

type Options struct {
	MaxUploadBytes int64
	RateLimit      int    // mutating requests per client per minute
	Currency       string // display currency for formatted amounts
	Logger         *log.Logger
	Now            func() time.Time

	// SummaryTTL bounds how long a cached month summary is served.
	SummaryTTL time.Duration
}

type Server struct {
	http.Server
	svc         Services
	opts        Options
	logger      *log.Logger
	rateLimiter *rateLimiter
	summaries   *cache.LRUCache[core.MonthSummary]
	caches      *cache.Manager
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		svc:         svc,
		opts:        opts,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RateLimit),
		summaries:   cache.NewLRUCache[core.MonthSummary](summaryCacheSize, opts.SummaryTTL),
		caches:      cache.NewManager(),
		started:     opts.Now(),
	}
	s.caches.Register(s.summaries)
	s.caches.StartCleanup(opts.SummaryTTL)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /imports", s.handleImport)
	mux.HandleFunc("GET /imports", s.handleListImports)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /transactions", s.handlePatchTransactions)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /transactions/{id}", s.handlePatchTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("PUT /transactions/{id}/category", s.handleSetCategory)
	mux.HandleFunc("POST /transactions/categorize", s.handleCategorize)
	mux.HandleFunc("DELETE /sources/{file}", s.handleDeleteSource)
	mux.HandleFunc("GET /months", s.handleMonths)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /categories/{name}", s.handleDeleteCategory)

	mux.HandleFunc("GET /recurring", s.handleListRecurring)
	mux.HandleFunc("POST /recurring", s.handleCreateRecurring)
	mux.HandleFunc("GET /recurring/prorated", s.handleProrated)
	mux.HandleFunc("GET /recurring/{id}", s.handleGetRecurring)
	mux.HandleFunc("PUT /recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("DELETE /recurring/{id}", s.handleDeleteRecurring)

	mux.HandleFunc("GET /travel/balance", s.handleTravelBalance)
	mux.HandleFunc("GET /travel/series", s.handleTravelSeries)
	mux.HandleFunc("GET /travel/entries", s.handleTravelEntries)
	mux.HandleFunc("POST /travel/allocations", s.handleTravelAllocation)
	mux.HandleFunc("POST /travel/expenses", s.handleTravelExpense)
	mux.HandleFunc("DELETE /travel/entries/{id}", s.handleDeleteTravelEntry)

	mux.HandleFunc("GET /summary", s.handleSummary)

	s.Server = http.Server{
		Addr: addr,
		Handler: withRequestID(
			log.Middleware(s.logger)(
				log.RequestIDMiddleware(requestIDOf)(
					s.withSecurityHeaders(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// withRequestID keeps a well-formed incoming X-Request-ID or assigns a new one,
// and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !requestIDPattern.MatchString(id) {
			id = generateRequestID()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func requestIDOf(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// withSecurityHeaders sets security headers, rate limits mutating requests,
// and logs each request once it completes.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		logger := log.FromContext(ctx)

		setSecurityHeaders(w.Header())
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			log.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
		}()

		if isSuspicious(r) {
			logger.WarnContext(ctx, "Suspicious request rejected",
				log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path, log.FieldMethod, r.Method)
			ErrorResponse(http.StatusBadRequest, "bad_request", "request rejected").Write(rw)
			return
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").
				Header("Retry-After", strconv.Itoa(int(rateWindow.Seconds()))).
				Write(rw)
			return
		}

		next.ServeHTTP(rw, r)
	})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	fields := log.NewFields().WithOperation(op).WithError(err, errorType(err))
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(ctx, "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.opts.Now().UTC().Format(time.RFC3339),
		"uptime":    s.opts.Now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store answers within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.activeClients(),
			"hits":           s.rateLimiter.totalHits(),
		},
	}
	switch {
	case s.svc.Store == nil:
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	case s.svc.Imports != nil && s.svc.Imports.InFlight() > 0:
		// the import holds the only connection until it commits
		checks["store"] = "busy: import in progress"
	default:
		if err := s.svc.Store.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": s.opts.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
