package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"patrimonio/internal/log"
	"patrimonio/internal/middleware/ratelimit"
	"patrimonio/internal/middleware/security"
	"patrimonio/internal/middleware/trace"
	"patrimonio/internal/rates"
	"patrimonio/internal/services"
)

// Dependencies are the services the API is served from. Ready may be nil
// when the backend has nothing to probe.
type Dependencies struct {
	Ledger    *services.LedgerService
	Analytics *services.AnalyticsService
	Goals     *services.GoalService
	Rates     rates.Provider
	Ready     func(ctx context.Context) error
}

// Options tune the transport.
type Options struct {
	MaxUploadBytes     int64
	RateLimitPerMinute int
	Logger             *log.Logger
}

const (
	defaultMaxUploadBytes = 5 << 20
	maxGoalBodyBytes      = 64 << 10
	readyTimeout          = 3 * time.Second
)

type Server struct {
	http.Server
	deps      Dependencies
	maxUpload int64
	log       *log.Logger

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	clientIP := security.NewClientIP()
	s := &Server{
		deps:      deps,
		maxUpload: opts.MaxUploadBytes,
		log:       logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		tracer: trace.NewMiddleware(logger, clientIP.Extract),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/ledger", s.handleUploadLedger)
	mux.HandleFunc("GET /api/ledger", s.handleGetLedger)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("GET /api/institutions", s.handleInstitutions)
	mux.HandleFunc("GET /api/institutions/share", s.handleShare)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/statistics/columns", handleStatisticsColumns)
	mux.HandleFunc("GET /api/snapshots/latest", s.handleLatestSnapshot)
	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("GET /api/rates/at", s.handleRateAt)
	mux.HandleFunc("POST /api/goal", s.handleGoal)

	limit := s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, clientIP.Extract(r), log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Code: codeRateLimited, Error: "rate limit exceeded, try again later"})
	})
	headers := security.Headers(security.DefaultHeadersConfig())

	// Health probes skip the limiter so orchestrators are never throttled.
	var handler http.Handler = mux
	handler = limitAPI(limit(handler), handler)
	handler = headers(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// limitAPI routes /api requests through limited and everything else through plain.
func limitAPI(limited, plain http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			limited.ServeHTTP(w, r)
			return
		}
		plain.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and the limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
