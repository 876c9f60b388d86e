// Package http serves the dashboard JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gastos/internal/cache"
	applog "gastos/internal/log"
	"gastos/internal/query"
	"gastos/internal/services"
)

// Pinger is the readiness probe into the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr     string
	Queries  *query.Service
	Expenses *services.ExpenseService
	Store    Pinger

	CacheTTL     time.Duration
	CacheMaxSize int
	// RateLimitPerMinute bounds write requests per client IP.
	RateLimitPerMinute int

	// Location is the zone expense timestamps are interpreted in when the
	// request omits one.
	Location *time.Location

	Logger *applog.Logger
}

type Server struct {
	http.Server

	queries  *query.Service
	expenses *services.ExpenseService
	store    Pinger
	logger   *applog.Logger
	loc      *time.Location

	limiter      *rateLimiter
	cacheManager *cache.Manager

	// Aggregate endpoints are memoized per query string.
	summaryCache   *cache.LRUCache[query.Summary]
	breakdownCache *cache.LRUCache[[]query.Bucket]
	trendCache     *cache.LRUCache[[]query.TrendPoint]

	shutdownOnce sync.Once
}

func NewServer(opts Options) *Server {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.CacheMaxSize <= 0 {
		opts.CacheMaxSize = 256
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		queries:  opts.Queries,
		expenses: opts.Expenses,
		store:    opts.Store,
		logger:   opts.Logger,
		loc:      opts.Location,
		limiter:  newRateLimiter(opts.RateLimitPerMinute),

		cacheManager:   cache.NewManager(),
		summaryCache:   cache.NewLRUCache[query.Summary](opts.CacheMaxSize, opts.CacheTTL),
		breakdownCache: cache.NewLRUCache[[]query.Bucket](opts.CacheMaxSize, opts.CacheTTL),
		trendCache:     cache.NewLRUCache[[]query.TrendPoint](opts.CacheMaxSize, opts.CacheTTL),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.breakdownCache)
	s.cacheManager.Register(s.trendCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /api/cycle/range", s.wrap(s.handleCycleRange))
	mux.HandleFunc("GET /api/cycle/current", s.wrap(s.handleCycleCurrent))
	mux.HandleFunc("GET /api/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/breakdown", s.wrap(s.handleBreakdown))
	mux.HandleFunc("GET /api/trend", s.wrap(s.handleTrend))
	mux.HandleFunc("GET /api/expenses", s.wrap(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.wrap(s.handleCreateExpense))
	mux.HandleFunc("DELETE /api/expenses/last", s.wrap(s.handleUndoLast))
	mux.HandleFunc("POST /api/entries", s.wrap(s.handleSubmitEntry))
	mux.HandleFunc("GET /api/filters", s.wrap(s.handleFilters))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return s
}

// wrap applies the shared middleware: request ID, security headers, write
// rate limiting, and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		requestID := newRequestID()

		logger := s.logger.With(applog.FieldRequestID, requestID)
		r = r.WithContext(applog.ContextWithLogger(r.Context(), logger))

		if isWrite(r.Method) && !s.limiter.allow(clientIP) {
			logger.WarnContext(r.Context(), "rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)
		w.Header().Set("X-Request-ID", requestID)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		logger.InfoContext(r.Context(), "request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldQuery, r.URL.RawQuery,
			applog.FieldStatusCode, rw.status,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodDelete || method == http.MethodPut
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// invalidateAggregates drops every memoized aggregate after a write.
func (s *Server) invalidateAggregates() {
	s.summaryCache.Purge()
	s.breakdownCache.Purge()
	s.trendCache.Purge()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, "data unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the background goroutines and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
