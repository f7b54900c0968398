// Package http exposes the expense tracker as a JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/cache"
	"spendlog/internal/core"
	"spendlog/internal/log"
)

// ExpenseAPI is the service surface the server exposes.
type ExpenseAPI interface {
	RecordText(ctx context.Context, text string, refDate time.Time) (core.ExpenseRecord, error)
	RecordAudio(ctx context.Context, audio []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error)
	RecordImage(ctx context.Context, image []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error)
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	ListExpensesRange(ctx context.Context, from, to core.Date) ([]core.ExpenseRecord, error)
	MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error)
}

type Server struct {
	http.Server
	api         ExpenseAPI
	rateLimiter *rateLimiter
	log         *log.Logger

	// Summaries are cached per month and dropped when an expense lands in
	// that month.
	summaryCache     *cache.LRUCache[core.MonthlySummary]
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

func NewServer(addr string, api ExpenseAPI, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		api:              api,
		rateLimiter:      newRateLimiter(60),
		log:              logger.WithComponent(log.ComponentHTTP),
		summaryCache:     cache.NewLRU[core.MonthlySummary](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	s.summaryCache.StartCleanup(10*time.Minute, s.stopCacheCleanup)

	mux.HandleFunc("/", s.withMiddleware(s.handleInfo))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/expenses/text", s.withMiddleware(s.handleRecordText))
	mux.HandleFunc("/expenses/audio", s.withMiddleware(s.handleRecordAudio))
	mux.HandleFunc("/expenses/image", s.withMiddleware(s.handleRecordImage))
	mux.HandleFunc("/expenses", s.withMiddleware(s.handleListExpenses))
	mux.HandleFunc("/summary", s.withMiddleware(s.handleSummary))

	return s
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds request IDs, request logging, security headers and a
// per-IP rate limit on mutating requests.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := uuid.NewString()

		reqLog := s.log.With(log.FieldRequestID, requestID)
		ctx := r.Context()

		reqLog.InfoContext(ctx, "request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			reqLog.WarnContext(ctx, "rate limit exceeded", log.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		setSecurityHeaders(w)
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLog.InfoContext(ctx, "request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func summaryCacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

func (s *Server) invalidateSummary(d core.Date) {
	s.summaryCache.Delete(summaryCacheKey(d.Year(), d.Month()))
}
