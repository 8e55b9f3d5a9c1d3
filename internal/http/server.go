package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"expense-tracker/internal/core"
	"expense-tracker/internal/idempotency"
	"expense-tracker/internal/log"
	"expense-tracker/internal/middleware/ratelimit"
	"expense-tracker/internal/middleware/security"
	"expense-tracker/internal/middleware/trace"
)

// TransactionService is what the API needs from the service layer.
type TransactionService interface {
	Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	List(ctx context.Context, page core.Page) ([]core.Transaction, error)
	Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	Balance(ctx context.Context) (float64, error)
	Totals(ctx context.Context) (core.Totals, error)
	UniqueDescriptions(ctx context.Context) ([]string, error)
	FrequentDescriptions(ctx context.Context, min int) ([]core.DescriptionCount, error)
	Statement(ctx context.Context, rng core.DateRange) (core.Statement, error)
	Ping(ctx context.Context) error
}

// Options tunes the optional parts of the server.
type Options struct {
	Logger *log.Logger
	// AllowedOrigins lists CORS origins. Empty or "*" allows any origin.
	AllowedOrigins []string
	// Idempotency enables Idempotency-Key handling on create. Nil disables it.
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	// WriteRateLimit caps create and update requests per client per minute. 0 disables it.
	WriteRateLimit int
}

type Server struct {
	http.Server
	svc          TransactionService
	detector     *security.Detector
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

const (
	defaultFrequentMin = 2
	readyTimeout       = 2 * time.Second
)

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc TransactionService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		svc:      svc,
		detector: security.NewDetector(),
	}

	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(corsOptions(opts.AllowedOrigins)))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	create := http.Handler(http.HandlerFunc(s.handleCreateTransaction))
	if opts.Idempotency != nil {
		create = idempotency.Middleware(opts.Idempotency, opts.IdempotencyTTL, idempotency.DefaultLockTimeout)(create)
	}
	update := http.Handler(http.HandlerFunc(s.handleUpdateTransaction))
	if opts.WriteRateLimit > 0 {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = opts.WriteRateLimit
		s.limiter = ratelimit.NewLimiter(cfg)
		limit := s.limiter.Middleware(s.detector.ExtractClientIP)
		create = limit(create)
		update = limit(update)
	}

	r.Get("/", s.handleRoot)
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	// Collections answer with and without the trailing slash.
	both := func(path string, fn func(path string)) {
		fn(path)
		fn(path + "/")
	}
	both("/transactions", func(p string) {
		r.Method(http.MethodPost, p, create)
		r.Get(p, s.handleListTransactions)
	})
	r.Method(http.MethodPut, "/transactions/{transactionID}", update)
	both("/balance", func(p string) { r.Get(p, s.handleBalance) })
	both("/descriptions", func(p string) { r.Get(p, s.handleDescriptions) })
	both("/descriptions/frequent", func(p string) { r.Get(p, s.handleFrequentDescriptions) })
	both("/statement", func(p string) { r.Get(p, s.handleStatement) })
	r.Get("/charts/credit-debit.png", s.handleCreditDebitChart)
	r.Get("/charts/frequent.png", s.handleFrequentChart)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// corsOptions allows every method and header, and any origin unless origins
// are listed.
// Any-origin mode echoes the caller's origin so credentialed requests still work.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{trace.HeaderRequestID, idempotency.HitHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}
	if allowsAny(origins) {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	} else {
		opts.AllowedOrigins = origins
	}
	return opts
}

func allowsAny(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Shutdown stops the rate limiter cleanup and then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})
	return s.Server.Shutdown(ctx)
}

// SuspiciousRequests reports how many requests the detector flagged.
func (s *Server) SuspiciousRequests() int64 {
	return s.detector.SuspiciousCount()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense Tracker API is running"})
}
