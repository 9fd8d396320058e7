package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/metrics"
	"resit/internal/middleware/ratelimit"
	"resit/internal/middleware/security"
	"resit/internal/receipts"
	"resit/internal/services"
)

// ReceiptAPI is the receipt surface served under /api/v1/receipts.
type ReceiptAPI interface {
	Create(ctx context.Context, r core.Receipt) (core.Receipt, error)
	CreateBatch(ctx context.Context, rs []core.Receipt) (services.BatchResult, error)
	Get(ctx context.Context, id string) (core.Receipt, error)
	List(ctx context.Context, f receipts.ListFilter) (receipts.Page, error)
	Update(ctx context.Context, id string, patch services.ReceiptPatch) (core.Receipt, error)
	Delete(ctx context.Context, id string) (core.Receipt, error)
}

// AnalysisAPI is the aggregated surface served under /api/v1/analysis.
type AnalysisAPI interface {
	Daily(ctx context.Context, r dashboard.Range) (services.Report, error)
	Categories(ctx context.Context, r dashboard.Range) (core.CategoryBreakdown, error)
}

// ClaimAPI is the team and claim surface served under /api/v1/teams and
// /api/v1/claims.
type ClaimAPI interface {
	CreateTeam(ctx context.Context, name string) (core.Team, error)
	ListTeams(ctx context.Context) ([]core.Team, error)
	TeamStats(ctx context.Context, id string) (core.TeamStats, error)
	CreateClaim(ctx context.Context, c core.Claim) (core.Claim, error)
	GetClaim(ctx context.Context, id string) (core.Claim, error)
	ListClaims(ctx context.Context, f claims.Filter) (claims.Page, error)
	DecideClaim(ctx context.Context, id, status string) (core.Claim, error)
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the server. Zero values disable the matching feature:
// no API key means open access, no Metrics means no /metrics route, no
// Claims means no /teams and /claims routes.
type Options struct {
	Addr           string
	APIKey         string
	RateLimitRPM   int
	RequestTimeout time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Metrics
	Checks         map[string]Pinger
	Claims         ClaimAPI
}

type Server struct {
	http.Server

	receipts ReceiptAPI
	analysis AnalysisAPI
	opts     Options
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(receiptAPI ReceiptAPI, analysisAPI AnalysisAPI, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		receipts: receiptAPI,
		analysis: analysisAPI,
		opts:     opts,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		log.Middleware(s.logger),
		middleware.Recoverer,
		s.detector.Middleware(s.logger.WithComponent(log.ComponentSecurity).Slog()),
		security.Headers(security.DefaultHeadersConfig()),
	)
	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed").Write(w, r)
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Timeout(s.opts.RequestTimeout),
			s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited),
			s.requireAPIKey,
		)

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", s.handleListReceipts)
			r.Post("/", s.handleCreateReceipt)
			r.Post("/batch", s.handleCreateBatch)
			r.Get("/{id}", s.handleGetReceipt)
			r.Put("/{id}", s.handleUpdateReceipt)
			r.Delete("/{id}", s.handleDeleteReceipt)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/daily", s.handleDaily)
			r.Get("/summary", s.handleSummary)
			r.Get("/categories", s.handleCategories)
			r.Get("/export.xlsx", s.handleExport)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/", s.handleAnalytics)
			r.Get("/summary", s.handleSummary)
			r.Get("/categories", s.handleCategories)
		})

		if s.opts.Claims != nil {
			r.Route("/teams", func(r chi.Router) {
				r.Get("/", s.handleListTeams)
				r.Post("/", s.handleCreateTeam)
				r.Get("/{id}/stats", s.handleTeamStats)
			})
			r.Route("/claims", func(r chi.Router) {
				r.Get("/", s.handleListClaims)
				r.Post("/", s.handleCreateClaim)
				r.Get("/{id}", s.handleGetClaim)
				r.Put("/{id}/status", s.handleDecideClaim)
			})
		}
	})
	return r
}

// requireAPIKey checks X-API-Key when a key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.opts.APIKey == "" {
		return next
	}
	want := []byte(s.opts.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-API-Key"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, "missing or invalid API key").Write(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RateLimitedHits.Inc()
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w, r)
}

// handleHealth pings every configured dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.opts.Checks))
	for name, p := range s.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	render.Status(r, code)
	render.JSON(w, r, map[string]any{
		"status": status,
		"checks": checks,
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
