// Package http exposes the ledger as a JSON API under /api/data.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/auth"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/ledger"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/log"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/middleware/ratelimit"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/middleware/security"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/middleware/trace"
)

// Ledger is the subset of ledger.Service the handlers call.
type Ledger interface {
	AuthorizeRecord(actor core.Actor) error
	RecordExpense(ctx context.Context, actor core.Actor, in ledger.NewExpense) (core.ExpenseRecord, error)
	ListExpenses(ctx context.Context, actor core.Actor) ([]core.ExpenseRecord, error)
	SummarizeByProject(ctx context.Context, actor core.Actor) ([]core.ProjectSummary, error)
	ProjectExpenses(ctx context.Context, actor core.Actor, projectID int64) ([]core.ExpenseRecord, error)
	ExportLegacy(ctx context.Context, actor core.Actor) ([]string, error)
	ListProjects(ctx context.Context, actor core.Actor) ([]core.Project, error)
}

// Options tunes the server; zero values pick defaults.
type Options struct {
	Logger            *log.Logger
	RequestsPerMinute int
	// TrustedProxies are CIDR ranges whose forwarding headers are honoured
	// in addition to loopback and private networks.
	TrustedProxies []string
	// Ready backs /readyz, typically the store's Ping.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger      Ledger
	gate        auth.Authenticator
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	ready       func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, gate auth.Authenticator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:      l,
		gate:        gate,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:    security.NewDetector(),
		ready:       opts.Ready,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/data/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/data/expenses", s.handleListExpenses)
	api.HandleFunc("GET /api/data/expenses/summary", s.handleSummary)
	api.HandleFunc("GET /api/data/expenses/export", s.handleExport)
	api.HandleFunc("GET /api/data/projects", s.handleListProjects)
	api.HandleFunc("GET /api/data/projects/{id}/expenses", s.handleProjectExpenses)

	authed := auth.Middleware(gate, func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.WarnContext(r.Context(), "Authentication failed",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		FromError(err).Write(w)
	})
	mux.Handle("/api/data/", authed(api))

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		RateLimited().Write(w)
	}, http.MethodPost)

	screened := s.detector.Middleware(func(r *http.Request) {
		s.logger.WarnContext(r.Context(), "Suspicious request",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldUserAgent, r.UserAgent())
	}, func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowed().Write(w)
	})

	var handler http.Handler = mux
	handler = limited(handler)
	handler = screened(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter, drains the HTTP server and logs the
// request counters gathered while it ran.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		m := s.Metrics()
		s.logger.Info("HTTP server stopped",
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limited", s.rateLimiter.Rejected(),
			"suspicious_requests", m.SuspiciousRequests,
			"spoofed_forwarding", m.SpoofedForwarding)
	})
	return shutdownErr
}

// Metrics combines the trace counters with the detector's.
type Metrics struct {
	trace.Metrics
	security.DetectionMetrics
}

// Metrics snapshots the request and detection counters.
func (s *Server) Metrics() Metrics {
	return Metrics{Metrics: s.tracer.GetMetrics(), DetectionMetrics: s.detector.GetMetrics()}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if err := s.ledger.AuthorizeRecord(actor); err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, core.InvalidInput("body", "must be a JSON object or form data"), log.OpCreate)
		return
	}

	projectID, err := parseID("projectId", p.First("projectID", "projectId"))
	if err != nil {
		s.fail(w, r, core.InvalidInput("projectId", "must be a positive integer"), log.OpCreate)
		return
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}

	rec, err := s.ledger.RecordExpense(r.Context(), actor, ledger.NewExpense{
		ProjectID:   projectID,
		Description: p.Get("description"),
		Notes:       p.Get("notes"),
		Amount:      amount,
	})
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}

	NewResponse().Status(http.StatusCreated).JSON(createdEnvelope{
		Success: true,
		Message: "Expense recorded",
		Data:    toExpenseJSON(rec),
	}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.ListExpenses(r.Context(), actorFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	NewResponse().JSON(expenseList(records)).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.ledger.SummarizeByProject(r.Context(), actorFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpSummarize)
		return
	}
	NewResponse().JSON(summaryList(sums)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	lines, err := s.ledger.ExportLegacy(r.Context(), actorFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	NewResponse().Text(body).Write(w)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.ledger.ListProjects(r.Context(), actorFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	NewResponse().JSON(projectList(projects)).Write(w)
}

func (s *Server) handleProjectExpenses(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID("projectId", r.PathValue("id"))
	if err != nil {
		s.fail(w, r, core.InvalidInput("projectId", "must be a positive integer"), log.OpList)
		return
	}
	records, err := s.ledger.ProjectExpenses(r.Context(), actorFrom(r), projectID)
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	NewResponse().JSON(expenseList(records)).Write(w)
}

// fail logs err at a level matching its kind and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	actor := actorFrom(r)
	fields := log.NewFields().
		WithRequestID(trace.GetRequestID(ctx)).
		WithActor(actor.ID, string(actor.Role)).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())

	resp := FromError(err)
	switch resp.statusCode {
	case http.StatusBadRequest:
		s.logger.WarnContext(ctx, "Invalid request", fields.WithOperation(op).WithErrorType(log.ErrorTypeValidation).WithError(err).ToSlice()...)
	case http.StatusForbidden:
		s.logger.WarnContext(ctx, "Operation forbidden", fields.WithOperation(op).WithErrorType(log.ErrorTypeForbidden).WithError(err).ToSlice()...)
	case http.StatusNotFound:
		s.logger.InfoContext(ctx, "Resource not found", fields.WithOperation(op).WithErrorType(log.ErrorTypeNotFound).WithError(err).ToSlice()...)
	default:
		log.NewStructuredLogger(s.logger).LogError(ctx, "Ledger operation failed", err, log.ErrorTypeDatabase, op, fields)
	}
	resp.Write(w)
}

func actorFrom(r *http.Request) core.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}
