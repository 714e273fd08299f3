package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giantswarm/fedctl/internal/engine"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// Engine is the subset of *engine.Engine the Gateway drives, narrowed
// to an interface so handler tests can substitute a fake (spec §4.8
// maps 1:1 onto engine.Engine's four public operations).
type Engine interface {
	Submit(ctx context.Context, tenant, intentText, workflowTypeHint string) (workflow.ID, error)
	Cancel(ctx context.Context, id workflow.ID) error
	Status(ctx context.Context, id workflow.ID) (engine.WorkflowView, error)
	Subscribe(id workflow.ID) (<-chan workflow.Event, func())
}

// Options configures a Server.
type Options struct {
	// AuthValidator authenticates bearer tokens. Defaults to
	// NoopValidator if nil.
	AuthValidator TokenValidator
	// RateLimitRPS/RateLimitBurst configure the per-tenant request
	// limiter. RateLimitRPS <= 0 disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the Gateway Facade's HTTP surface.
type Server struct {
	engine   Engine
	validate *validator.Validate
	auth     TokenValidator
	limiters *tenantLimiters
	mux      *http.ServeMux
}

// New builds a Server wired to eng. Call Handler to get the
// http.Handler to pass to an http.Server.
func New(eng Engine, opts Options) *Server {
	auth := opts.AuthValidator
	if auth == nil {
		auth = NoopValidator{}
	}
	s := &Server{
		engine:   eng,
		validate: validator.New(),
		auth:     auth,
		limiters: newTenantLimiters(opts.RateLimitRPS, opts.RateLimitBurst),
	}
	s.mux = s.routes()
	return s
}

// Handler returns the fully wired http.Handler (mux + middleware
// chain), ready to hand to an http.Server.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.mux)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/workflows", s.handleSubmit)
	mux.HandleFunc("GET /v1/workflows/{id}", s.handleStatus)
	mux.HandleFunc("DELETE /v1/workflows/{id}", s.handleCancel)
	mux.HandleFunc("GET /v1/workflows/{id}/events", s.handleEvents)
	return mux
}

// withMiddleware wraps h with request logging and then auth (per-tenant
// rate limiting happens in handleSubmit) — the same hand-rolled chaining style as
// the teacher's clientSessionIDMiddleware wrapping in server.go, rather
// than pulling in a middleware framework.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return s.logMiddleware(s.authMiddleware(h))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("Gateway", "%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.auth.Validate(bearerToken(r)) {
			logging.Audit(logging.AuditEvent{Action: "gateway_auth", Outcome: "denied"})
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
