package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/httputil"
	"github.com/platinummonkey/cantor/pkg/middleware"
	"github.com/platinummonkey/cantor/pkg/observability"
)

// PathPrefix roots every auth and user route
const PathPrefix = "/api/auth"

// AuthService is the behavior the HTTP layer needs from auth.Service
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Identity(ctx context.Context, token string) (auth.Identity, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ListAccounts(ctx context.Context) ([]*auth.Account, error)
	CreateAccount(ctx context.Context, in auth.NewAccount) (*auth.Account, error)
	UpdateAccount(ctx context.Context, id string, patch auth.AccountPatch) (*auth.Account, error)
	DeactivateAccount(ctx context.Context, actorID, id string) error
}

// Options configures a Server
type Options struct {
	Service AuthService
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Limiter throttles login, forgot-password and reset-password per
	// client address. Nil disables rate limiting.
	Limiter middleware.Limiter

	CORSOrigins    []string
	TrustProxy     bool
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	opts    Options
	logger  *observability.Logger
	handler http.Handler
}

// NewServer creates the API server and registers its routes
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		logger: opts.Logger,
	}
	s.router.NotFoundHandler = http.HandlerFunc(notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))

	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	authMW := middleware.NewAuthMiddleware(s.opts.Service, s.opts.Metrics)

	var rateLimit func(http.Handler) http.Handler
	if s.opts.Limiter != nil {
		rateLimit = middleware.NewRateLimitMiddleware(s.opts.Limiter, "credentials", s.opts.Metrics).Handler
	}

	// Subrouters answer mismatches themselves, so they need their own handlers
	api := s.router.PathPrefix(PathPrefix).Subrouter()
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	NewAuthHandlers(s.opts.Service, authMW, rateLimit).RegisterRoutes(api)
	NewUserHandlers(s.opts.Service, authMW).RegisterRoutes(api)
}

// buildHandler wraps the router in the request pipeline. The tracing
// handler is outermost so spans cover the whole request.
func (s *Server) buildHandler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.opts.TrustProxy),
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(s.opts.CORSOrigins),
		httputil.TimeoutMiddleware(s.opts.RequestTimeout),
		httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)
	return otelhttp.NewHandler(chain(s.router), "cantor.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !isOpsPath(r.URL.Path)
		}),
	)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotFound(w, "not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

func isOpsPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// OpsRoutes serves liveness, readiness and Prometheus metrics
type OpsRoutes struct {
	Health   *observability.HealthChecker
	Registry *prometheus.Registry
}

// RegisterRoutes registers /healthz, /readyz and, with a registry, /metrics
func (o OpsRoutes) RegisterRoutes(router *mux.Router) {
	if o.Health != nil {
		observability.RegisterHealthRoutes(router, o.Health)
	}
	if o.Registry != nil {
		observability.RegisterMetricsEndpoint(router, o.Registry)
	}
}

// NewOpsRouter builds a standalone router for the ops listener
func NewOpsRouter(ops OpsRoutes) *mux.Router {
	router := mux.NewRouter()
	ops.RegisterRoutes(router)
	return router
}
