package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/jrsteele09/go-auth-bridge/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Option func(s *Server)

// WithProviderURL points the server at a provider other than the configured
// one, e.g. the embedded development provider.
func WithProviderURL(url string) Option {
	return func(s *Server) {
		s.providerURL = url
	}
}

// WithHTTPClient replaces the client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		s.httpClient = hc
	}
}

// WithRegistry registers the metrics with reg and serves them from /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	providerURL string
	httpClient  *http.Client
	registry    *prometheus.Registry
	metrics     metrics.Recorder
	limiter     *RateLimiter
	requests    *requestAuthFactory
	sessions    *SessionReader
	now         func() time.Time
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		providerURL: cfg.GetProviderURL(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.providerURL == "" {
		return nil, errors.New("[Server New] provider url is required")
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.GetProviderTimeout()}
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s.metrics = metrics.NewCollector(s.registry)

	codec, err := newCookieCodec(cfg.GetSessionSecret())
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] session cookie codec")
	}
	baseURL := cfg.GetBaseURL()
	s.requests = &requestAuthFactory{
		providerURL: s.providerURL,
		apiKey:      cfg.GetProviderAnonKey(),
		httpClient:  s.httpClient,
		cookieName:  cfg.GetSessionCookieName(),
		codec:       codec,
		cookieOpts: cookieOptions{
			domain: cfg.GetSessionCookieDomain(),
			secure: cfg.GetSessionCookieSecure() || strings.HasPrefix(baseURL, "https://"),
			maxAge: cfg.GetSessionMaxAge(),
		},
		emailRedirect:    baseURL + RouteAuthCallback,
		recoveryRedirect: baseURL + RouteAuthCallback,
		now:              s.now,
	}
	s.sessions = &SessionReader{
		factory:   s.requests,
		jwtSecret: []byte(cfg.GetProviderJWTSecret()),
		metrics:   s.metrics,
		now:       s.now,
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = NewRateLimiter(cfg.GetRateLimit(), cfg.GetRateLimitBurst(), s.metrics)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops background work. It does not affect in flight requests.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Sessions is the server side session reader.
func (s *Server) Sessions() *SessionReader {
	return s.sessions
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
