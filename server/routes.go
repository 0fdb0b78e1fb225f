package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-bridge/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.RequireSession())...))

	// SIGN IN / SIGN UP
	s.RegisterRouteHandler("GET "+RouteSignIn, ChainMiddleware(s.SignInPageHandler(), s.HTMLMiddleWare(s.RedirectIfAuthenticated())...))
	s.RegisterRouteHandler("POST "+RouteSignIn, ChainMiddleware(s.SignInSubmitHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSignUp, ChainMiddleware(s.SignUpPageHandler(), s.HTMLMiddleWare(s.RedirectIfAuthenticated())...))
	s.RegisterRouteHandler("POST "+RouteSignUp, ChainMiddleware(s.SignUpSubmitHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.HTMLMiddleWare()...))

	// Emailed links
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.FormMiddleware()...))

	// PASSWORD MANAGEMENT
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordSubmitHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPageHandler(), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordSubmitHandler(), s.FormMiddleware(s.RequireSession())...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISession, ChainMiddleware(s.SetSessionHandler(), s.apiFormMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteAPISession, ChainMiddleware(s.ClearSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPIValidatePassword, s.ValidatePasswordHandler())

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.registry))
}

// apiFormMiddleware is the API chain with the rate limiter for calls that reach the provider.
func (s *Server) apiFormMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return s.APIMiddleware()
	}
	return s.APIMiddleware(s.limiter.Middleware)
}
