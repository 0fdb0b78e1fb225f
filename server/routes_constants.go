package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome = "/"

	// Auth Routes - Sign in & Sign out
	RouteSignIn  = "/auth/signin"
	RouteSignOut = "/auth/signout"
	RouteSignUp  = "/auth/signup"

	// Auth Routes - Emailed links land here
	RouteAuthCallback = "/auth/callback"

	// Auth Routes - Password Management
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"

	// API Routes
	RouteAPISession          = "/api/auth/session"
	RouteAPIValidatePassword = "/api/validate-password"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
