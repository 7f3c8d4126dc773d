package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Entry page
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteAuthStart    = "/auth/provider"
	RouteAuthCallback = "/auth/provider/callback"
	RouteLogout       = "/logout"

	// Protected Routes
	RouteProfile = "/profile"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
