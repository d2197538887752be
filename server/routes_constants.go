package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Registration, Login & Logout
	RouteAuthRegister = "/auth/register"
	RouteAuthLogin    = "/auth/login"
	RouteAuthRefresh  = "/auth/refresh"
	RouteAuthLogout   = "/auth/logout"

	// Auth Routes - Password Management
	RouteChangePassword          = "/auth/change-password"
	RouteForgotPassword          = "/auth/forgot-password"
	RouteForgotPasswordCheckCode = "/auth/forgot-password/check-code"
	RouteForgotPasswordSubmitNew = "/auth/forgot-password/submit-new"

	// Auth Routes - Email Verification
	RouteVerifyEmail       = "/auth/verify-email"
	RouteVerifyEmailSubmit = "/auth/verify-email/submit"
)
