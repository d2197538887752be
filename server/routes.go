package server

import "net/http"

func (s *Server) initRoutes() {
	// CORS preflight. Method-qualified patterns never match OPTIONS, so
	// preflights need their own catch-all.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, s.CorsMiddleware))

	// Credential lifecycle
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Password reset (two phase) and password change
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteForgotPasswordCheckCode, ChainMiddleware(s.CheckResetCodeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteForgotPasswordSubmitNew, ChainMiddleware(s.SubmitNewPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteChangePassword, ChainMiddleware(s.ChangePasswordHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Email verification
	s.RegisterRouteHandler("POST "+RouteVerifyEmail, ChainMiddleware(s.RequestVerificationHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteVerifyEmailSubmit, ChainMiddleware(s.VerifyEmailHandler(), s.APIMiddleware()...))
}
