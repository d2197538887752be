package server

import (
	"net/http"

	"github.com/iforddow/bizaudo-server/auth"
	"github.com/iforddow/bizaudo-server/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int         `json:"expiresIn"`
	User        *users.User `json:"user"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type checkCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type checkCodeResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type submitNewPasswordRequest struct {
	Email              string `json:"email"`
	Token              string `json:"token"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RegisterHandler creates a new account and mails the verification link.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := s.auth.Register(r.Context(), req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, messageResponse{Message: "user successfully registered"})
	}
}

// LoginHandler exchanges credentials for a token pair. The access token is
// returned in the body; the refresh token only ever travels in the cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pair, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}

		s.setRefreshCookie(w, pair.RefreshToken)
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: pair.AccessToken,
			TokenType:   pair.TokenType,
			ExpiresIn:   pair.ExpiresIn,
			User:        user,
		})
	}
}

// RefreshHandler rotates the refresh token presented in the cookie and
// returns a fresh access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := s.refreshTokenFromCookie(r)
		if raw == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing refresh token")
			return
		}

		pair, user, err := s.auth.Refresh(r.Context(), raw)
		if err != nil {
			s.clearRefreshCookie(w)
			writeError(w, err)
			return
		}

		s.setRefreshCookie(w, pair.RefreshToken)
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: pair.AccessToken,
			TokenType:   pair.TokenType,
			ExpiresIn:   pair.ExpiresIn,
			User:        user,
		})
	}
}

// LogoutHandler revokes the refresh token in the cookie and clears it.
// ?allDevices=true revokes every live token for the account.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allDevices := r.URL.Query().Get("allDevices") == "true"

		if err := s.auth.Logout(r.Context(), s.refreshTokenFromCookie(r), allDevices); err != nil {
			writeError(w, err)
			return
		}

		s.clearRefreshCookie(w)
		writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
	}
}

// ForgotPasswordHandler starts a password reset. The response is the same
// whether or not the address is known.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "if the address is registered, a reset code has been sent"})
	}
}

// CheckResetCodeHandler swaps a correct reset code for a single-use reset
// token.
func (s *Server) CheckResetCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkCodeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resetToken, err := s.auth.CheckPasswordResetCode(r.Context(), req.Email, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkCodeResponse{Message: "code accepted", Token: resetToken})
	}
}

// SubmitNewPasswordHandler finishes a password reset with the token from
// the check-code step.
func (s *Server) SubmitNewPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitNewPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.auth.SubmitNewPassword(r.Context(), req.Email, req.Token, req.NewPassword, req.ConfirmNewPassword); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
	}
}

// ChangePasswordHandler changes the authenticated user's password. All of
// their refresh tokens are revoked, so the cookie is cleared as well.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "missing access token")
			return
		}

		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := s.auth.ChangePassword(r.Context(), claims.Subject, req.OldPassword, req.NewPassword, req.ConfirmNewPassword)
		if err != nil {
			writeError(w, err)
			return
		}

		s.clearRefreshCookie(w)
		writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
	}
}

// RequestVerificationHandler (re)sends the verification mail for the
// address in the email query parameter.
func (s *Server) RequestVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			writeErrorMessage(w, http.StatusBadRequest, "email query parameter is required")
			return
		}

		if err := s.auth.RequestEmailVerification(r.Context(), email); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "if the address is registered, a verification email has been sent"})
	}
}

// VerifyEmailHandler redeems the token from the mailed link.
func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := r.URL.Query().Get("token")
		if rawToken == "" {
			writeErrorMessage(w, http.StatusBadRequest, "token query parameter is required")
			return
		}

		if err := s.auth.VerifyEmail(r.Context(), rawToken); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
	}
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetRefreshCookieName(),
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(s.auth.RefreshTokenExpiry().Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetRefreshCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetRefreshCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}
