package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/rs/zerolog/log"
)

// SignInPageHandler displays the sign in form (GET /auth/signin)
func (s *Server) SignInPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("signin.html")
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		data.Error = errorFromQuery(r)
		data.Email = r.URL.Query().Get("email")
		renderPage(w, tmpl, data)
	}
}

// SignInSubmitHandler signs in with the provider. The session is written to
// the response cookies by the request's storage before the redirect is sent.
func (s *Server) SignInSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("signin.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		data := s.pageData()
		data.Email = email
		if err := auth.ValidateCredentials(email, password); err != nil {
			data.Error = validationMessage(err)
			renderPage(w, tmpl, data)
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}

		_, err = ra.service.SignIn(r.Context(), email, password)
		s.recordOutcome(opSignIn, err)
		if err != nil {
			log.Info().Err(err).Str("code", string(auth.CodeOf(err))).Msg("sign in rejected")
			data.Error = messageFor(err)
			renderPage(w, tmpl, data)
			return
		}
		redirectSuccess(w, r, RouteHome)
	}
}

// SignUpPageHandler displays the registration form (GET /auth/signup)
func (s *Server) SignUpPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("signup.html")
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		data.Error = errorFromQuery(r)
		renderPage(w, tmpl, data)
	}
}

// SignUpSubmitHandler registers a new account. When the email is already
// registered the same credentials are tried for a sign in, strictly after the
// sign up attempt has finished.
func (s *Server) SignUpSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("signup.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		confirmation := r.FormValue("confirm_password")

		data := s.pageData()
		data.Email = email
		if err := auth.ValidateEmail(email); err != nil {
			data.Error = validationMessage(err)
			renderPage(w, tmpl, data)
			return
		}
		if err := auth.ValidatePasswordConfirmation(password, confirmation); err != nil {
			data.Error = validationMessage(err)
			renderPage(w, tmpl, data)
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}

		_, err = ra.service.SignUp(r.Context(), email, password)
		s.recordOutcome(opSignUp, err)
		if err == nil {
			data.Notice = confirmEmailNotice
			renderPage(w, tmpl, data)
			return
		}
		if auth.CodeOf(err) != auth.CodeUserAlreadyExists {
			log.Info().Err(err).Str("code", string(auth.CodeOf(err))).Msg("sign up rejected")
			data.Error = messageFor(err)
			renderPage(w, tmpl, data)
			return
		}

		_, err = ra.service.SignIn(r.Context(), email, password)
		s.recordOutcome(opSignIn, err)
		if err != nil {
			data.Error = messageForCode(auth.CodeUserAlreadyExists)
			renderPage(w, tmpl, data)
			return
		}
		redirectSuccess(w, r, RouteHome)
	}
}

// SignOutHandler ends the session and always clears the cookie (POST /auth/signout)
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}
		err = ra.service.SignOut(r.Context())
		s.recordOutcome(opSignOut, err)
		if err != nil {
			log.Warn().Err(err).Msg("provider sign out failed")
		}
		ra.clearSession(r.Context())
		redirectSuccess(w, r, RouteSignIn)
	}
}

// ForgotPasswordPageHandler renders the forgot-password page
func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("forgot_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		data.Error = errorFromQuery(r)
		renderPage(w, tmpl, data)
	}
}

// ForgotPasswordSubmitHandler requests a reset email. The reply is the same
// whether or not the email has an account.
func (s *Server) ForgotPasswordSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("forgot_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))

		data := s.pageData()
		if err := auth.ValidateEmail(email); err != nil {
			data.Error = validationMessage(err)
			renderPage(w, tmpl, data)
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}
		ra.service.RequestPasswordReset(r.Context(), email)
		s.recordOutcome(opPasswordReset, nil)

		data.Notice = checkEmailNotice
		renderPage(w, tmpl, data)
	}
}

// AuthCallbackHandler completes the links sent by email (GET /auth/callback)
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHash := r.URL.Query().Get("token_hash")
		linkType := r.URL.Query().Get("type")
		if tokenHash == "" {
			redirectWithError(w, r, RouteSignIn, "otp_expired")
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}

		switch linkType {
		case "recovery":
			_, err = ra.service.VerifyRecovery(r.Context(), tokenHash)
			s.recordOutcome(opVerifyRecovery, err)
			if err != nil {
				log.Info().Err(err).Msg("recovery link rejected")
				redirectWithError(w, r, RouteForgotPassword, auth.CodeOf(err))
				return
			}
			redirectSuccess(w, r, RouteResetPassword)
		case "signup", "email":
			_, err = ra.service.ConfirmSignUp(r.Context(), tokenHash)
			s.recordOutcome(opConfirmSignUp, err)
			if err != nil {
				log.Info().Err(err).Msg("confirmation link rejected")
				redirectWithError(w, r, RouteSignIn, auth.CodeOf(err))
				return
			}
			redirectSuccess(w, r, RouteHome)
		default:
			redirectWithError(w, r, RouteSignIn, "otp_expired")
		}
	}
}

// ResetPasswordPageHandler renders the new password form. It sits behind
// RequireSession, so only a recovery (or normal) session reaches it.
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("reset_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		if session := SessionFromContext(r.Context()); session != nil {
			data.Email = session.User.Email
		}
		renderPage(w, tmpl, data)
	}
}

func (s *Server) ResetPasswordSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("reset_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		password := r.FormValue("password")
		confirmation := r.FormValue("confirm_password")

		data := s.pageData()
		if session := SessionFromContext(r.Context()); session != nil {
			data.Email = session.User.Email
		}
		if err := auth.ValidatePasswordConfirmation(password, confirmation); err != nil {
			data.Error = validationMessage(err)
			renderPage(w, tmpl, data)
			return
		}

		ra, err := s.requestAuth(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to create request auth")
			http.Error(w, defaultErrorMessage, http.StatusInternalServerError)
			return
		}
		err = ra.service.UpdatePassword(r.Context(), password)
		s.recordOutcome(opUpdatePassword, err)
		if err != nil {
			log.Info().Err(err).Str("code", string(auth.CodeOf(err))).Msg("password update rejected")
			data.Error = messageFor(err)
			renderPage(w, tmpl, data)
			return
		}
		data.Notice = passwordSetNotice
		renderPage(w, tmpl, data)
	}
}
