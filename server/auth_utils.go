package server

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"

	outcomeSuccess = "success"
)

// Auth operation names used for metrics and logs.
const (
	opSignIn         = "signin"
	opSignUp         = "signup"
	opSignOut        = "signout"
	opPasswordReset  = "password_reset"
	opUpdatePassword = "update_password"
	opVerifyRecovery = "verify_recovery"
	opConfirmSignUp  = "confirm_signup"
	opSetSession     = "set_session"
)

// PageData is the template model shared by every page.
type PageData struct {
	AppName string
	Error   string
	Notice  string
	Email   string
	User    *auth.User
}

func (s *Server) pageData() PageData {
	return PageData{AppName: s.config.GetAppName()}
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// recordOutcome counts an operation under "success" or the error's code.
func (s *Server) recordOutcome(operation string, err error) {
	if err == nil {
		s.metrics.RecordAuthOperation(operation, outcomeSuccess)
		return
	}
	s.metrics.RecordAuthOperation(operation, string(auth.CodeOf(err)))
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects. Only the code
// travels in the url; the page turns it back into copy.
func redirectWithError(w http.ResponseWriter, r *http.Request, path string, code auth.Code) {
	fullPath := path + "?error=" + url.QueryEscape(string(code))

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// errorFromQuery is the message for an ?error= code left by redirectWithError.
func errorFromQuery(r *http.Request) string {
	if !r.URL.Query().Has("error") {
		return ""
	}
	return messageForCode(auth.Code(r.URL.Query().Get("error")))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
