package server

import (
	"fmt"
	"html"
	"net/http"

	"github.com/jrsteele09/go-auth-bridge/auth"
)

// ValidatePasswordHandler checks password strength while the sign up or reset
// form is being filled in. It answers with an htmx fragment.
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		password := r.FormValue("password")
		w.Header().Set("Content-Type", contentTypeHTML)

		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := auth.ValidatePasswordStrength(password); err != nil {
			w.Header().Set("HX-Trigger", "passwordInvalid")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<span class="text-danger">%s</span>`, html.EscapeString(validationMessage(err)))
			return
		}

		w.Header().Set("HX-Trigger", "passwordValid")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<span class="text-success">Strong password</span>`)
	}
}
