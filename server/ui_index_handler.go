package server

import (
	"net/http"
)

// IndexHandler renders the home page of the signed in user. RequireSession
// has already verified the session.
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		if session := SessionFromContext(r.Context()); session != nil {
			user := session.User
			data.User = &user
			data.Email = user.Email
		}
		renderPage(w, tmpl, data)
	}
}
