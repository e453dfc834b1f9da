package http

import (
	"net/http"

	"moneybook/internal/api"
	"moneybook/internal/log"
	"moneybook/internal/services"
	"moneybook/internal/session"
)

type authForm struct {
	Name  string
	Email string
	Next  string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.hasSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", pageData{
		Title: "Sign in",
		Data:  authForm{Next: safeRedirect(r.URL.Query().Get("next"))},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	form := authForm{
		Email: sanitizeInput(r.PostForm.Get("email")),
		Next:  safeRedirect(r.PostForm.Get("next")),
	}
	sess, err := s.auth.Login(r.Context(), form.Email, r.PostForm.Get("password"))
	if err != nil {
		s.render(w, r, authErrorStatus(err), "login.html", pageData{
			Title: "Sign in",
			Error: userMessage(err),
			Data:  form,
		})
		return
	}
	http.SetCookie(w, s.sessions.Cookie(sess))
	http.Redirect(w, r, form.Next, http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if s.hasSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "register.html", pageData{Title: "Create account", Data: authForm{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	form := authForm{
		Name:  sanitizeInput(r.PostForm.Get("name")),
		Email: sanitizeInput(r.PostForm.Get("email")),
	}
	password := r.PostForm.Get("password")
	if password != r.PostForm.Get("confirm") {
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", pageData{
			Title: "Create account",
			Error: "Passwords do not match",
			Data:  form,
		})
		return
	}
	sess, err := s.auth.Register(r.Context(), form.Name, form.Email, password)
	if err != nil {
		s.render(w, r, authErrorStatus(err), "register.html", pageData{
			Title: "Create account",
			Error: userMessage(err),
			Data:  form,
		})
		return
	}
	http.SetCookie(w, s.sessions.Cookie(sess))
	redirectWithFlash(w, r, "/", FlashSuccess, "Welcome, "+sess.User.Name+"!")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(r)
	if err == nil {
		if err := s.auth.Logout(session.WithSession(r.Context(), sess), sess); err != nil {
			s.logFor(r).WarnContext(r.Context(), "Logout failed",
				log.FieldOperation, log.OpLogout,
				log.FieldError, err)
		}
	}
	http.SetCookie(w, s.sessions.ExpireCookie())
	redirectWithFlash(w, r, "/login", FlashSuccess, msgSignedOut)
}

// hasSession reports whether the request carries a live session. The token
// is not re-validated here; protected pages do that.
func (s *Server) hasSession(r *http.Request) bool {
	_, err := s.sessions.Load(r)
	return err == nil
}

func authErrorStatus(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case api.IsUnauthorized(err):
		return http.StatusUnauthorized
	}
	return errorStatus(err)
}
