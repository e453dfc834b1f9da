package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"moneybook/internal/api"
	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/middleware/security"
	"moneybook/internal/services"
	"moneybook/internal/session"
)

const (
	msgSessionExpired = "Your session has expired, please sign in again."
	msgSignedOut      = "You have been signed out."
	readyTimeout      = 5 * time.Second
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready only when the tracker API answers its health
// check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok"}
	status, code := "ready", http.StatusOK

	if s.upstream == nil {
		checks["api"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		h, err := s.upstream.Health(ctx)
		switch {
		case err != nil:
			checks["api"] = "failed: " + api.Message(err)
			status, code = "not_ready", http.StatusServiceUnavailable
			s.logFor(r).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		case h.Status != "" && h.Status != "OK" && h.Status != "ok":
			checks["api"] = "status " + h.Status
			status, code = "not_ready", http.StatusServiceUnavailable
		default:
			checks["api"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireAuth resolves the session cookie, re-validates the token when due
// and stores the session in the request context. Requests without a usable
// session are sent to the sign-in page.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loaded, err := s.sessions.Load(r)
		if err != nil {
			s.toLogin(w, r, err)
			return
		}
		sess, err := s.auth.Verify(r.Context(), loaded)
		if err != nil {
			s.logFor(r).InfoContext(r.Context(), "Session rejected by API",
				log.FieldSessionID, loaded.ID,
				log.FieldError, err)
			s.signOut(w, r, api.Message(err))
			return
		}
		ctx := session.WithSession(r.Context(), sess)
		ctx = log.WithLogger(ctx, s.logFor(r).With(log.FieldUserID, sess.User.ID))
		next(w, r.WithContext(ctx))
	}))
}

// toLogin redirects an anonymous request to /login, remembering where it
// was going.
func (s *Server) toLogin(w http.ResponseWriter, r *http.Request, cause error) {
	q := url.Values{}
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		q.Set("next", r.URL.RequestURI())
	}
	if errors.Is(cause, session.ErrExpired) {
		http.SetCookie(w, s.sessions.ExpireCookie())
		q.Set("flash", msgSessionExpired)
		q.Set("kind", FlashInfo)
	} else if errors.Is(cause, session.ErrNotFound) {
		http.SetCookie(w, s.sessions.ExpireCookie())
	} else if cause != nil && !errors.Is(cause, http.ErrNoCookie) {
		s.logFor(r).ErrorContext(r.Context(), "Session lookup failed", log.FieldError, cause)
	}
	target := "/login"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// signOut drops the current session and sends the browser to the sign-in
// page with message.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request, message string) {
	if sess, ok := session.FromContext(r.Context()); ok {
		if err := s.sessions.Destroy(r.Context(), sess.ID); err != nil {
			s.logFor(r).WarnContext(r.Context(), "Failed to destroy session", log.FieldError, err)
		}
	}
	http.SetCookie(w, s.sessions.ExpireCookie())
	if message == "" {
		message = msgSessionExpired
	}
	redirectWithFlash(w, r, "/login", FlashError, message)
}

// userMessage returns the text shown to the user for err.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case services.IsValidation(err):
		return err.Error()
	case isInputError(err):
		return err.Error()
	default:
		return api.Message(err)
	}
}

func isInputError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorStatus maps err to the status of the page that reports it.
func errorStatus(err error) int {
	switch {
	case services.IsValidation(err), isInputError(err):
		return http.StatusUnprocessableEntity
	case api.IsTimeout(err):
		return http.StatusGatewayTimeout
	}
	switch code := api.StatusCode(err); {
	case code == http.StatusNotFound:
		return http.StatusNotFound
	case code >= 400 && code < 500:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// failed reports err for a page load. Unauthorized errors end the session.
func (s *Server) failed(w http.ResponseWriter, r *http.Request, op string, err error) {
	if api.IsUnauthorized(err) {
		s.signOut(w, r, api.Message(err))
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logFor(r).WarnContext(r.Context(), "Request failed",
		log.FieldOperation, op,
		log.FieldStatusCode, api.StatusCode(err),
		log.FieldError, err)
	s.renderError(w, r, errorStatus(err), userMessage(err))
}
