package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/session"
)

// Flash kinds understood by the layout.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

const maxFlashLength = 200

// Flash is a one-line notice shown above the page content.
type Flash struct {
	Kind    string
	Message string
}

// pageData is the root value of every template.
type pageData struct {
	Title  string
	Active string
	User   *core.User
	Flash  Flash
	Error  string
	Data   any
}

type renderer struct {
	pages map[string]*template.Template
}

var pageNames = []string{
	"login.html",
	"register.html",
	"dashboard.html",
	"transactions.html",
	"transaction_edit.html",
	"categories.html",
	"category_edit.html",
	"error.html",
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format() },
		"signed": func(t core.TransactionType, m core.Money) string {
			return t.Sign() + m.Format()
		},
		"date": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.Format("2 Jan 2006")
		},
		"monthName": func(m int) string {
			if m < 1 || m > 12 {
				return ""
			}
			return time.Month(m).String()
		},
		"months": func() []int { return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} },
		"typeLabel": func(t core.TransactionType) string {
			switch t {
			case core.Income:
				return "Income"
			case core.Expense:
				return "Expense"
			}
			return ""
		},
		"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	}
}

// newRenderer parses the layout and shared partials together with each page
// so that every page can define its own "content" block.
func newRenderer(fsys fs.FS) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs()).ParseFS(fsys, "templates/layout.html", "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes the page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.templates.pages[name]
	if !ok {
		s.logFor(r).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Unknown template", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if data.User == nil {
		if sess, ok := session.FromContext(r.Context()); ok {
			u := sess.User
			data.User = &u
		}
	}
	if data.Flash.Message == "" {
		data.Flash = flashFrom(r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logFor(r).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with a user-facing message.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error.html", pageData{
		Title: http.StatusText(status),
		Error: message,
	})
}

// flashFrom reads the notice carried by a post/redirect/get round trip.
func flashFrom(r *http.Request) Flash {
	q := r.URL.Query()
	msg := strings.TrimSpace(q.Get("flash"))
	if msg == "" {
		return Flash{}
	}
	if len(msg) > maxFlashLength {
		msg = msg[:maxFlashLength]
	}
	kind := q.Get("kind")
	switch kind {
	case FlashSuccess, FlashError, FlashInfo:
	default:
		kind = FlashInfo
	}
	return Flash{Kind: kind, Message: msg}
}

// redirectWithFlash sends a 303 to path with the notice in the query.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, kind, message string) {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	if message != "" {
		q.Set("flash", message)
		q.Set("kind", kind)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
