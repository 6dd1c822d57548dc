package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expenex/internal/core"
	"expenex/internal/log"
	"expenex/internal/session"
)

type navItem struct {
	Name string
	Path string
}

var navItems = []navItem{
	{Name: "Dashboard", Path: "/dashboard"},
	{Name: "Income", Path: "/income"},
	{Name: "Expense", Path: "/expense"},
}

// view is the layout data; Data is handed to the page's "content" block.
type view struct {
	Title  string
	Active string
	Authed bool
	Data   any
}

type breakdownView struct {
	Title string
	Rows  []core.CategoryAmount
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency": func(d decimal.Decimal) string { return core.FormatCurrency(d) },
		"day": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"navItems": func() []navItem { return navItems },
		"breakdown": func(title string, rows []core.CategoryAmount) breakdownView {
			return breakdownView{Title: title, Rows: rows}
		},
	}
}

// renderer keeps one template set per page, each cloned from the shared
// layout and partials.
type renderer struct {
	partials *template.Template
	pages    map[string]*template.Template
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	base, err := template.New("base").Funcs(templateFuncs()).
		ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	r := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", f, err)
		}
		if _, err := t.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}

	if r.partials, err = base.Clone(); err != nil {
		return nil, fmt.Errorf("clone partials: %w", err)
	}
	return r, nil
}

func (r *renderer) page(name string, data view) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *renderer) partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderPage writes a full page. The navbar is shown when the request
// passed the session guard.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name, title, active string, data any) {
	_, authed := session.FromContext(r.Context())
	body, err := s.views.page(name, view{Title: title, Active: active, Authed: authed, Data: data})
	if err != nil {
		s.templateFailed(w, r, name, err)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(body).Write(w)
}

// renderPartial writes an HTMX fragment through b so callers can add triggers.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.views.partial(name, data)
	if err != nil {
		s.templateFailed(w, r, name, err)
		return
	}
	b.BodyHTML(body).Write(w)
}

func (s *Server) templateFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
		"template", name,
		log.FieldErrorType, log.ErrorTypeInternal,
		log.FieldError, err.Error())
	InternalServerError("Error rendering page").Write(w)
}
