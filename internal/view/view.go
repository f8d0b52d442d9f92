// Package view renders the server-side HTML pages. Every page is parsed
// together with base.html, which supplies the layout and navigation and
// pulls the page body in through {{template "content" .}}.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageIndex    = "index"
	PageDetail   = "detail"
	PageAdd      = "add"
	PageLogin    = "login"
	PageRegister = "register"
	PageError    = "error"
)

var pages = []string{PageIndex, PageDetail, PageAdd, PageLogin, PageRegister, PageError}

// Page is the data every template receives.
type Page struct {
	Title string
	// User is nil for anonymous visitors.
	User  *auth.Identity
	Error string
	// Form echoes submitted values back into a re-rendered form.
	Form  url.Values
	Next  string
	Trips []model.Trip
	Trip  *model.Trip
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// New parses all page templates. imageBase is prefixed to stored image names
// to build <img src> URLs, e.g. "/uploads/".
func New(imageBase string, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"imageURL": func(name string) string {
			return imageBase + url.PathEscape(name)
		},
		"formatCost": func(c float64) string {
			return strconv.FormatFloat(c, 'f', -1, 64)
		},
		"formatDate": func(t time.Time) string {
			return t.Format("2 Jan 2006")
		},
	}

	r := &Renderer{
		pages:  make(map[string]*template.Template, len(pages)),
		logger: logger,
	}
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes page with the given status. The page is executed into a
// buffer first so a template error still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data *Page) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Debug("writing response failed", slog.String("error", err.Error()))
	}
}

// ImageBase derives the public URL prefix for images kept in a MinIO bucket.
func ImageBase(endpoint, bucket string, useSSL bool) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimSuffix(endpoint, "/") + "/" + bucket + "/"
}
