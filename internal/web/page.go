// Package web renders the landing page and serves its static assets.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"github.com/wolfman30/beautylab-site/internal/content"
	"github.com/wolfman30/beautylab-site/internal/leads"
	"github.com/wolfman30/beautylab-site/internal/observability/metrics"
	"github.com/wolfman30/beautylab-site/internal/theme"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

// StaticFS holds the stylesheets and favicon served at /static/.
//
//go:embed all:static
var StaticFS embed.FS

// StateLoader returns the state of a form instance.
type StateLoader interface {
	State(ctx context.Context, formID string) (leads.State, error)
}

// Config wires a Page.
type Config struct {
	Catalog      *content.Catalog
	Themes       *theme.Registry
	Forms        StateLoader
	Metrics      *metrics.LeadMetrics
	SecureCookie bool
	Logger       *logging.Logger
}

// Page renders the single landing page for every theme variant.
type Page struct {
	tmpl         *template.Template
	catalog      *content.Catalog
	themes       *theme.Registry
	forms        StateLoader
	metrics      *metrics.LeadMetrics
	secureCookie bool
	logger       *logging.Logger
}

// NewPage parses the embedded templates.
func NewPage(cfg Config) (*Page, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("web: catalog required")
	}
	if cfg.Themes == nil {
		cfg.Themes = theme.NewRegistry(theme.Lab)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	tmpl, err := template.New("site").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	return &Page{
		tmpl:         tmpl,
		catalog:      cfg.Catalog,
		themes:       cfg.Themes,
		forms:        cfg.Forms,
		metrics:      cfg.Metrics,
		secureCookie: cfg.SecureCookie,
		logger:       cfg.Logger.Component("web"),
	}, nil
}

// Index handles GET /.
func (p *Page) Index(w http.ResponseWriter, r *http.Request) {
	state := leads.Idle()
	if p.forms != nil {
		loaded, err := p.forms.State(r.Context(), leads.FormID(w, r, p.secureCookie))
		if err != nil {
			p.logger.Error("failed to load form state", "error", err)
		} else {
			state = loaded
		}
	}
	p.RenderPage(w, r, http.StatusOK, leads.FormView{State: state})
}

// RenderPage renders the page with the given contact form state.
func (p *Page) RenderPage(w http.ResponseWriter, r *http.Request, status int, form leads.FormView) {
	t := p.themes.Resolve(w, r, p.secureCookie)

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "page", p.view(t, form)); err != nil {
		p.logger.Error("failed to render page", "theme", t.Name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	p.metrics.ObservePageView(t.Name)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

type navLink struct {
	Href    string
	Label   string
	Primary bool
}

var navLinks = []navLink{
	{Href: "#services", Label: "Послуги"},
	{Href: "#gallery", Label: "Галерея"},
	{Href: "#info", Label: "Інформація"},
	{Href: "#contact", Label: "Записатись", Primary: true},
}

type choiceView struct {
	Code     string
	Label    string
	Selected bool
}

type formView struct {
	Fields     leads.Fields
	Errors     map[string]string
	Message    string
	Choices    []choiceView
	Submitting bool
	Succeeded  bool
	Failed     bool
}

type pageView struct {
	Theme     *theme.Theme
	ThemeVars template.CSS
	Catalog   *content.Catalog
	Nav       []navLink
	PhoneHref template.URL
	Form      formView
}

func (p *Page) view(t *theme.Theme, form leads.FormView) pageView {
	state := form.State
	choices := make([]choiceView, 0, len(p.catalog.ServiceChoices))
	for _, c := range p.catalog.ServiceChoices {
		choices = append(choices, choiceView{
			Code:     c.Code,
			Label:    c.Label,
			Selected: c.Code == state.Fields.Service,
		})
	}

	return pageView{
		Theme:     t,
		ThemeVars: themeVars(t),
		Catalog:   p.catalog,
		Nav:       navLinks,
		PhoneHref: template.URL(p.catalog.Contacts.PhoneHref()),
		Form: formView{
			Fields:     state.Fields,
			Errors:     form.Errors,
			Message:    state.Message,
			Choices:    choices,
			Submitting: state.Status == leads.StatusSubmitting,
			Succeeded:  state.Status == leads.StatusSucceeded,
			Failed:     state.Status == leads.StatusFailed,
		},
	}
}

// themeVars renders the manifest CSS variables as an inline declaration list.
// Manifest tokens are compiled in, never user supplied.
func themeVars(t *theme.Theme) template.CSS {
	names := make([]string, 0, len(t.CSSVars))
	for name := range t.CSSVars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s; ", name, t.CSSVars[name])
	}
	return template.CSS(strings.TrimSpace(b.String()))
}

var _ leads.PageRenderer = (*Page)(nil)
