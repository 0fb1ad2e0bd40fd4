// Package theme defines the visual variants of the page and picks one per request.
package theme

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	gotheme "github.com/goliatone/go-theme"
)

const (
	// Lab is the dark "Beauty Lab" variant.
	Lab = "lab"
	// Studio is the light "Beauty Studio" variant.
	Studio = "studio"

	// QueryParam switches the variant and persists the choice in CookieName.
	QueryParam = "theme"
	CookieName = "theme"

	// StylesheetAsset is the manifest asset key of the variant stylesheet.
	StylesheetAsset = "stylesheet"

	manifestVersion = "1.0.0"
	cookieMaxAge    = 180 * 24 * time.Hour
)

// Theme is everything the templates need to render one variant.
type Theme struct {
	Name       string
	Brand      string
	Subtitle   string
	Dark       bool
	Stylesheet string
	// Tokens are the manifest tokens; CSSVars the same values keyed as
	// custom properties ("--accent").
	Tokens  map[string]string
	CSSVars map[string]string
}

// identity is the copy that differs per variant and is not a design token.
type identity struct {
	Brand    string
	Subtitle string
	Dark     bool
}

var identities = map[string]identity{
	Lab:    {Brand: "Beauty Lab", Subtitle: "PERMANENT MAKEUP", Dark: true},
	Studio: {Brand: "Beauty Studio", Subtitle: "PERMANENT MAKEUP & COSMETOLOGY"},
}

// Manifests returns the built-in variant manifests.
func Manifests() []*gotheme.Manifest {
	return []*gotheme.Manifest{
		{
			Name:        Lab,
			Version:     manifestVersion,
			Description: "Dark Beauty Lab variant",
			Tokens: map[string]string{
				"bg":        "#020617",
				"bg-accent": "#3b0764",
				"surface":   "rgba(15, 23, 42, 0.5)",
				"text":      "#ffffff",
				"muted":     "#d1d5db",
				"accent":    "#a855f7",
				"accent-2":  "#ec4899",
				"border":    "rgba(168, 85, 247, 0.2)",
			},
			Assets: gotheme.Assets{
				Prefix: "/static/css",
				Files:  map[string]string{StylesheetAsset: "lab.css"},
			},
		},
		{
			Name:        Studio,
			Version:     manifestVersion,
			Description: "Light Beauty Studio variant",
			Tokens: map[string]string{
				"bg":        "#fef7f5",
				"bg-accent": "#fdeee9",
				"surface":   "#ffffff",
				"text":      "#1f2937",
				"muted":     "#4b5563",
				"accent":    "#f15823",
				"accent-2":  "#f58a65",
				"border":    "#fbd5c8",
			},
			Assets: gotheme.Assets{
				Prefix: "/static/css",
				Files:  map[string]string{StylesheetAsset: "studio.css"},
			},
		},
	}
}

// Registry resolves variants through a go-theme registry and selector.
type Registry struct {
	manifests *gotheme.MemoryRegistry
	selector  gotheme.Selector
	fallback  *Theme
}

// NewRegistry returns a registry with both built-in variants. An unknown
// defaultName falls back to Lab.
func NewRegistry(defaultName string) *Registry {
	manifests := gotheme.NewRegistry()
	for _, m := range Manifests() {
		if err := manifests.Register(m); err != nil {
			panic(fmt.Sprintf("theme: built-in manifest %s: %v", m.Name, err))
		}
	}

	r := &Registry{
		manifests: manifests,
		selector:  gotheme.Selector{Registry: manifests, DefaultTheme: Lab},
	}
	if name := normalize(defaultName); r.Has(name) {
		r.selector.DefaultTheme = name
	}

	fallback, err := r.selectTheme("")
	if err != nil {
		panic(fmt.Sprintf("theme: select default: %v", err))
	}
	r.fallback = fallback
	return r
}

func (r *Registry) selectTheme(name string) (*Theme, error) {
	sel, err := r.selector.Select(name, "")
	if err != nil {
		return nil, err
	}
	resolved := sel.Manifest.Name
	stylesheet, _ := sel.Asset(StylesheetAsset)
	id := identities[resolved]
	return &Theme{
		Name:       resolved,
		Brand:      id.Brand,
		Subtitle:   id.Subtitle,
		Dark:       id.Dark,
		Stylesheet: stylesheet,
		Tokens:     sel.Tokens(),
		CSSVars:    sel.CSSVariables("--"),
	}, nil
}

// Get returns the named variant. Unknown names select the default one.
func (r *Registry) Get(name string) *Theme {
	t, err := r.selectTheme(normalize(name))
	if err != nil {
		return r.fallback
	}
	return t
}

// Default returns the configured default variant.
func (r *Registry) Default() *Theme {
	return r.fallback
}

// Names lists the registered variants in a stable order.
func (r *Registry) Names() []string {
	var names []string
	for _, ref := range r.manifests.List() {
		names = append(names, ref.Name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered variant.
func (r *Registry) Has(name string) bool {
	name = normalize(name)
	if name == "" {
		return false
	}
	_, err := r.manifests.Get(name)
	return err == nil
}

// Resolve picks the variant for a request: query parameter, then cookie, then
// default. When the query parameter names a known variant it is remembered in
// a cookie on w.
func (r *Registry) Resolve(w http.ResponseWriter, req *http.Request, secure bool) *Theme {
	if q := req.URL.Query().Get(QueryParam); q != "" && r.Has(q) {
		t := r.Get(q)
		if w != nil {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    t.Name,
				Path:     "/",
				MaxAge:   int(cookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		return t
	}
	if c, err := req.Cookie(CookieName); err == nil && r.Has(c.Value) {
		return r.Get(c.Value)
	}
	return r.Default()
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
