package theme

import (
	"net/http"
	"net/http/httptest"
	"testing"

	gotheme "github.com/goliatone/go-theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefault(t *testing.T) {
	assert.Equal(t, Lab, NewRegistry("").Default().Name)
	assert.Equal(t, Studio, NewRegistry(" STUDIO ").Default().Name)
	assert.Equal(t, Lab, NewRegistry("neon").Default().Name)
	assert.Equal(t, []string{Lab, Studio}, NewRegistry("").Names())
}

func TestThemesDiffer(t *testing.T) {
	r := NewRegistry("")
	lab, studio := r.Get(Lab), r.Get(Studio)
	assert.True(t, lab.Dark)
	assert.False(t, studio.Dark)
	assert.Equal(t, "Beauty Lab", lab.Brand)
	assert.Equal(t, "Beauty Studio", studio.Brand)
	assert.Equal(t, "#f15823", studio.Tokens["accent"])
	assert.Equal(t, "#f15823", studio.CSSVars["--accent"])
	assert.Equal(t, "#a855f7", lab.CSSVars["--accent"])
	assert.Equal(t, "/static/css/lab.css", lab.Stylesheet)
	assert.Equal(t, "/static/css/studio.css", studio.Stylesheet)
}

func TestManifestsValidate(t *testing.T) {
	reg := gotheme.NewRegistry()
	for _, m := range Manifests() {
		require.NoError(t, m.Validate(), m.Name)
		require.NoError(t, reg.Register(m))
	}

	refs := reg.List()
	require.Len(t, refs, 2)

	sel, err := gotheme.Selector{Registry: reg, DefaultTheme: Studio}.Select("missing", "")
	require.NoError(t, err)
	assert.Equal(t, Studio, sel.Manifest.Name)
	css, ok := sel.Asset(StylesheetAsset)
	require.True(t, ok)
	assert.Equal(t, "/static/css/studio.css", css)
}

func TestGetFallsBackToDefault(t *testing.T) {
	r := NewRegistry(Studio)
	got := r.Get("neon")
	assert.Equal(t, Studio, got.Name, "fallback reports the selected manifest, not the requested name")
	assert.Equal(t, "Beauty Studio", got.Brand)
	assert.Equal(t, Lab, r.Get(" LAB ").Name)
	assert.True(t, r.Has(Studio))
	assert.False(t, r.Has("neon"))
	assert.False(t, r.Has(""))
}

func TestResolveQueryParamSetsCookie(t *testing.T) {
	r := NewRegistry(Lab)
	req := httptest.NewRequest(http.MethodGet, "/?theme=studio", nil)
	rec := httptest.NewRecorder()

	got := r.Resolve(rec, req, true)
	assert.Equal(t, Studio, got.Name)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, Studio, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
}

func TestResolveCookieThenDefault(t *testing.T) {
	r := NewRegistry(Lab)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: Studio})
	assert.Equal(t, Studio, r.Resolve(httptest.NewRecorder(), req, false).Name)

	req = httptest.NewRequest(http.MethodGet, "/?theme=unknown", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "also-unknown"})
	rec := httptest.NewRecorder()
	assert.Equal(t, Lab, r.Resolve(rec, req, false).Name)
	assert.Empty(t, rec.Result().Cookies(), "unknown themes must not be persisted")
}
