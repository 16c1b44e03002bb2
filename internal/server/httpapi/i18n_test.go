package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name     string
		target   string
		status   int
		language string
		body     string
	}{
		{name: "localized with fallback", target: "/i18n/zh-hk/home", status: http.StatusOK, language: "zh-hk", body: `{"pageTitle":"歡迎","hero.cta":"Join"}`},
		{name: "default locale", target: "/i18n/en-us/home", status: http.StatusOK, language: "en-us", body: `{"pageTitle":"Welcome","hero.cta":"Join"}`},
		{name: "unsupported locale", target: "/i18n/xx-zz/home", status: http.StatusOK, language: "en-us", body: `{"pageTitle":"Welcome","hero.cta":"Join"}`},
		{name: "unknown namespace", target: "/i18n/en-us/nope", status: http.StatusNotFound, body: `{"error":"unknown namespace"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			if tt.language != "" {
				assert.Equal(t, tt.language, rec.Header().Get("Content-Language"))
			}
		})
	}
}

func TestRedirectToLocale(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(http.MethodGet, "/", "", "Accept-Language", "zh-HK,zh;q=0.9")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/zh-hk/", rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, "/?lang=zh-hk", "", "Accept-Language", "en-US")
	assert.Equal(t, "/zh-hk/", rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, "/", "")
	assert.Equal(t, "/en-us/", rec.Header().Get("Location"))
}
