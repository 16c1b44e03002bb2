package translation

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

const ctxKeyLocale = contextKey("locale")

// ToContext stores the resolved request locale.
func ToContext(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKeyLocale, locale)
}

// FromContext returns the locale stored by ToContext, or "".
func FromContext(ctx context.Context) string {
	l, _ := ctx.Value(ctxKeyLocale).(string)
	return l
}

// ResolveLocale returns the entry of supported equal to requested, compared
// case-insensitively with "_" and "-" treated alike, or def when there is
// none.
func ResolveLocale(requested string, supported []string, def string) string {
	if l, ok := lookupLocale(requested, supported); ok {
		return l
	}
	return def
}

// LocaleFromRequest picks the locale for r. An explicit supported locale in
// the first path segment wins, then the lang query parameter, then the
// best Accept-Language match, then the catalog default.
func (c *Catalog) LocaleFromRequest(r *http.Request) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if l, ok := lookupLocale(seg, c.supported); ok {
		return l
	}
	if l, ok := lookupLocale(r.URL.Query().Get("lang"), c.supported); ok {
		return l
	}
	if h := r.Header.Get("Accept-Language"); h != "" {
		if _, i, conf := c.matcher.Match(parseAcceptLanguage(h)...); conf != language.No {
			return c.supported[i]
		}
	}
	return c.defaultLocale
}

func parseAcceptLanguage(h string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(h)
	if err != nil {
		return nil
	}
	return tags
}

func lookupLocale(requested string, supported []string) (string, bool) {
	if requested == "" {
		return "", false
	}
	for _, l := range supported {
		if SameLocale(l, requested) {
			return l, true
		}
	}
	return "", false
}

// SameLocale reports whether a and b name the same locale, ignoring case
// and treating "_" as "-".
func SameLocale(a, b string) bool {
	return strings.EqualFold(strings.ReplaceAll(a, "_", "-"), strings.ReplaceAll(b, "_", "-"))
}
