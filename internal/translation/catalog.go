// Package translation resolves request locales and looks up namespaced,
// dotted-key strings with a default-locale fallback.
//
// Catalog data lives in <dir>/<locale>/<namespace>.(json|yaml|yml|toml).
// The default locale is the canonical key set; other locales may omit
// namespaces or keys, which then fall through to the default.
package translation

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sort"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/ibcol/portal/internal/common"
)

// Options selects the locales a Catalog serves.
type Options struct {
	DefaultLocale    string
	SupportedLocales []string
}

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	defaultLocale string
	supported     []string
	values        tree
	bundle        *i18n.Bundle
	localizers    map[string]*i18n.Localizer
	matcher       language.Matcher
}

// Load reads and validates the catalog rooted at fsys. A default locale
// without data, or one failing the manifest, is ErrConfiguration.
func Load(fsys fs.FS, opts Options) (*Catalog, error) {
	def, ok := lookupLocale(opts.DefaultLocale, opts.SupportedLocales)
	if !ok {
		return nil, fmt.Errorf("%w: default locale %q is not supported", common.ErrConfiguration, opts.DefaultLocale)
	}

	// Default first: it is the bundle's fallback language and the
	// matcher's answer when nothing else fits.
	supported := append([]string{def}, slices.DeleteFunc(slices.Clone(opts.SupportedLocales), func(l string) bool {
		return SameLocale(l, def)
	})...)

	tags := make([]language.Tag, len(supported))
	for i, l := range supported {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("%w: locale %q: %v", common.ErrConfiguration, l, err)
		}
		tags[i] = tag
	}

	values, err := readTree(fsys, supported)
	if err != nil {
		return nil, err
	}
	if len(values[def]) == 0 {
		return nil, fmt.Errorf("%w: no translation data for default locale %s", common.ErrConfiguration, def)
	}

	manifest, err := readManifest(fsys)
	if err != nil {
		return nil, err
	}
	if err := checkManifest(manifest, values[def]); err != nil {
		return nil, err
	}

	bundle := i18n.NewBundle(tags[0])
	for i, l := range supported {
		var msgs []*i18n.Message
		for ns, kv := range values[l] {
			for k, v := range kv {
				msgs = append(msgs, &i18n.Message{ID: messageID(ns, k), Other: v})
			}
		}
		if len(msgs) == 0 {
			continue
		}
		if err := bundle.AddMessages(tags[i], msgs...); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrConfiguration, l, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer, len(supported))
	for i, l := range supported {
		localizers[l] = i18n.NewLocalizer(bundle, tags[i].String())
	}

	return &Catalog{
		defaultLocale: def,
		supported:     supported,
		values:        values,
		bundle:        bundle,
		localizers:    localizers,
		matcher:       language.NewMatcher(tags),
	}, nil
}

// DefaultLocale returns the fallback locale.
func (c *Catalog) DefaultLocale() string { return c.defaultLocale }

// SupportedLocales returns the served locales, default first.
func (c *Catalog) SupportedLocales() []string { return slices.Clone(c.supported) }

// Namespaces lists the default locale's namespaces.
func (c *Catalog) Namespaces() []string {
	ns := slices.Collect(maps.Keys(c.values[c.defaultLocale]))
	sort.Strings(ns)
	return ns
}

// ResolveLocale maps requested onto the supported list, or the default.
func (c *Catalog) ResolveLocale(requested string) string {
	return ResolveLocale(requested, c.supported, c.defaultLocale)
}

// Translate returns the stored value of key in namespace for locale, falling
// back to the default locale and finally to key itself. Values are returned
// unchanged, markup and braces included.
func (c *Catalog) Translate(key, namespace, locale string) string {
	if v, ok := c.lookup(key, namespace, locale); ok {
		return v
	}
	return key
}

// TranslateWith is Translate with template data for values containing
// {{.Placeholders}}. A value that fails to render is returned as stored.
func (c *Catalog) TranslateWith(key, namespace, locale string, data map[string]any) string {
	if data == nil {
		return c.Translate(key, namespace, locale)
	}

	localizer := c.localizers[c.ResolveLocale(locale)]
	s, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID(namespace, key),
		TemplateData: data,
	})
	if err == nil {
		return s
	}

	// A miss in the requested language still yields the default's message.
	var nf *i18n.MessageNotFoundErr
	if errors.As(err, &nf) && s != "" {
		return s
	}
	return c.Translate(key, namespace, locale)
}

func (c *Catalog) lookup(key, namespace, locale string) (string, bool) {
	if v, ok := c.values[c.ResolveLocale(locale)][namespace][key]; ok {
		return v, true
	}
	v, ok := c.values[c.defaultLocale][namespace][key]
	return v, ok
}

// Namespace returns every key of namespace for locale, with the default
// locale filling the gaps. ok is false for a namespace the default locale
// does not define.
func (c *Catalog) Namespace(locale, namespace string) (map[string]string, bool) {
	base, ok := c.values[c.defaultLocale][namespace]
	if !ok {
		return nil, false
	}

	out := maps.Clone(base)
	if l := c.ResolveLocale(locale); l != c.defaultLocale {
		maps.Copy(out, c.values[l][namespace])
	}
	return out, true
}

func messageID(namespace, key string) string {
	return namespace + ":" + key
}
