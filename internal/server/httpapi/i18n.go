package httpapi

import (
	"net/http"
)

// Namespace handles GET /i18n/{locale}/{namespace}: the namespace's strings
// for the locale, default-locale values filling any gaps.
func (h *Handler) Namespace(w http.ResponseWriter, r *http.Request) {
	locale := h.catalog.ResolveLocale(r.PathValue("locale"))

	values, ok := h.catalog.Namespace(locale, r.PathValue("namespace"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown namespace")
		return
	}

	w.Header().Set("Content-Language", locale)
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, values)
}

// RedirectToLocale sends "/" to the localized home page.
func (h *Handler) RedirectToLocale(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Vary", "Accept-Language")
	http.Redirect(w, r, "/"+h.catalog.LocaleFromRequest(r)+"/", http.StatusFound)
}
