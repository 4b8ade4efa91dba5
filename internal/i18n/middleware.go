package i18n

import "net/http"

// LangCookie selects the interface language when present.
const LangCookie = "lang"

// Middleware injects a localizer into every request context. The lang
// cookie wins over Accept-Language; the language passed to Init is the
// fallback.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if c, err := r.Cookie(LangCookie); err == nil && c.Value != "" {
			prefs = append(prefs, c.Value)
		}
		if al := r.Header.Get("Accept-Language"); al != "" {
			prefs = append(prefs, al)
		}
		ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
