package middleware

import (
	"net/http"
	"strings"
)

// Security sets OWASP REST headers on API responses.
//
// Only paths under one of apiPrefixes get the strict set (no-store caching,
// same-origin resource policy); everything else, such as the static front-end,
// only receives the anti-sniffing and anti-framing headers.
func Security(apiPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if hasAnyPrefix(r.URL.Path, apiPrefixes) {
				h.Set("Cache-Control", "no-store")
				h.Set("Content-Security-Policy", "frame-ancestors 'none'")
				h.Set("Cross-Origin-Opener-Policy", "same-origin")
				h.Set(
					"Permissions-Policy",
					"accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
