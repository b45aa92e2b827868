package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecurityHeadersMiddleware sets the standard browser hardening headers.
// Redirects to HTTPS are only enforced outside development.
func SecurityHeadersMiddleware(isDevelopment bool) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; img-src 'self'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         isDevelopment,
	})
	return secureMiddleware.Handler
}
