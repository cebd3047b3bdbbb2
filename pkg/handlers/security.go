// This file defines middleware used to attach common security headers to every
// HTTP response.
package handlers

import "net/http"

// SecurityHeaders wraps another http.Handler and sets several defensive HTTP
// headers before delegating to it. Album artwork is served by the Spotify CDN
// so images are the one resource type allowed from another origin. Over HTTPS
// Strict Transport Security is enabled as well.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' https://i.scdn.co https://*.spotifycdn.com")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
