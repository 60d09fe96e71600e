package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
)

// authMiddleware guards data routes with a static Bearer token carried in
// the Authorization header. An empty key disables the check entirely; that
// is the development default, and the server logs a single startup warning
// for it rather than one per request.
//
// Failed attempts get 401 with a WWW-Authenticate challenge. The presented
// token value is never written to the log, only the fact of rejection.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			logging.FromContext(r.Context()).Warn("auth: request without credentials",
				slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="glih"`)
			http.Error(w, "authorization required", http.StatusUnauthorized)
		case token != apiKey:
			logging.FromContext(r.Context()).Warn("auth: token rejected",
				slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="glih" error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// bearerToken pulls the credential out of "Authorization: Bearer <token>".
// A missing header, a different scheme, or an empty credential all yield
// the empty string.
func bearerToken(r *http.Request) string {
	scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}
