package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries a key without the Bearer scheme.
const APIKeyHeader = "X-API-Key"

// publicPaths skip authentication so health checks and scrapers need no key.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyMiddleware accepts a key from "Authorization: Bearer <key>" or from
// X-API-Key. With no configured keys every request passes.
func APIKeyMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := credential(r)
			if msg != "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			if !matchesAny(keys, []byte(token)) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented key; msg is non-empty when the request
// carries none or uses an unsupported scheme.
func credential(r *http.Request) (token, msg string) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return "", "authorization header must use Bearer scheme"
		}
		return auth[len(prefix):], ""
	}
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, ""
	}
	return "", "missing api key"
}

// matchesAny compares in constant time against every configured key.
func matchesAny(keys [][]byte, token []byte) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, token)
	}
	return ok == 1
}
