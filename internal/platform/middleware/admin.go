package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey protects operator endpoints (custody deposits, the audit
// trail) with a shared API key. The key is stored only as a bcrypt hash; a nil
// hash disables the admin surface entirely.
func RequireAdminKey(hashedKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hashedKey) == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" || bcrypt.CompareHashAndPassword(hashedKey, []byte(key)) != nil {
				logger.WarnContext(r.Context(), "admin endpoint rejected",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashAdminKey prepares the stored form of the admin API key at boot.
func HashAdminKey(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
}
