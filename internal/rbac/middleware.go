package rbac

import (
	"encoding/json"
	"net/http"

	"github.com/ruletree/ruletree/internal/auth"
)

// Require returns middleware enforcing the permission against the
// authenticated caller's roles. Must run inside auth.Middleware. A nil
// policy disables enforcement.
func Require(p *Policy, perm Permission) func(http.Handler) http.Handler {
	if p == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.Allows(user.Roles, perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
