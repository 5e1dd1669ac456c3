package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptslots/libs/httpx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

// RequireRoles admits requests carrying a valid bearer token whose role is one of roles.
func RequireRoles(v *Verifier, roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Enabled() {
				httpx.WriteError(w, r, http.StatusServiceUnavailable, "auth_disabled", "admin authentication is not configured")
				return
			}
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "role not permitted")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
		})
	}
}
