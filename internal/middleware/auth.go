package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vanba/spiritchat/backend/internal/service/auth"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// RequireAuth validates the bearer token and stores the claims in the
// request context.
func RequireAuth(provider *auth.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFromRequest(provider, r)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// ClaimsFrom returns the authenticated claims placed by RequireAuth.
func ClaimsFrom(ctx context.Context) (auth.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.AccessClaims)
	return claims, ok
}

func claimsFromRequest(provider *auth.Provider, r *http.Request) (auth.AccessClaims, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, found := strings.CutPrefix(raw, "Bearer "); found {
		raw = after
	} else if token := r.URL.Query().Get("token"); token != "" {
		// Browser EventSource and websocket clients cannot set headers.
		raw = token
	}
	return provider.ParseAccessToken(raw)
}
