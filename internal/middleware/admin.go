package middleware

import (
	"net/http"

	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/store"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// AdminRequired gates a route to admins. A caller passes when any of
// these hold: the X-Admin-Token header matches the configured token, the
// claims email or user id is on a configured admin list, or the stored
// profile carries the admin role. Runs after RequireAuth except for the
// token path.
func AdminRequired(profiles store.ProfileStore, cfg config.AuthConfig) func(http.Handler) http.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminToken != "" && r.Header.Get("X-Admin-Token") == cfg.AdminToken {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if contains(adminEmails, claims.Email) || contains(adminUserIDs, claims.UserID.String()) {
				next.ServeHTTP(w, r)
				return
			}

			if claims.Role == "admin" {
				next.ServeHTTP(w, r)
				return
			}
			if prof, err := profiles.Get(r.Context(), claims.UserID); err == nil && prof.Role == "admin" {
				next.ServeHTTP(w, r)
				return
			}

			utils.RespondError(w, http.StatusForbidden, "Admin access required")
		})
	}
}
