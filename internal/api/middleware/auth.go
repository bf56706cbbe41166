package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
)

const adminRole = "admin"

// AuthAuditFunc observes every admin access decision. Nil disables
// the audit trail.
type AuthAuditFunc func(r *http.Request, allowed bool, detail string)

// AdminAuth is a middleware that checks for admin privileges in the JWT token.
// TODO(future): replace the flat role check with a proper RBAC system.
func AdminAuth(signingKey []byte, audit AuthAuditFunc) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func(detail string) {
				if audit != nil {
					audit(r, false, detail)
				}
				presenter.Error(w, r, detail, http.StatusUnauthorized)
			}

			auth := r.Header.Get("Authorization")
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			if tokenStr == "" {
				deny("login required")
				return
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				deny("invalid session token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				deny("invalid claims")
				return
			}

			roles, ok := claims["roles"].([]any)
			if !ok {
				deny("invalid claims")
				return
			}

			hasPrivilege := false
			for _, roleAny := range roles {
				roleStr, ok := roleAny.(string)
				if !ok {
					continue
				}
				if roleStr == adminRole {
					hasPrivilege = true
					break
				}
			}
			if !hasPrivilege {
				deny("insufficient privileges")
				return
			}

			if audit != nil {
				audit(r, true, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}
