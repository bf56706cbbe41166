package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TenantHeader = "X-BeTrace-Tenant"
const tenantIDKey = "tenant_id"

// TenantCtx retrieves the tenant ID from the context.
// An empty string means the request carried no tenant header.
func TenantCtx(ctx context.Context) string {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok {
		return ""
	}
	return id
}

// TenantMiddleware extracts the tenant ID header and stores it in the
// request context. Handlers decide whether a missing tenant is an error.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(TenantHeader)

		ctx := context.WithValue(r.Context(), tenantIDKey, tenant)
		if tenant != "" {
			l := log.Ctx(ctx)
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("tenant", tenant)
			})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
