package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
)

// RequireAuth verifies the bearer token and attaches the principal.
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			sharederrors.Respond(c, sharederrors.ErrUnauthorized.WithDetail("missing bearer token"))
			c.Abort()
			return
		}
		principal, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			sharederrors.Respond(c, sharederrors.ErrUnauthorized.WithDetail("invalid or expired token"))
			c.Abort()
			return
		}
		c.Set(auth.PrincipalKey, principal)
		c.Next()
	}
}

// RequireRole gates a route group on role membership. Must run after
// RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.FromGin(c)
		if !ok || !principal.HasRole(role) {
			sharederrors.Respond(c, sharederrors.ErrForbidden.WithDetail("insufficient privileges"))
			c.Abort()
			return
		}
		c.Next()
	}
}
