package auth

import "github.com/gin-gonic/gin"

// PrincipalKey is the gin context key the auth middleware stores the
// verified principal under.
const PrincipalKey = "auth.principal"

// FromGin retrieves the authenticated principal set by the middleware.
func FromGin(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(PrincipalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
