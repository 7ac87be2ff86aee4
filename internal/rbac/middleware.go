package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telecom-inbound/internal/auth"
)

// RequireAccount enforces that every request is scoped to one account. Admin
// tokens carry no account and select one with ?account_id=.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if acct, err := auth.AccountID(ctx); err == nil && acct != "" {
			c.Next()
			return
		}
		role, _ := auth.Role(ctx)
		if IsAdmin(role) {
			if acct := c.Query("account_id"); acct != "" {
				c.Request = c.Request.WithContext(auth.WithAccount(ctx, acct))
				c.Set("account_id", acct)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Admin passes every check.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
