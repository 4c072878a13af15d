package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleAllowed reports whether role is in allowed.
func RoleAllowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// RequireRoles must run after AuthGate. It rejects users whose role is not in allowed.
func RequireRoles(metrics *Metrics, allowed ...string) gin.HandlerFunc {
	required := strings.Join(allowed, ", ")
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respondUnauthorized(c)
			c.Abort()
			return
		}
		if !RoleAllowed(user.Role, allowed...) {
			metrics.Forbidden()
			respondError(c, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("Your role is %s, you must have one of the roles [%s] to access this page", user.Role, required))
			c.Abort()
			return
		}
		c.Next()
	}
}
