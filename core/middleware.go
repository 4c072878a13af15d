package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserKey = "current_user"

// AuthGate resolves the bearer token to a User and stores it in the context.
// It is the only place authentication failures are decided; every failure
// short-circuits with the same 401.
func AuthGate(auth AuthService, metrics *Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.Unauthenticated()
			respondUnauthorized(c)
			c.Abort()
			return
		}

		user, err := auth.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				metrics.Unauthenticated()
				respondUnauthorized(c)
				c.Abort()
				return
			}
			logger.Error("failed to resolve token", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to resolve user")
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthGate.
func CurrentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials")
}
