package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps bundles what NewRouter needs besides Config.
type RouterDeps struct {
	Auth    AuthService
	DB      Pinger // optional; /healthz skips the check when nil
	Metrics *Metrics
	Logger  *zap.Logger
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	authService := deps.Auth

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	gate := AuthGate(authService, metrics, logger)

	r.POST("/token", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")
		if strings.TrimSpace(username) == "" || password == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password form fields are required")
			return
		}

		token, err := authService.Login(c.Request.Context(), username, password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				metrics.LoginFailed()
				c.Header("WWW-Authenticate", "Bearer")
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username or password")
				return
			}
			logger.Error("login failed", zap.String("username", username), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to login")
			return
		}
		metrics.LoginSucceeded()
		c.JSON(http.StatusOK, token)
	})

	createHandlers := []gin.HandlerFunc{}
	if cfg.RequireAdminForCreate {
		createHandlers = append(createHandlers, gate, RequireRoles(metrics, RoleAdmin))
	}
	createHandlers = append(createHandlers, func(c *gin.Context) {
		var req UserCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json: username, password and user_role are required")
			return
		}
		user, err := authService.CreateUser(c.Request.Context(), req)
		if err != nil {
			respondCreateError(c, logger, err)
			return
		}
		metrics.UserCreated()
		c.JSON(http.StatusOK, user.View())
	})
	r.POST("/create_user/", createHandlers...)

	authed := r.Group("/", gate)
	{
		authed.GET("/users/me/", func(c *gin.Context) {
			user, _ := CurrentUser(c)
			c.JSON(http.StatusOK, user.View())
		})

		authed.GET("/users_list/", RequireRoles(metrics, RoleAdmin), func(c *gin.Context) {
			users, err := authService.ListUsers(c.Request.Context())
			if err != nil {
				logger.Error("failed to list users", zap.Error(err))
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			views := make([]UserView, 0, len(users))
			for _, u := range users {
				views = append(views, u.View())
			}
			c.JSON(http.StatusOK, views)
		})

		authed.GET("/admin_only", RequireRoles(metrics, RoleAdmin), currentUserView)
		authed.GET("/admin_and_ai_only", RequireRoles(metrics, RoleAdmin, RoleAITeam), currentUserView)
	}

	return r
}

func currentUserView(c *gin.Context) {
	user, _ := CurrentUser(c)
	c.JSON(http.StatusOK, user.View())
}
