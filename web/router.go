package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"authgate-prototype/core"
)

const tokenCookie = "token"

type handler struct {
	cfg    core.Config
	api    APIClient
	logger *zap.Logger
}

// NewRouter builds the edge proxy. It renders forms, forwards to the API and
// keeps the issued token in an HTTP-only cookie; it never inspects the token.
func NewRouter(cfg core.Config, api APIClient, store sessions.Store, logger *zap.Logger) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	h := &handler{cfg: cfg, api: api, logger: logger}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery(), core.RequestLogger(logger))
	r.Use(SessionMiddleware(cfg, store, logger), CSRFMiddleware(logger))

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/welcome") })
	r.GET("/login", h.loginForm)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	r.GET("/admin/create_user", h.createUserForm)
	r.POST("/admin/create_user", h.createUser)

	r.GET("/admin/users_list", h.protected(func(c *gin.Context, token string) error {
		users, err := h.api.ListUsers(c.Request.Context(), token)
		if err != nil {
			return err
		}
		c.HTML(http.StatusOK, "users_list.html", gin.H{"Title": "Users", "Users": users})
		return nil
	}))
	r.GET("/welcome", h.protected(func(c *gin.Context, token string) error {
		user, err := h.api.Me(c.Request.Context(), token)
		if err != nil {
			return err
		}
		c.HTML(http.StatusOK, "welcome.html", gin.H{"Title": "Welcome", "User": user})
		return nil
	}))
	r.GET("/admin_only", h.protected(h.userPage("Admin only", h.api.AdminOnly)))
	r.GET("/admin_ai_only", h.protected(h.userPage("Admin and AI team only", h.api.AdminAndAIOnly)))

	return r, nil
}

func (h *handler) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "Log in", "CSRFToken": csrfToken(c)})
}

func (h *handler) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	tok, err := h.api.Login(c.Request.Context(), username, password)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			c.HTML(http.StatusUnauthorized, "login.html", gin.H{
				"Title":     "Log in",
				"CSRFToken": csrfToken(c),
				"Error":     "Invalid credentials",
			})
			return
		}
		h.upstreamFailed(c, err)
		return
	}

	h.setTokenCookie(c, tok.AccessToken)
	c.Redirect(http.StatusSeeOther, "/welcome")
}

func (h *handler) logout(c *gin.Context) {
	h.clearTokenCookie(c)
	c.Redirect(http.StatusFound, "/login")
}

func (h *handler) createUserForm(c *gin.Context) {
	flashes := takeFlashes(c, h.logger)
	c.HTML(http.StatusOK, "create_user.html", gin.H{
		"Title":     "Create user",
		"CSRFToken": csrfToken(c),
		"Flashes":   flashes,
	})
}

func (h *handler) createUser(c *gin.Context) {
	req := core.UserCreate{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("full_name"),
		Password: c.PostForm("password"),
		Role:     c.PostForm("user_role"),
	}
	// The API decides whether creation needs a token; forward one when present.
	token, _ := c.Cookie(tokenCookie)

	user, err := h.api.CreateUser(c.Request.Context(), token, req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			c.HTML(http.StatusBadRequest, "create_user.html", gin.H{
				"Title":     "Create user",
				"CSRFToken": csrfToken(c),
				"Error":     apiErr.Message,
			})
			return
		}
		h.upstreamFailed(c, err)
		return
	}

	if err := addFlash(c, fmt.Sprintf("User %s created with role %s", user.Username, user.Role)); err != nil {
		h.logger.Warn("failed to store flash", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/admin/create_user")
}

// protected reads the token cookie and hands it to fetch. A missing cookie
// redirects to /login without calling the API.
func (h *handler) protected(fetch func(c *gin.Context, token string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(tokenCookie)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, "/login")
			return
		}
		if err := fetch(c, token); err != nil {
			h.upstreamFailed(c, err)
		}
	}
}

func (h *handler) userPage(title string, call func(ctx context.Context, token string) (core.UserView, error)) func(*gin.Context, string) error {
	return func(c *gin.Context, token string) error {
		user, err := call(c.Request.Context(), token)
		if err != nil {
			return err
		}
		pretty, err := json.MarshalIndent(user, "", "  ")
		if err != nil {
			return err
		}
		c.HTML(http.StatusOK, "user_json.html", gin.H{"Title": title, "User": user, "JSON": string(pretty)})
		return nil
	}
}

// upstreamFailed maps API failures onto views: 401 drops the cookie and
// returns to /login, 403 shows the denial, anything else surfaces the status.
func (h *handler) upstreamFailed(c *gin.Context, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("api call failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.HTML(http.StatusBadGateway, "error.html", gin.H{
			"Title":   "Error",
			"Status":  http.StatusBadGateway,
			"Message": "The API is unavailable.",
		})
		return
	}

	switch apiErr.Status {
	case http.StatusUnauthorized:
		h.clearTokenCookie(c)
		c.Redirect(http.StatusFound, "/login")
	case http.StatusForbidden:
		c.HTML(http.StatusForbidden, "unauthorized.html", gin.H{"Title": "Access denied", "Message": apiErr.Message})
	default:
		c.HTML(apiErr.Status, "error.html", gin.H{"Title": "Error", "Status": apiErr.Status, "Message": apiErr.Message})
	}
}

func (h *handler) setTokenCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSiteFromString(h.cfg.CookieSameSite),
	})
}

func (h *handler) clearTokenCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSiteFromString(h.cfg.CookieSameSite),
	})
}
