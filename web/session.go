package web

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"authgate-prototype/core"
)

const (
	sessionName   = "authgate_web"
	sessionMaxAge = 8 * 3600
	sessionKey    = "session"
	csrfField     = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

// NewSessionStore returns the cookie store holding CSRF tokens and flash messages.
func NewSessionStore(cfg core.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.Options = sessionOptions(cfg)
	return store
}

// SessionMiddleware loads the proxy session and applies consistent cookie options.
// An undecodable cookie (e.g. after a key change) is replaced by a fresh session.
func SessionMiddleware(cfg core.Config, store sessions.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			logger.Debug("discarding unreadable session cookie", zap.Error(err))
			session, err = store.New(c.Request, sessionName)
			if session == nil {
				logger.Error("session error", zap.Error(err))
				c.String(http.StatusInternalServerError, "session error")
				c.Abort()
				return
			}
		}
		session.Options = sessionOptions(cfg)
		c.Set(sessionKey, session)
		c.Next()
	}
}

// CSRFMiddleware issues a per-session token and requires it on unsafe methods,
// either as the csrf_token form field or the X-CSRF-Token header.
func CSRFMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		token, _ := session.Values[csrfField].(string)
		if token == "" {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				logger.Error("failed to issue csrf token", zap.Error(err))
				c.String(http.StatusInternalServerError, "failed to issue csrf token")
				c.Abort()
				return
			}
			session.Values[csrfField] = token
			if err := session.Save(c.Request, c.Writer); err != nil {
				logger.Error("failed to persist session", zap.Error(err))
				c.String(http.StatusInternalServerError, "failed to persist session")
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) {
			sent := c.GetHeader(csrfHeader)
			if sent == "" {
				sent = c.PostForm(csrfField)
			}
			if sent == "" || sent != token {
				c.HTML(http.StatusForbidden, "error.html", gin.H{
					"Title":   "Forbidden",
					"Status":  http.StatusForbidden,
					"Message": "invalid csrf token",
				})
				c.Abort()
				return
			}
		}

		c.Set(csrfField, token)
		c.Next()
	}
}

func currentSession(c *gin.Context) *sessions.Session {
	v, _ := c.Get(sessionKey)
	s, _ := v.(*sessions.Session)
	return s
}

func csrfToken(c *gin.Context) string {
	return c.GetString(csrfField)
}

// addFlash queues a one-shot message and persists the session.
func addFlash(c *gin.Context, msg string) error {
	s := currentSession(c)
	s.AddFlash(msg)
	return s.Save(c.Request, c.Writer)
}

// takeFlashes consumes pending flash messages.
func takeFlashes(c *gin.Context, logger *zap.Logger) []string {
	s := currentSession(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(c.Request, c.Writer); err != nil {
		logger.Warn("failed to consume flashes", zap.Error(err))
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// URL-safe alphabet keeps the token byte-identical inside HTML attributes.
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func sessionOptions(cfg core.Config) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: sameSiteFromString(cfg.CookieSameSite),
	}
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
