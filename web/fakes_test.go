package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"authgate-prototype/core"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAPI answers proxy calls from a fixed token table.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	users   map[string]core.UserView // token -> user
	creds   map[string]string        // username -> password
	created []core.UserCreate
	err     error // returned from every call when set
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]core.UserView{
			"admin-token": {Username: "admin", Role: core.RoleAdmin},
			"alice-token": {Username: "alice", Role: "user"},
		},
		creds: map[string]string{"admin": "admin", "alice": "pw123"},
	}
}

// record must be called with mu held.
func (f *fakeAPI) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeAPI) forget(token string) {
	f.mu.Lock()
	delete(f.users, token)
	f.mu.Unlock()
}

func (f *fakeAPI) createdUsers() []core.UserCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.UserCreate(nil), f.created...)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// resolve must be called with mu held.
func (f *fakeAPI) resolve(token string, roles ...string) (core.UserView, error) {
	if f.err != nil {
		return core.UserView{}, f.err
	}
	u, ok := f.users[token]
	if !ok {
		return core.UserView{}, &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Could not validate credentials"}
	}
	if len(roles) > 0 && !core.RoleAllowed(u.Role, roles...) {
		return core.UserView{}, &APIError{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "Your role is " + u.Role + ", you must have one of the roles [" + strings.Join(roles, ", ") + "] to access this page",
		}
	}
	return u, nil
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (core.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("login")
	if f.err != nil {
		return core.TokenResponse{}, f.err
	}
	if pw, ok := f.creds[username]; !ok || pw != password {
		return core.TokenResponse{}, &APIError{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "Incorrect username or password"}
	}
	return core.TokenResponse{AccessToken: username + "-token", TokenType: "bearer"}, nil
}

func (f *fakeAPI) CreateUser(_ context.Context, _ string, req core.UserCreate) (core.UserView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_user")
	if f.err != nil {
		return core.UserView{}, f.err
	}
	if _, ok := f.creds[req.Username]; ok {
		return core.UserView{}, &APIError{Status: http.StatusBadRequest, Code: "USERNAME_TAKEN", Message: "Username already registered"}
	}
	f.creds[req.Username] = req.Password
	f.created = append(f.created, req)
	return core.UserView{Username: req.Username, Email: req.Email, FullName: req.FullName, Role: req.Role}, nil
}

func (f *fakeAPI) Me(_ context.Context, token string) (core.UserView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("me")
	return f.resolve(token)
}

func (f *fakeAPI) ListUsers(_ context.Context, token string) ([]core.UserView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("users_list")
	u, err := f.resolve(token, core.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return []core.UserView{u, f.users["alice-token"]}, nil
}

func (f *fakeAPI) AdminOnly(_ context.Context, token string) (core.UserView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("admin_only")
	return f.resolve(token, core.RoleAdmin)
}

func (f *fakeAPI) AdminAndAIOnly(_ context.Context, token string) (core.UserView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("admin_and_ai_only")
	return f.resolve(token, core.RoleAdmin, core.RoleAITeam)
}

type proxyClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newProxy(t *testing.T, api APIClient) *proxyClient {
	t.Helper()
	cfg := core.Defaults()
	router, err := NewRouter(cfg, api, NewSessionStore(cfg), zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &proxyClient{
		t:    t,
		base: srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *proxyClient) get(path string) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.http.Get(p.base + path)
	require.NoError(p.t, err)
	return resp, readBody(p.t, resp)
}

func (p *proxyClient) post(path string, form url.Values) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.http.PostForm(p.base+path, form)
	require.NoError(p.t, err)
	return resp, readBody(p.t, resp)
}

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrf loads the form at path and returns its hidden token.
func (p *proxyClient) csrf(path string) string {
	p.t.Helper()
	resp, body := p.get(path)
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
	m := csrfInput.FindStringSubmatch(body)
	require.Len(p.t, m, 2, "no csrf token in %s", path)
	return m[1]
}

func (p *proxyClient) login(username, password string) *http.Response {
	p.t.Helper()
	token := p.csrf("/login")
	resp, _ := p.post("/login", url.Values{"username": {username}, "password": {password}, csrfField: {token}})
	return resp
}

func (p *proxyClient) tokenCookie() string {
	p.t.Helper()
	u, err := url.Parse(p.base)
	require.NoError(p.t, err)
	for _, c := range p.http.Jar.Cookies(u) {
		if c.Name == tokenCookie {
			return c.Value
		}
	}
	return ""
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
