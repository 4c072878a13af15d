package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authgate-prototype/core"
)

// APIClient is what the edge proxy needs from the API service.
type APIClient interface {
	Login(ctx context.Context, username, password string) (core.TokenResponse, error)
	CreateUser(ctx context.Context, token string, req core.UserCreate) (core.UserView, error)
	Me(ctx context.Context, token string) (core.UserView, error)
	ListUsers(ctx context.Context, token string) ([]core.UserView, error)
	AdminOnly(ctx context.Context, token string) (core.UserView, error)
	AdminAndAIOnly(ctx context.Context, token string) (core.UserView, error)
}

// APIError is a non-200 answer from the API, carrying its status and message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api responded %d %s: %s", e.Status, e.Code, e.Message)
}

// HTTPAPIClient calls the API service over HTTP.
type HTTPAPIClient struct {
	client *http.Client
	base   string
}

func NewHTTPAPIClient(baseURL string) *HTTPAPIClient {
	return &HTTPAPIClient{
		client: &http.Client{Timeout: 10 * time.Second},
		base:   strings.TrimRight(baseURL, "/"),
	}
}

func (c *HTTPAPIClient) Login(ctx context.Context, username, password string) (core.TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var out core.TokenResponse
	err := c.do(ctx, http.MethodPost, "/token", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out)
	return out, err
}

func (c *HTTPAPIClient) CreateUser(ctx context.Context, token string, req core.UserCreate) (core.UserView, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return core.UserView{}, err
	}
	var out core.UserView
	err = c.do(ctx, http.MethodPost, "/create_user/", token, bytes.NewReader(body), "application/json", &out)
	return out, err
}

func (c *HTTPAPIClient) Me(ctx context.Context, token string) (core.UserView, error) {
	var out core.UserView
	err := c.do(ctx, http.MethodGet, "/users/me/", token, nil, "", &out)
	return out, err
}

func (c *HTTPAPIClient) ListUsers(ctx context.Context, token string) ([]core.UserView, error) {
	var out []core.UserView
	err := c.do(ctx, http.MethodGet, "/users_list/", token, nil, "", &out)
	return out, err
}

func (c *HTTPAPIClient) AdminOnly(ctx context.Context, token string) (core.UserView, error) {
	var out core.UserView
	err := c.do(ctx, http.MethodGet, "/admin_only", token, nil, "", &out)
	return out, err
}

func (c *HTTPAPIClient) AdminAndAIOnly(ctx context.Context, token string) (core.UserView, error) {
	var out core.UserView
	err := c.do(ctx, http.MethodGet, "/admin_and_ai_only", token, nil, "", &out)
	return out, err
}

func (c *HTTPAPIClient) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb core.ErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}
