// Package client HTTP клиент API авторизации linaform.
// Клиент хранит access token и refresh token текущей сессии,
// refresh token передается серверу в cookie, как это делает браузер.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/iudanet/linaform/pkg/api"
)

// refreshCookieName имя cookie с refresh token
const refreshCookieName = "refreshToken"

// ErrNoSession возвращается, если операция требует входа
var ErrNoSession = errors.New("no active session")

// APIError ответ сервера с кодом ошибки
type APIError struct {
	Message    string
	StatusCode int
	// RetryAfter секунды до снятия ограничения частоты, только для 429
	RetryAfter int64
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient   *http.Client
	baseURL      string
	accessToken  string
	refreshToken string
	mu           sync.Mutex
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient подменяет http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessToken текущий access token
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию и запоминает токены сессии
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	httpResp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = refreshFromResponse(httpResp)
	c.mu.Unlock()

	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context) (*api.RefreshResponse, error) {
	var resp api.RefreshResponse
	httpResp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = refreshFromResponse(httpResp)
	c.mu.Unlock()

	return &resp, nil
}

// Logout завершает сессию на сервере и забывает токены
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()

	return nil
}

// Me возвращает профиль текущего пользователя
func (c *Client) Me(ctx context.Context) (*api.MeResponse, error) {
	if c.AccessToken() == "" {
		return nil, ErrNoSession
	}

	var resp api.MeResponse
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

func refreshFromResponse(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie.Value
		}
	}
	return ""
}

// doRequest выполняет HTTP запрос с токенами текущей сессии
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: c.refreshToken})
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.RetryAfter = errResp.RetryAfter
		}
		return nil, apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp, nil
}
