package labfolder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
)

// ErrUnauthorized is returned when a call is rejected even after re-login.
var ErrUnauthorized = errors.New("labfolder: unauthorized")

// Client talks to the Labfolder v2 API. It owns the bearer token and
// transparently re-authenticates once when a call comes back with 401.
type Client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a Labfolder API client. baseURL points at the API root,
// e.g. https://eln.labfolder.com/api/v2.
func NewClient(baseURL, email, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

// Login authenticates and stores the bearer token for subsequent calls
func (c *Client) Login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"user":     c.email,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "labfolder2elabftw; "+c.email)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("login failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if strings.TrimSpace(result.Token) == "" {
		return errors.New("login succeeded but no token returned")
	}

	c.setToken(strings.TrimSpace(result.Token))
	return nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// get performs an authenticated GET, re-authenticating exactly once on 401.
// The caller must close the response body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	resp, err := c.do(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		logger.Info("401 on GET, re-authenticating", map[string]interface{}{
			"endpoint": endpoint,
		})
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("%w: re-login failed: %v", ErrUnauthorized, err)
		}
		resp, err = c.do(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: GET %s", ErrUnauthorized, endpoint)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s failed (%d): %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

// getJSON performs an authenticated GET and decodes the JSON response into v
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	resp, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// getBlob downloads a binary element payload. The filename comes from the
// Content-Disposition header when present, otherwise fallback is used.
func (c *Client) getBlob(ctx context.Context, endpoint string, fallback string) (data []byte, filename, mimeType string, err error) {
	resp, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, "", "", err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read %s body: %w", endpoint, err)
	}

	filename = fallback
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				filename = name
			}
		}
	}

	mimeType = resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return data, filename, mimeType, nil
}
