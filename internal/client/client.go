// Package client talks to the tracking server's HTTP API.
package client

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
	"time"

	"gemmy/internal/auth"
	"gemmy/internal/budget"
	"gemmy/internal/models"
	"gemmy/internal/orders"
	"gemmy/internal/poller"
)

// APIError is a non-2xx reply.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Snapshot is one tracking read.
type Snapshot struct {
	orders.Detail
	Refresh budget.Status `json:"refresh"`
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Anonymous(ctx context.Context) (auth.Tokens, error) {
	var out auth.Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/anonymous", nil, &out); err != nil {
		return auth.Tokens{}, err
	}
	c.token = out.AccessToken
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Tokens, error) {
	var out auth.Tokens
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return auth.Tokens{}, err
	}
	c.token = out.AccessToken
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, name, email string) (orders.Created, error) {
	var out orders.Created
	body := map[string]string{"customerName": name, "customerEmail": email}
	err := c.do(ctx, http.MethodPost, "/api/orders", body, &out)
	return out, err
}

// Track reads the tracking view for token. A server side budget refusal is
// reported as poller.ErrLimitReached.
func (c *Client) Track(ctx context.Context, token string) (Snapshot, error) {
	var out Snapshot
	err := c.do(ctx, http.MethodGet, "/api/track/"+url.PathEscape(token), nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return out, fmt.Errorf("%w: %s", poller.ErrLimitReached, apiErr.Message)
	}
	return out, err
}

// MarkSeen records that the vendor looked at token.
func (c *Client) MarkSeen(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/track/"+url.PathEscape(token)+"/seen", nil, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, token, status string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	body := map[string]string{"status": status}
	err := c.do(ctx, http.MethodPut, "/api/track/"+url.PathEscape(token)+"/status", body, &out)
	return out.Status, err
}

func (c *Client) PostMessage(ctx context.Context, token, text string) (models.Message, error) {
	var out models.Message
	body := map[string]string{"text": text}
	err := c.do(ctx, http.MethodPost, "/api/track/"+url.PathEscape(token)+"/messages", body, &out)
	return out, err
}

// Export streams the archive into w and returns the server's filename.
func (c *Client) Export(ctx context.Context, w io.Writer) (string, error) {
	req, err := c.request(ctx, http.MethodGet, "/api/export", nil)
	if err != nil {
		return "", err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", decodeError(res)
	}

	if _, err := io.Copy(w, res.Body); err != nil {
		return "", err
	}
	_, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition"))
	if err != nil {
		return "", nil
	}
	return params["filename"], nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func decodeError(res *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	return &APIError{Status: res.StatusCode, Message: payload.Error}
}
