package realtime

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
)

// Client talks to the hosted realtime database: a hierarchical
// path-addressed JSON store (paths like "serien/42" or
// "users/u1/serien"). No schema is enforced at this layer; payloads
// come back raw and callers validate shapes themselves.
type Client struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client
}

func New(baseURL, authToken string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		AuthToken: authToken,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Get reads the JSON value at a path. A missing node decodes as the
// JSON literal null, which callers treat as absent.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Set replaces the value at a path.
func (c *Client) Set(ctx context.Context, path string, payload json.RawMessage) error {
	_, err := c.do(ctx, http.MethodPut, path, payload)
	return err
}

// Update merges the payload into the value at a path.
func (c *Client) Update(ctx context.Context, path string, payload json.RawMessage) error {
	_, err := c.do(ctx, http.MethodPatch, path, payload)
	return err
}

// Delete removes the value at a path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Reachable probes the backend with a cheap shallow read. Used by the
// queue drain loop to detect the offline-to-online transition.
func (c *Client) Reachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	u, err := c.url(".info", url.Values{"shallow": {"true"}})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *Client) url(path string, q url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL + "/" + strings.Trim(path, "/") + ".json")
	if err != nil {
		return "", err
	}
	if q == nil {
		q = url.Values{}
	}
	if c.AuthToken != "" {
		q.Set("auth", c.AuthToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage) (json.RawMessage, error) {
	u, err := c.url(path, nil)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("realtime backend status %d on %s %s", resp.StatusCode, method, path)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
