package writeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AddRequest is the body the backend write service expects for an
// "add series/movie" call.
type AddRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
	Title  string `json:"title,omitempty"`
}

// Client forwards add requests to the separate backend write API. It
// only constructs and sends the body; retry and idempotency live on the
// far side.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: 15 * time.Second}}
}

// Add submits one add request. Any non-2xx response is an error; the
// caller decides whether to queue the write for later.
func (c *Client) Add(ctx context.Context, req AddRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/add", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("write api status %d", resp.StatusCode)
	}
	return nil
}
