package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Notification struct {
	ID        int64                  `json:"id"`
	UserID    string                 `json:"userId,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

type SendRequest struct {
	UserID   string                 `json:"userId"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Connected is the first event of every stream.
type Connected struct {
	ClientID  string    `json:"clientId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat keeps idle streams open; Timestamp is the server's clock.
type Heartbeat struct {
	Timestamp time.Time `json:"timestamp"`
}

// SendResult holds either the stored notification or the reason it was skipped.
type SendResult struct {
	Notification *Notification
	Skipped      bool
	Reason       string
}

type ListOptions struct {
	UnreadOnly bool
	Type       string
	Limit      int
}

type Preferences struct {
	UserID      string          `json:"userId"`
	Preferences map[string]bool `json:"preferences"`
}

type ConnectionStats struct {
	TotalClients  int            `json:"totalClients"`
	TotalUsers    int            `json:"totalUsers"`
	ClientsByUser map[string]int `json:"clientsByUser"`
}

// APIError is returned for any response with status >= 400.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client talks to the notification service REST API and its event stream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/notifications", nil, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var skipped struct {
		Skipped bool   `json:"skipped"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(body, &skipped); err == nil && skipped.Skipped {
		return &SendResult{Skipped: true, Reason: skipped.Reason}, nil
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &SendResult{Notification: &n}, nil
}

func (c *Client) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	q := url.Values{"userId": {userID}}
	if opts.UnreadOnly {
		q.Set("unreadOnly", "true")
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var out []Notification
	return out, c.doJSON(ctx, http.MethodGet, "/api/notifications", q, nil, &out)
}

func (c *Client) MarkRead(ctx context.Context, id int64, read bool) (*Notification, error) {
	var n Notification
	body := map[string]interface{}{"id": id, "read": read}
	if err := c.doJSON(ctx, http.MethodPut, "/api/notifications", nil, body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var out struct {
		MarkedCount int `json:"markedCount"`
	}
	body := map[string]interface{}{"markAllAsRead": true, "userId": userID}
	return out.MarkedCount, c.doJSON(ctx, http.MethodPut, "/api/notifications", nil, body, &out)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	return c.doJSON(ctx, http.MethodDelete, "/api/notifications", q, nil, nil)
}

func (c *Client) DeleteAll(ctx context.Context, userID string) (int, error) {
	var out struct {
		DeletedCount int `json:"deletedCount"`
	}
	q := url.Values{"userId": {userID}, "deleteAll": {"true"}}
	return out.DeletedCount, c.doJSON(ctx, http.MethodDelete, "/api/notifications", q, nil, &out)
}

func (c *Client) UnreadCount(ctx context.Context, userID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	q := url.Values{"userId": {userID}}
	return out.Count, c.doJSON(ctx, http.MethodGet, "/api/notifications/unread-count", q, nil, &out)
}

func (c *Client) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	var out Preferences
	q := url.Values{"userId": {userID}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/notification-preferences", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SavePreferences(ctx context.Context, prefs Preferences) (*Preferences, error) {
	var out Preferences
	if err := c.doJSON(ctx, http.MethodPost, "/api/notification-preferences", nil, prefs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*ConnectionStats, error) {
	var out ConnectionStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/notifications/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscription is an open event stream. Close it to disconnect.
type Subscription struct {
	*EventReader
	body io.ReadCloser
}

func (s *Subscription) Close() error {
	return s.body.Close()
}

// Subscribe opens the event stream of userID. The stream lives until ctx is
// cancelled or Close is called; the client timeout does not apply to it.
func (c *Client) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/notifications/stream", url.Values{"userId": {userID}}, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	streaming := *c.httpClient
	streaming.Timeout = 0
	resp, err := streaming.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		_, err := readBody(resp)
		if err == nil {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, err
	}

	return &Subscription{EventReader: NewEventReader(resp.Body), body: resp.Body}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	resp, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in interface{}) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	return body, nil
}
