package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// maxRetries is the number of additional attempts after the first, so
	// a retryable failure is tried 3 times in total.
	maxRetries = 2

	defaultBaseDelay = 500 * time.Millisecond
)

// MetricsRecorder receives client-side request telemetry. A nil recorder
// disables recording.
type MetricsRecorder interface {
	ObserveRequest(operation, outcome string, duration time.Duration)
	CountRetry(operation string)
}

// Client calls the backend chat and recovery endpoints for one store.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	storeID    string
	httpClient *http.Client
	baseDelay  time.Duration
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryBaseDelay sets the unit of the linear backoff; retry n waits
// n * delay before resending.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMetrics attaches a telemetry recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the given backend base URL and store id.
func NewClient(baseURL, storeID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		storeID:    storeID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseDelay:  defaultBaseDelay,
		logger:     slog.Default().With("component", "api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts a visitor message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	var out SendMessageResponse
	if err := c.do(ctx, "send_message", http.MethodPost, "/chat/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a full conversation by id.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var out Conversation
	path := "/chat/conversations/" + url.PathEscape(conversationID)
	if err := c.do(ctx, "get_conversation", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversationsBySession lists the conversations of a session.
func (c *Client) GetConversationsBySession(ctx context.Context, sessionID string) ([]Conversation, error) {
	var out []Conversation
	query := url.Values{"session_id": {sessionID}}
	if err := c.do(ctx, "get_conversations", http.MethodGet, "/chat/conversations", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckRecovery asks whether the session has an abandoned-cart offer.
func (c *Client) CheckRecovery(ctx context.Context, sessionID string) (*RecoveryOffer, error) {
	var out RecoveryOffer
	query := url.Values{"session_id": {sessionID}}
	if err := c.do(ctx, "check_recovery", http.MethodGet, "/recovery/check", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one logical request with the retry policy: up to maxRetries
// additional attempts on retryable failures, waiting attempt*baseDelay
// between attempts. The returned error is always *Error (or nil).
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	if c.storeID == "" {
		return notConfiguredError()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			c.logger.Error("request marshal failed", "operation", operation, "error", err)
			return invalidResponseError("")
		}
	}

	start := time.Now()
	var lastErr *Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.baseDelay); err != nil {
				break
			}
			// Counted after the backoff so a cancellation mid-wait does
			// not report a retry that was never sent.
			if c.metrics != nil {
				c.metrics.CountRetry(operation)
			}
		}

		apiErr := c.attempt(ctx, method, path, query, payload, out)
		if apiErr == nil {
			c.record(operation, "success", start)
			return nil
		}

		c.logger.Warn("request failed",
			"operation", operation,
			"attempt", attempt+1,
			"type", apiErr.Type,
			"retryable", apiErr.Retryable)

		lastErr = apiErr
		if !apiErr.Retryable {
			break
		}
	}

	c.record(operation, string(lastErr.Type), start)
	return lastErr
}

// attempt performs a single HTTP round trip and decodes the response.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out any) *Error {
	q := url.Values{"store_id": {c.storeID}}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), reqBody)
	if err != nil {
		return invalidResponseError("")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return invalidResponseError("")
		}
	}
	return nil
}

func (c *Client) record(operation, outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(operation, outcome, time.Since(start))
	}
}

// sleepCtx waits d without ignoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
