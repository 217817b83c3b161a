package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-chat/internal/observe"
)

const (
	agentPath   = "/agent"
	contactPath = "/contact"

	apiKeyHeader = "X-API-Key"

	maxErrorBodyBytes = 4096
	maxResponseBytes  = 1 << 20

	EventRequest  observe.EventType = "agentapi.request"
	EventResponse observe.EventType = "agentapi.response"
	EventError    observe.EventType = "agentapi.error"
)

// ErrResponseTooLarge reports a 2xx body larger than the client accepts.
var ErrResponseTooLarge = errors.New("agentapi: response body too large")

// askRequest is the request shape for the agent endpoint.
type askRequest struct {
	Message string `json:"message"`
}

// AgentReply is the decoded agent response. Response is nil when the backend
// omitted the field.
type AgentReply struct {
	Response *string `json:"response"`
}

// HTTPStatusError captures non-2xx responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("agentapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the portfolio backend. Configuration is fixed at
// construction.
type Client struct {
	baseURL      string
	apiKey       string
	subjectField string
	httpClient   *http.Client
	observer     observe.Observer
}

type Option func(*Client)

func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(apiKey)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithObserver(obs observe.Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// WithContactSubjectField sets the JSON key used for the contact subject.
// Older backends expect "title".
func WithContactSubjectField(name string) Option {
	return func(c *Client) {
		if name = strings.TrimSpace(name); name != "" {
			c.subjectField = name
		}
	}
}

// NewClient creates a Client rooted at baseURL. An empty baseURL is allowed and
// produces relative request paths.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:      strings.TrimSpace(baseURL),
		subjectField: "subject",
		httpClient:   &http.Client{},
		observer:     observe.NoOp{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.subjectField != "subject" && c.subjectField != "title" {
		return nil, fmt.Errorf("agentapi: unsupported contact subject field %q", c.subjectField)
	}
	return c, nil
}

func endpointURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// resolvedHTTPClient returns the configured HTTP client, or a default without
// a timeout if none was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{}
}

// Ask sends one message to the agent and returns the decoded reply.
func (c *Client) Ask(ctx context.Context, text string) (AgentReply, error) {
	raw, err := c.postJSON(ctx, agentPath, askRequest{Message: text})
	if err != nil {
		return AgentReply{}, err
	}
	var reply AgentReply
	if len(bytes.TrimSpace(raw)) == 0 {
		return reply, nil
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return AgentReply{}, fmt.Errorf("agentapi: decode agent response: %w", err)
	}
	return reply, nil
}

// SendContactMessage forwards a contact form submission. The response body is
// returned undecoded.
func (c *Client) SendContactMessage(ctx context.Context, subject, message, email string) (json.RawMessage, error) {
	payload := map[string]string{
		c.subjectField: subject,
		"message":      message,
		"email":        email,
	}
	raw, err := c.postJSON(ctx, contactPath, payload)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("agentapi: marshal request: %w", err)
	}

	url := endpointURL(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.emit(ctx, observe.Event{Type: EventError, Level: observe.LevelError, Data: map[string]any{
			"method": http.MethodPost, "url": url, "err": err.Error(),
		}})
		// %v: a bad base URL is a configuration error, not a transport failure.
		return nil, fmt.Errorf("agentapi: create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	c.emit(ctx, observe.Event{Type: EventRequest, Level: observe.LevelInfo, Data: map[string]any{
		"method": http.MethodPost, "url": url,
	}})

	start := time.Now()
	raw, status, err := c.doJSONRequest(req, url)
	elapsed := time.Since(start)
	if err != nil {
		data := map[string]any{"method": http.MethodPost, "url": url, "duration_ms": elapsed.Milliseconds()}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			data["status"] = statusErr.StatusCode
			data["body"] = statusErr.Body
		} else {
			data["err"] = err.Error()
		}
		c.emit(ctx, observe.Event{Type: EventError, Level: observe.LevelError, Data: data})
		if statusErr != nil {
			return nil, err
		}
		return nil, fmt.Errorf("agentapi: request failed: %w", err)
	}

	c.emit(ctx, observe.Event{Type: EventResponse, Level: observe.LevelInfo, Data: map[string]any{
		"method": http.MethodPost, "url": url, "status": status, "duration_ms": elapsed.Milliseconds(),
	}})
	return raw, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, int, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, 0, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
		return nil, res.StatusCode, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	if len(buf) > maxResponseBytes {
		return nil, res.StatusCode, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}
	return buf, res.StatusCode, nil
}

func (c *Client) emit(ctx context.Context, event observe.Event) {
	observe.Emit(ctx, c.observer, event)
}
