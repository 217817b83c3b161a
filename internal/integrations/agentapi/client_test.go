package agentapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-chat/internal/observe"
)

// recordingObserver collects emitted events.
type recordingObserver struct {
	mu     sync.Mutex
	events []observe.Event
}

func (r *recordingObserver) OnEvent(_ context.Context, e observe.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) types() []observe.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observe.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, observe.Event) { panic("log sink down") }

// ---------------------------------------------------------------------------
// endpointURL helper
// ---------------------------------------------------------------------------

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.example.com", "https://api.example.com/agent"},
		{"https://api.example.com/", "https://api.example.com/agent"},
		{"https://api.example.com/prod", "https://api.example.com/prod/agent"},
		{"", "/agent"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, endpointURL(tc.base, agentPath), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("  https://api.example.com ")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com", c.baseURL)
	require.Equal(t, "subject", c.subjectField)
	require.NotNil(t, c.httpClient)
	require.Zero(t, c.httpClient.Timeout)
}

func TestNewClient_EmptyBaseURLAllowed(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	require.Equal(t, "", c.baseURL)
}

func TestNewClient_RejectsUnknownSubjectField(t *testing.T) {
	_, err := NewClient("http://x", WithContactSubjectField("heading"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "heading")
}

// ---------------------------------------------------------------------------
// Client.Ask
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(&http.Client{Timeout: 2 * time.Second})}, opts...)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Ask_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agent", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "key-123", r.Header.Get("X-API-Key"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"message":"What do you do?"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hello"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithAPIKey("key-123"))
	reply, err := c.Ask(context.Background(), "What do you do?")
	require.NoError(t, err)
	require.NotNil(t, reply.Response)
	require.Equal(t, "hello", *reply.Response)
}

func TestClient_Ask_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["X-Api-Key"]
		require.False(t, present)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
}

func TestClient_Ask_MissingResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"wrong key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Nil(t, reply.Response)
}

func TestClient_Ask_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Nil(t, reply.Response)
}

func TestClient_Ask_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode agent response")
}

func TestClient_Ask_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"RATE_LIMITED"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.Contains(t, statusErr.Body, "RATE_LIMITED")
}

func TestClient_Ask_500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 500")
}

func TestClient_Ask_NetworkError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")

	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestClient_Ask_MalformedBaseURLIsNotTransportError(t *testing.T) {
	c, err := NewClient("http://[::1")
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "create request")

	var urlErr *url.Error
	require.False(t, errors.As(err, &urlErr))
}

func TestClient_Ask_OversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"` + strings.Repeat("x", maxResponseBytes) + `"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Ask(context.Background(), "hi")
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestClient_Ask_BodyAtLimitAccepted(t *testing.T) {
	payload := `{"response":"` + strings.Repeat("x", maxResponseBytes-len(`{"response":""}`)) + `"}`
	require.Len(t, payload, maxResponseBytes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, *reply.Response, maxResponseBytes-len(`{"response":""}`))
}

func TestClient_Ask_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"late"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Client.SendContactMessage
// ---------------------------------------------------------------------------

func TestClient_SendContactMessage_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/contact", r.URL.Path)
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, map[string]string{
			"subject": "Hiring",
			"message": "Let's talk",
			"email":   "a@b.co",
		}, got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.SendContactMessage(context.Background(), "Hiring", "Let's talk", "a@b.co")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(out))
}

func TestClient_SendContactMessage_TitleField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, "Hiring", got["title"])
		_, hasSubject := got["subject"]
		require.False(t, hasSubject)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithContactSubjectField("title"))
	out, err := c.SendContactMessage(context.Background(), "Hiring", "Let's talk", "a@b.co")
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestClient_SendContactMessage_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad email"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.SendContactMessage(context.Background(), "s", "m", "e")
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

// ---------------------------------------------------------------------------
// observability
// ---------------------------------------------------------------------------

func TestClient_EmitsRequestAndResponseEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	rec := &recordingObserver{}
	c := newTestClient(t, srv, WithObserver(rec))
	_, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, []observe.EventType{EventRequest, EventResponse}, rec.types())
	require.Equal(t, http.StatusCreated, rec.events[1].Data["status"])
}

func TestClient_EmitsErrorEventWithStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &recordingObserver{}
	c := newTestClient(t, srv, WithObserver(rec))
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	require.Equal(t, []observe.EventType{EventRequest, EventError}, rec.types())
	require.Equal(t, http.StatusTooManyRequests, rec.events[1].Data["status"])
}

func TestClient_ObserverPanicDoesNotReachCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"still fine"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithObserver(panickingObserver{}))
	reply, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "still fine", *reply.Response)
}
