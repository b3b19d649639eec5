package galaxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiRoot = "/api/automation-hub/"

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// countingSleep records each requested sleep without waiting.
type countingSleep struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *countingSleep) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()

	return nil
}

func (s *countingSleep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.durations)
}

// newTestClient creates a token-authenticated Client for the given
// httptest server with instant sleeps.
func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()

	return newTestClientWith(t, srvURL+apiRoot, TokenAuth{Token: "test-token"}, Options{})
}

func newTestClientWith(t *testing.T, baseURL string, cred Credential, opts Options) *Client {
	t.Helper()

	c, err := NewClient(context.Background(), baseURL, cred, opts)
	require.NoError(t, err)

	c.sleepFunc = noopSleep

	return c
}

func TestNewClient_BaseURLNormalized(t *testing.T) {
	c := newTestClientWith(t, "http://hub.example/api/automation-hub", nil, Options{})
	assert.Equal(t, "http://hub.example/api/automation-hub/", c.BaseURL())
	assert.Equal(t, ModeAnonymous, c.AuthState().Mode)
	assert.Equal(t, DefaultPolling(), c.Polling())
}

func TestNewClient_RelativeURLRejected(t *testing.T) {
	_, err := NewClient(context.Background(), "api/automation-hub/", nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be absolute")
}

func TestDo_Success(t *testing.T) {
	var gotAuth, gotAgent, gotAccept, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var out struct {
		Value string `json:"value"`
	}

	require.NoError(t, client.Get(context.Background(), "v3/collections/", &out))
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, "Token test-token", gotAuth)
	assert.Equal(t, defaultUserAgent, gotAgent)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, apiRoot+"v3/collections/", gotPath)
}

func TestDo_JSONBodyContentType(t *testing.T) {
	var gotType, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.Post(context.Background(), "_ui/v1/groups/", map[string]string{"name": "g"}, nil))

	assert.Equal(t, jsonContentType, gotType)
	assert.JSONEq(t, `{"name":"g"}`, gotBody)
}

func TestDo_HostRootPath(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.Get(context.Background(), "/pulp/api/v3/tasks/abc/", nil))
	assert.Equal(t, "/pulp/api/v3/tasks/abc/", gotPath)
}

func TestDo_GatewayTimeoutRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "v3/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GatewayTimeoutExhausted(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte("upstream timed out"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "v3/"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode)
	assert.Equal(t, "upstream timed out", apiErr.Body)
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"conflict", http.StatusConflict, ErrConflict},
		{"server error", http.StatusInternalServerError, ErrServerError},
		{"bad gateway", http.StatusBadGateway, ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"nope"}`))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			err := client.Get(context.Background(), "v3/", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestDo_StructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		category error
	}{
		{"permission", http.StatusForbidden, "permission_denied", ErrPermission},
		{"not authenticated", http.StatusUnauthorized, "not_authenticated", ErrAuth},
		{"authentication failed", http.StatusOK, "authentication_failed", ErrAuth},
		{"other", http.StatusBadRequest, "invalid", ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":[{"status":"x","code":"` + tt.code + `","detail":"went wrong"}]}`))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			err := client.Get(context.Background(), "v3/", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.category)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.True(t, apiErr.HasCode(tt.code))
			assert.Contains(t, err.Error(), "went wrong")

			// Token sessions are never replayed.
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestDo_DetailExpiredWithoutGatewayIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Get(context.Background(), "v3/", nil)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestDo_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var out map[string]any
	require.NoError(t, client.Delete(context.Background(), "v3/namespaces/x/", &out))
	assert.Nil(t, out)
}

func TestDo_InvalidJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Get(context.Background(), "v3/", nil)
	require.Error(t, err)

	var formatErr *ResponseFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "<html>maintenance</html>", formatErr.Body)
	assert.ErrorIs(t, err, ErrResponseFormat)
}

func TestDo_InvalidJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Get(context.Background(), "v3/", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Body)
}

func TestDo_RawSkipsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.GetRaw(context.Background(), "v3/readme")
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(resp.Body))
}

func TestDo_RawFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.DeleteRaw(context.Background(), "v3/x/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDo_RequestHeaderOverrides(t *testing.T) {
	var gotType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "v3/",
		Body:   []byte("a=b"),
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Get(ctx, "v3/", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url)
	err := client.Get(context.Background(), "v3/", nil)
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
