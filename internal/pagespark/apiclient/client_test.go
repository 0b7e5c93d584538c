package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu       sync.Mutex
	requests []*http.Request
	deadline time.Duration
	respond  func(*http.Request) (*http.Response, error)
}

func (c *recordingClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	if dl, ok := req.Context().Deadline(); ok {
		c.deadline = time.Until(dl)
	}
	c.mu.Unlock()
	return c.respond(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = New("not a url")
	require.Error(t, err)
}

func TestClientAttachesBearerUnlessSkipped(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"1","email":"a@b.co","role":"admin","createdAt":"2026-01-01T00:00:00Z"},"token":"t"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", WithTokenSource(TokenFunc(func() (string, bool) { return "tok", true })))

	_, err := c.Auth().Me(context.Background())
	require.NoError(t, err)
	_, err = c.Auth().Login(context.Background(), LoginCredentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer tok", ""}, gotAuth)
}

func TestClientOmitsHeaderWithoutToken(t *testing.T) {
	rc := &recordingClient{respond: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	}}
	c := newTestClient(t, "https://api.example.com", WithHTTPClient(rc),
		WithTokenSource(TokenFunc(func() (string, bool) { return "", false })))

	_, err := c.Admin().ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, rc.requests, 1)
	require.Empty(t, rc.requests[0].Header.Get("Authorization"))
	require.Equal(t, "https://api.example.com/api/admin/users/", rc.requests[0].URL.String())
}

func TestClientPerEndpointTimeouts(t *testing.T) {
	cases := []struct {
		name string
		call func(*Client) error
		want time.Duration
	}{
		{"generate", func(c *Client) error {
			_, err := c.Pages().Generate(context.Background(), GeneratePageRequest{Prompt: "p", Email: "a@b.co"})
			return err
		}, GenerationTimeout},
		{"generate prompt", func(c *Client) error {
			_, err := c.Pages().GeneratePrompt(context.Background(), map[string]any{"occasion": "birthday"})
			return err
		}, PromptTimeout},
		{"history", func(c *Client) error {
			_, err := c.Pages().History(context.Background(), "a@b.co")
			return err
		}, DefaultTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := &recordingClient{respond: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{}`), nil
			}}
			c := newTestClient(t, "https://api.example.com", WithHTTPClient(rc))
			if tc.name == "history" {
				rc.respond = func(*http.Request) (*http.Response, error) { return jsonResponse(http.StatusOK, `[]`), nil }
			}
			require.NoError(t, tc.call(c))
			require.InDelta(t, tc.want.Seconds(), rc.deadline.Seconds(), 2)
		})
	}
}

func TestClientTimeoutBecomes408(t *testing.T) {
	rc := &recordingClient{respond: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	c := newTestClient(t, "https://api.example.com", WithHTTPClient(rc))

	err := c.Post(context.Background(), "/api/generate/", map[string]string{"prompt": "x"}, nil, WithTimeout(20*time.Millisecond))
	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, 408, reqErr.Status)
	require.Equal(t, "Request timeout", reqErr.Message)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClientCallerCancellationBecomes408(t *testing.T) {
	rc := &recordingClient{respond: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	c := newTestClient(t, "https://api.example.com", WithHTTPClient(rc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Pages().Generate(ctx, GeneratePageRequest{})
	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	require.True(t, reqErr.Timeout())
	require.Equal(t, "Request timeout", reqErr.Message)
}

func TestClientValidationErrorShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Invalid email","errors":{"email":["bad format"]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Pages().Generate(context.Background(), GeneratePageRequest{Prompt: "p", Email: "bad"})
	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, 422, reqErr.Status)
	require.Equal(t, "Invalid email", reqErr.Message)
	if diff := cmp.Diff(map[string][]string{"email": {"bad format"}}, reqErr.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, map[string]string{"email": "bad format"}, reqErr.FieldErrors())
}

func TestClientErrorMessageFallbacks(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{"error key", "application/json", `{"error":"Not allowed"}`, 403, "Not allowed"},
		{"plain text", "text/html", `<h1>oops</h1>`, 502, "HTTP 502: Bad Gateway"},
		{"broken json", "application/json", `{`, 500, "HTTP 500: Internal Server Error"},
		{"empty json", "application/json", `{}`, 404, "HTTP 404: Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).Get(context.Background(), "/x", nil)
			reqErr, ok := AsRequestError(err)
			require.True(t, ok)
			require.Equal(t, tc.status, reqErr.Status)
			require.Equal(t, tc.want, reqErr.Message)
		})
	}
}

func TestClientNetworkFailureIsStatusZero(t *testing.T) {
	rc := &recordingClient{respond: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	err := newTestClient(t, "https://api.example.com", WithHTTPClient(rc)).Get(context.Background(), "/x", nil)
	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, 0, reqErr.Status)
	require.Contains(t, reqErr.Message, "connection refused")
}

func TestClientDecodeFailureIsStatusZero(t *testing.T) {
	rc := &recordingClient{respond: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"page_id": 5`), nil
	}}
	_, err := newTestClient(t, "https://api.example.com", WithHTTPClient(rc)).Pages().Generate(context.Background(), GeneratePageRequest{})
	reqErr, ok := AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, 0, reqErr.Status)
}

func TestClientReturnsRawTextForNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	var out string
	require.NoError(t, newTestClient(t, srv.URL).Get(context.Background(), "/ping", &out))
	require.Equal(t, "pong", out)
}

func TestClientRejectsNonJSONForTypedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	var out struct {
		ID string `json:"id"`
	}
	err := c.Get(context.Background(), "/page", &out)
	reqErr, ok := AsRequestError(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, StatusNetworkError, reqErr.Status)
	require.Equal(t, "unexpected non-JSON response", reqErr.Message)
	require.Empty(t, out.ID)

	require.NoError(t, c.Get(context.Background(), "/page", nil))
	require.NoError(t, c.Get(context.Background(), "/empty", &out))
}

func TestEndpointsBuildPathsAndBodies(t *testing.T) {
	type seen struct {
		method, path, query string
		body                map[string]any
	}
	var calls []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, seen{r.Method, r.URL.Path, r.URL.RawQuery, body})
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/history/") {
			_, _ = w.Write([]byte(`[{"id":"p1","liveUrl":"https://live/p1"}]`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	items, err := c.Pages().History(ctx, "a+b@example.com")
	require.NoError(t, err)
	require.Equal(t, "https://live/p1", items[0].Link())

	_, err = c.Pages().ByID(ctx, "abc 1")
	require.NoError(t, err)
	_, err = c.Auth().Refresh(ctx, "r1")
	require.NoError(t, err)
	active := false
	_, err = c.Admin().UpdateAdmin(ctx, "u1", AdminUpdate{IsActive: &active})
	require.NoError(t, err)
	require.NoError(t, c.Admin().DeleteAdmin(ctx, "u1"))

	require.Equal(t, "email=a%2Bb%40example.com", calls[0].query)
	require.Equal(t, "/api/pages/abc 1/", calls[1].path)
	require.Equal(t, map[string]any{"refresh": "r1"}, calls[2].body)
	require.Equal(t, http.MethodPatch, calls[3].method)
	require.Equal(t, map[string]any{"isActive": false}, calls[3].body)
	require.Equal(t, http.MethodDelete, calls[4].method)
}

func TestLogoutSwallowsFailure(t *testing.T) {
	rc := &recordingClient{respond: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `{"message":"down"}`), nil
	}}
	c := newTestClient(t, "https://api.example.com", WithHTTPClient(rc))
	c.Auth().Logout(context.Background())
	require.Len(t, rc.requests, 1)
	require.Equal(t, "/api/admin/logout/", rc.requests[0].URL.Path)
}

func TestRoleSatisfies(t *testing.T) {
	require.True(t, RoleSuperAdmin.Satisfies(RoleAdmin))
	require.True(t, RoleAdmin.Satisfies(RoleAdmin))
	require.False(t, RoleAdmin.Satisfies(RoleSuperAdmin))
	require.True(t, Role("").Satisfies(""))
}
