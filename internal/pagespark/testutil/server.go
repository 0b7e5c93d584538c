package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/config"
	"finitefield.org/page-spark/internal/pagespark/httpserver"
	"finitefield.org/page-spark/internal/pagespark/session"
)

// CSRFCookie is the CSRF cookie name used by NewServer.
const CSRFCookie = "csrf_token"

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithPromptPreview toggles the four step wizard.
func WithPromptPreview(enabled bool) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Features.PromptPreview = enabled
	}
}

// WithAdminBase mounts the admin area under path.
func WithAdminBase(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.AdminBase = path
	}
}

// WithClock overrides the server clock.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Now = now
	}
}

// NewServer constructs an httptest server running the console against backend.
func NewServer(t testing.TB, backend *Backend, opts ...ServerOption) *httptest.Server {
	t.Helper()

	client, err := apiclient.New(backend.URL)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	sessions, err := session.NewManager(session.Config{
		HashKey:  []byte("12345678901234567890123456789012"),
		BlockKey: []byte("abcdefghijklmnopqrstuv0123456789"),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	cfg := httpserver.Config{
		Address:        ":0",
		AdminBase:      "/admin",
		App:            config.AppConfig{Name: "Page Spark", Version: "1.0.0", Description: "AI-Powered Live Page Generator"},
		Features:       config.FeatureFlags{PromptPreview: true},
		Client:         client,
		Sessions:       sessions,
		CSRFCookieName: CSRFCookie,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("httpserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Drafts().Close()
	})
	return ts
}

// Browser is a cookie-keeping client that never follows redirects and
// echoes the CSRF cookie on unsafe requests.
type Browser struct {
	t      testing.TB
	base   *url.URL
	client *http.Client
}

// NewBrowser returns a Browser bound to ts.
func NewBrowser(t testing.TB, ts *httptest.Server) *Browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	base, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return &Browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Location returns the redirect target, from Location or HX-Redirect.
func (r Response) Location() string {
	if loc := r.Header.Get("Location"); loc != "" {
		return loc
	}
	return r.Header.Get("HX-Redirect")
}

// Get issues a full page navigation.
func (b *Browser) Get(path string) Response {
	return b.do(http.MethodGet, path, nil, false)
}

// Fragment issues an htmx GET.
func (b *Browser) Fragment(path string) Response {
	return b.do(http.MethodGet, path, nil, true)
}

// Post submits form as a plain form post.
func (b *Browser) Post(path string, form url.Values) Response {
	return b.do(http.MethodPost, path, form, false)
}

// HXPost submits form the way htmx does.
func (b *Browser) HXPost(path string, form url.Values) Response {
	return b.do(http.MethodPost, path, form, true)
}

// CSRFToken returns the token the server issued to this browser.
func (b *Browser) CSRFToken() string {
	for _, c := range b.client.Jar.Cookies(b.base) {
		if c.Name == CSRFCookie {
			return c.Value
		}
	}
	return ""
}

func (b *Browser) do(method, path string, form url.Values, htmx bool) Response {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		form = cloneValues(form)
		if form.Get("csrf_token") == "" {
			if token := b.CSRFToken(); token != "" {
				form.Set("csrf_token", token)
			}
		}
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, b.base.String()+path, body)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
