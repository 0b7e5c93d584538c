package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net/http"
	"time"

	appsession "finitefield.org/page-spark/internal/pagespark/session"
)

type csrfContextKey struct{}

const (
	// CSRFFormField is the hidden input carrying the token on plain form posts.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on htmx requests.
	CSRFHeader = "X-CSRF-Token"

	defaultCSRFCookie = "page_spark_csrf"
	csrfTokenBytes    = 32
)

// CSRFConfig controls the double-submit cookie.
type CSRFConfig struct {
	CookieName string
	CookiePath string
	MaxAge     time.Duration
	Secure     bool
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if c.CookieName == "" {
		c.CookieName = defaultCSRFCookie
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.MaxAge == 0 {
		c.MaxAge = 24 * time.Hour
	}
	return c
}

// CSRF guards every state-changing request (wizard steps, quick generation,
// admin forms) with a double-submit cookie. The token must come back in
// CSRFHeader or CSRFFormField.
//
// A rejected htmx request asks the browser to reload, so a wizard left open
// past the cookie lifetime recovers with a fresh token and a notice instead of
// a silently failing button.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cfg.issue(w, r)
			if err != nil {
				http.Error(w, "csrf token error", http.StatusInternalServerError)
				return
			}
			if changesState(r.Method) && !matchesToken(submittedToken(r), token) {
				rejectCSRF(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), csrfContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFTokenFromContext returns the token issued for the current request.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey{}).(string)
	return token
}

// issue returns the visitor's token, setting the cookie on first contact.
func (c CSRFConfig) issue(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(c.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	raw := make([]byte, csrfTokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     c.CookieName,
		Value:    token,
		Path:     c.CookiePath,
		HttpOnly: true,
		Secure:   c.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(c.MaxAge.Seconds()),
	})
	return token, nil
}

func submittedToken(r *http.Request) string {
	if token := r.Header.Get(CSRFHeader); token != "" {
		return token
	}
	return r.PostFormValue(CSRFFormField)
}

func matchesToken(submitted, issued string) bool {
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(issued)) == 1
}

func rejectCSRF(w http.ResponseWriter, r *http.Request) {
	if IsHTMXRequest(r.Context()) {
		if sess, ok := SessionFromContext(r.Context()); ok {
			sess.AddFlash(appsession.Flash{
				Kind:        appsession.FlashError,
				Title:       "Your form expired",
				Description: "The page was reloaded. Please try again.",
			})
		}
		w.Header().Set("HX-Refresh", "true")
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func changesState(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}
