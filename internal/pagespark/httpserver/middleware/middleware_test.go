package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/auth"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
)

func TestHTMXAnnotatesContext(t *testing.T) {
	var info HTMXInfo
	var fragment bool
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info = HTMXInfoFromContext(r.Context())
		fragment = IsHTMXRequest(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "wizard")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, info.IsHTMX)
	require.Equal(t, "wizard", info.Target)
	require.True(t, fragment)
	require.Equal(t, "HX-Request", rec.Header().Get("Vary"))

	req.Header.Set("HX-Boosted", "true")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, fragment)
}

func TestRequireHTMX(t *testing.T) {
	handler := HTMX()(RequireHTMX()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fragment", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/fragment", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRedirect(t *testing.T) {
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Redirect(w, r, "/result")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/result", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/result", rec.Header().Get("HX-Redirect"))
}

func TestCSRFIssuesAndChecksToken(t *testing.T) {
	var seen string
	handler := CSRF(CSRFConfig{CookieName: "csrf"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CSRFTokenFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec.Result().Cookies(), "csrf")
	require.NotNil(t, cookie)
	require.Equal(t, cookie.Value, seen)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	post := func(header, field string) int {
		form := url.Values{}
		if field != "" {
			form.Set(CSRFFormField, field)
		}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusForbidden, post("", ""))
	require.Equal(t, http.StatusForbidden, post("wrong", ""))
	require.Equal(t, http.StatusOK, post(cookie.Value, ""))
	require.Equal(t, http.StatusOK, post("", cookie.Value))
	require.Equal(t, http.StatusOK, post(cookie.Value, "wrong"))
}

func TestCSRFRejectionReloadsHTMXOnly(t *testing.T) {
	handler := HTMX()(CSRF(CSRFConfig{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("rejected request reached the handler")
	})))

	for _, htmx := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodPost, "/wizard/next", nil)
		req.AddCookie(&http.Cookie{Name: "page_spark_csrf", Value: "issued"})
		req.Header.Set(CSRFHeader, "stale")
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
		if htmx {
			require.Equal(t, "true", rec.Header().Get("HX-Refresh"))
		} else {
			require.Empty(t, rec.Header().Get("HX-Refresh"))
		}
	}
}

func TestSessionCommitsBeforeFirstWrite(t *testing.T) {
	mgr, err := appsession.NewManager(appsession.Config{
		CookieName: "sess",
		HashKey:    []byte("12345678901234567890123456789012"),
	})
	require.NoError(t, err)

	handler := Session(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		sess.SetDraftID("draft-1")
		w.WriteHeader(http.StatusAccepted)
		// Changes after the headers went out are lost.
		sess.SetLastLiveURL("https://pages.example.com/late")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	cookie := findCookie(rec.Result().Cookies(), "sess")
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := mgr.Load(req)
	require.NoError(t, err)
	require.Equal(t, "draft-1", sess.DraftID())
	require.Empty(t, sess.LastLiveURL())
}

func TestSessionResetsExpiredCookie(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mgr, err := appsession.NewManager(appsession.Config{
		CookieName:  "sess",
		HashKey:     []byte("12345678901234567890123456789012"),
		IdleTimeout: time.Minute,
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)

	old := mgr.New()
	old.SetDraftID("stale")
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, old))
	cookie := findCookie(rec.Result().Cookies(), "sess")

	now = now.Add(time.Hour)
	var draft string
	handler := Session(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		draft = sess.DraftID()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Empty(t, draft)
}

func TestRequireAuthWithoutUser(t *testing.T) {
	handler := HTMX()(RequireAuth("/admin/login", apiclient.RoleAdmin, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users?page=2", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/login?next=%2Fadmin%2Fusers%3Fpage%3D2", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "/admin/login", rec.Header().Get("HX-Redirect"))
}

func TestFlashNotifierQueuesFlashes(t *testing.T) {
	mgr, err := appsession.NewManager(appsession.Config{HashKey: []byte("12345678901234567890123456789012")})
	require.NoError(t, err)
	sess := mgr.New()

	FlashNotifier(sess).Notify(auth.Notice{Kind: auth.NoticeError, Title: "Login failed", Description: "Invalid credentials"})
	flashes := sess.PopFlashes()
	require.Len(t, flashes, 1)
	require.Equal(t, appsession.FlashError, flashes[0].Kind)
	require.Equal(t, "Invalid credentials", flashes[0].Description)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
