package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	hashKey := []byte("12345678901234567890123456789012")
	blockKey := []byte("abcdefghijklmnopqrstuv0123456789")
	clock := &fixedClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName:       "test_session",
		HashKey:          hashKey,
		BlockKey:         blockKey,
		CookiePath:       "/",
		IdleTimeout:      10 * time.Minute,
		Lifetime:         2 * time.Hour,
		RememberLifetime: 48 * time.Hour,
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr, clock
}

func TestManager_RequiresHashKey(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewManager(Config{HashKey: []byte("k"), BlockKey: []byte("short")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for block key, got %v", err)
	}
}

func TestManager_ItemsAndFlashesPersist(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sess.ID() == "" {
		t.Fatalf("expected session ID")
	}
	if !sess.CreatedAt().Equal(clock.current) {
		t.Fatalf("unexpected CreatedAt: %v", sess.CreatedAt())
	}

	if err := sess.SetItem("page_spark_auth_token", "obfuscated"); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	sess.AddFlash(Flash{Kind: FlashSuccess, Title: "Welcome back!"})
	sess.SetDraftID("01HZY")
	sess.SetRememberMe(true)

	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly cookie")
	}

	clock.current = clock.current.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess2, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load existing error: %v", err)
	}
	if v, ok := sess2.GetItem("page_spark_auth_token"); !ok || v != "obfuscated" {
		t.Fatalf("expected item to persist, got %q %v", v, ok)
	}
	if !sess2.RememberMe() {
		t.Fatalf("expected remember-me flag")
	}
	if sess2.DraftID() != "01HZY" {
		t.Fatalf("expected draft id to persist")
	}
	flashes := sess2.PopFlashes()
	if len(flashes) != 1 || flashes[0].Title != "Welcome back!" {
		t.Fatalf("unexpected flashes: %#v", flashes)
	}
	if len(sess2.PopFlashes()) != 0 {
		t.Fatalf("expected flashes to be consumed")
	}
}

func TestManager_RememberMeExtendsExpiry(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.New()
	if got := sess.ExpiresAt(); !got.Equal(clock.current.Add(2 * time.Hour)) {
		t.Fatalf("unexpected default expiry %v", got)
	}
	sess.SetRememberMe(true)
	if got := sess.ExpiresAt(); !got.Equal(clock.current.Add(48 * time.Hour)) {
		t.Fatalf("unexpected remember expiry %v", got)
	}
}

func TestManager_IdleTimeout(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")

	clock.current = clock.current.Add(20 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, err := mgr.Load(req); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestManager_TamperedCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "forged"})
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, ok := sess.GetItem("page_spark_auth_token"); ok {
		t.Fatalf("expected empty session")
	}
}

func TestManager_Destroy(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess, _ := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	rec := httptest.NewRecorder()
	sess.Destroy()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("expected session cookie cleared")
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
