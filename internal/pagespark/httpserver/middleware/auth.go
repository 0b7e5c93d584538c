package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/auth"
	"finitefield.org/page-spark/internal/pagespark/requestctx"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/storage"
)

type authContextKey string

const authKey authContextKey = "pagespark.auth"

const defaultRevalidate = 5 * time.Minute

// AuthConfig configures the per-request auth context.
type AuthConfig struct {
	Client *apiclient.Client
	// Revalidate is how long a backend credential check stays trusted before
	// the next request repeats it.
	Revalidate time.Duration
	Now        func() time.Time
}

// Auth binds an auth.Context to the session-backed token store. Stored
// credentials are re-checked against the backend once per Revalidate window
// and refreshed when close to expiry. It never rejects a request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Client == nil {
		panic("auth: api client is required")
	}
	revalidate := cfg.Revalidate
	if revalidate <= 0 {
		revalidate = defaultRevalidate
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx)
			sess, ok := SessionFromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			store, err := storage.New(sess, storage.WithLogger(logger))
			if err != nil {
				logger.Error("token store init failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			ac, err := auth.New(cfg.Client, store,
				auth.WithNotifier(FlashNotifier(sess)),
				auth.WithLogger(logger),
				auth.WithClock(now),
			)
			if err != nil {
				logger.Error("auth context init failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			validatedAt := sess.ValidatedAt()
			if validatedAt.IsZero() || now().Sub(validatedAt) > revalidate {
				ac.Init(ctx)
				if ac.State().IsAuthenticated {
					sess.MarkValidated(now())
				} else if !validatedAt.IsZero() {
					sess.MarkValidated(time.Time{})
				}
			} else {
				ac.Restore()
			}

			if ac.State().IsAuthenticated {
				if err := ac.EnsureFresh(ctx); err != nil {
					logger.Info("token refresh failed", zap.Error(err))
					sess.MarkValidated(time.Time{})
				}
			}

			ctx = context.WithValue(ctx, authKey, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFromContext returns the request's auth context.
func AuthFromContext(ctx context.Context) (*auth.Context, bool) {
	ac, ok := ctx.Value(authKey).(*auth.Context)
	return ac, ok && ac != nil
}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(ctx context.Context) (*apiclient.User, bool) {
	ac, ok := AuthFromContext(ctx)
	if !ok {
		return nil, false
	}
	st := ac.State()
	if !st.IsAuthenticated || st.User == nil {
		return nil, false
	}
	return st.User, true
}

// RequireAuth redirects anonymous visitors to loginPath and answers 403 via
// forbidden when the user's role does not satisfy required. An empty required
// role admits any signed-in user.
func RequireAuth(loginPath string, required apiclient.Role, forbidden http.Handler) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	if forbidden == nil {
		forbidden = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Access Denied", http.StatusForbidden)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				handleUnauthorized(w, r, loginPath)
				return
			}
			if !user.Role.Satisfies(required) {
				requestctx.Logger(r.Context()).Info("access denied",
					zap.String("user_id", user.ID),
					zap.String("role", string(user.Role)),
					zap.String("required", string(required)),
				)
				forbidden.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, loginPath string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", loginPath)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	target := loginPath
	if u, err := url.Parse(loginPath); err == nil {
		q := u.Query()
		q.Set("next", r.URL.RequestURI())
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// FlashNotifier turns auth notices into session flashes.
func FlashNotifier(sess *appsession.Session) auth.Notifier {
	return auth.NotifierFunc(func(n auth.Notice) {
		kind := appsession.FlashSuccess
		if n.Kind == auth.NoticeError {
			kind = appsession.FlashError
		}
		sess.AddFlash(appsession.Flash{Kind: kind, Title: n.Title, Description: n.Description})
	})
}
