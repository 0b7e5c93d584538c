// Package httpserver serves the Page Spark web console: the public page
// generators and the administration area.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/config"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	"finitefield.org/page-spark/internal/pagespark/observability"
	"finitefield.org/page-spark/internal/pagespark/wizard"
	"finitefield.org/page-spark/public"
)

const (
	defaultDraftTTL     = 2 * time.Hour
	sweepInterval       = 5 * time.Minute
	shutdownGracePeriod = 10 * time.Second
)

// Config holds runtime options for the console HTTP server.
type Config struct {
	Address   string
	AdminBase string
	App       config.AppConfig
	Features  config.FeatureFlags

	Client   *apiclient.Client
	Sessions custommw.SessionStore
	Logger   *zap.Logger

	CSRFCookieName   string
	CSRFCookieSecure bool

	DraftTTL   time.Duration
	Revalidate time.Duration
	Now        func() time.Time
}

// Server is the console listener plus the wizard drafts it owns.
type Server struct {
	*http.Server
	drafts *wizard.Drafts
	logger *zap.Logger
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*Server, error) {
	if cfg.Client == nil {
		return nil, errors.New("httpserver: api client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("httpserver: session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.DraftTTL
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}

	variant := wizard.ThreeStep
	if cfg.Features.PromptPreview {
		variant = wizard.WithPreview
	}
	pages := cfg.Client.Pages()
	drafts := wizard.NewDrafts(func() *wizard.Controller {
		return wizard.New(variant,
			wizard.WithPromptGenerator(pages),
			wizard.WithPageGenerator(pages),
			wizard.WithLogger(logger),
		)
	}, wizard.WithTTL(ttl), wizard.WithClock(now))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("embed static: %w", err)
	}

	base := normalizeBasePath(cfg.AdminBase)
	h := &handlers{
		app:       cfg.App,
		features:  cfg.Features,
		adminBase: base,
		loginPath: base + "/login",
		client:    cfg.Client,
		drafts:    drafts,
		now:       now,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(chimw.Compress(5))

	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.Session(cfg.Sessions))
		r.Use(custommw.CSRF(custommw.CSRFConfig{
			CookieName: cfg.CSRFCookieName,
			Secure:     cfg.CSRFCookieSecure,
		}))
		r.Use(custommw.Auth(custommw.AuthConfig{
			Client:     cfg.Client,
			Revalidate: cfg.Revalidate,
			Now:        now,
		}))
		// Generation may legitimately take as long as the client timeout.
		r.Use(chimw.Timeout(apiclient.GenerationTimeout + 15*time.Second))

		mountPublicRoutes(r, h)
		mountAdminRoutes(r, base, h)
		r.NotFound(h.NotFound)
	})

	return &Server{
		Server: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      apiclient.GenerationTimeout + 30*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		drafts: drafts,
		logger: logger,
	}, nil
}

func mountPublicRoutes(r chi.Router, h *handlers) {
	r.Get("/", h.Home)
	r.Route("/wizard", func(r chi.Router) {
		r.Post("/next", h.WizardNext)
		r.Post("/back", h.WizardBack)
		r.Post("/reset", h.WizardReset)
		r.Post("/submit", h.WizardSubmit)
		r.Post("/prompt/edit", h.PromptEdit)
		r.Post("/prompt/regenerate", h.PromptRegenerate)
		RegisterFragment(r, "/preview", h.PromptPreview)
	})
	r.Get("/result", h.Result)
	r.Post("/result/reset", h.ResultReset)
	r.Get("/quick", h.QuickForm)
	r.Post("/quick", h.QuickSubmit)
	r.Get("/history", h.History)
	r.Get("/pages/{id}", h.PageDetail)
}

func mountAdminRoutes(router chi.Router, base string, h *handlers) {
	forbidden := http.HandlerFunc(h.Forbidden)

	router.Route(base, func(r chi.Router) {
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.LoginSubmit)
		r.Get("/register", h.RegisterForm)
		r.Post("/register", h.RegisterSubmit)
		r.With(custommw.RequireHTMX()).Post("/register/strength", h.PasswordStrength)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommw.RequireAuth(h.loginPath, apiclient.RoleAdmin, forbidden))
			r.Get("/", h.Dashboard)
			RegisterFragment(r, "/fragments/dashboard", h.DashboardFragment)
		})

		r.Group(func(r chi.Router) {
			r.Use(custommw.RequireAuth(h.loginPath, apiclient.RoleSuperAdmin, forbidden))
			r.Get("/users", h.AdminList)
			r.Get("/users/new", h.AdminNew)
			r.Post("/users", h.AdminCreate)
			r.Post("/users/{id}", h.AdminUpdate)
			r.Post("/users/{id}/delete", h.AdminDelete)
		})
	})
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}

// Drafts exposes the in-memory wizard drafts.
func (s *Server) Drafts() *wizard.Drafts {
	return s.drafts
}

// Run serves until ctx is cancelled, then shuts down gracefully and stops
// every wizard draft.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.drafts.Run(sweepCtx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.Addr))
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.drafts.Close()
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGracePeriod)
	defer cancel()
	err := s.Shutdown(shutdownCtx)
	s.drafts.Close()
	if err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" || p == "/" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
