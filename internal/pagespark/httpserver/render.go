package httpserver

import (
	"net/http"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/config"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	"finitefield.org/page-spark/internal/pagespark/requestctx"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/views"
	"finitefield.org/page-spark/internal/pagespark/wizard"
)

type handlers struct {
	app       config.AppConfig
	features  config.FeatureFlags
	adminBase string
	loginPath string
	client    *apiclient.Client
	drafts    *wizard.Drafts
	now       func() time.Time
}

// layout builds the shared page chrome and consumes queued flashes.
func (h *handlers) layout(r *http.Request, title string) views.Layout {
	ctx := r.Context()
	l := views.Layout{
		Title:       title,
		AppName:     h.app.Name,
		Description: h.app.Description,
		Version:     h.app.Version,
		CSRFToken:   custommw.CSRFTokenFromContext(ctx),
		AdminBase:   h.adminBase,
		Analytics:   h.features.Analytics,
		DebugMode:   h.features.DebugMode,
		Fragment:    custommw.IsHTMXRequest(ctx),
	}
	if sess, ok := custommw.SessionFromContext(ctx); ok {
		l.Flashes = sess.PopFlashes()
	}
	if user, ok := custommw.CurrentUser(ctx); ok {
		l.User = user
	}
	return l
}

func render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	if status == 0 {
		status = http.StatusOK
	}
	templ.Handler(component, templ.WithStatus(status), templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		requestctx.Logger(r.Context()).Error("render failed", zap.Error(err))
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}

// fragmentStatus keeps htmx swapping on validation failures, which it skips for 4xx.
func fragmentStatus(r *http.Request, status int) int {
	if custommw.IsHTMXRequest(r.Context()) {
		return http.StatusOK
	}
	return status
}

func flash(r *http.Request, kind appsession.FlashKind, title, description string) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.AddFlash(appsession.Flash{Kind: kind, Title: title, Description: description})
	}
}

func (h *handlers) renderError(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	render(w, r, status, views.Error(views.ErrorPage{
		Layout:  h.layout(r, heading),
		Status:  status,
		Heading: heading,
		Message: message,
		Back:    "/",
	}))
}

// NotFound renders the 404 page.
func (h *handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Page not found", "The page you are looking for does not exist.")
}

// Forbidden renders the access denied page.
func (h *handlers) Forbidden(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusForbidden, views.Error(views.ErrorPage{
		Layout:  h.layout(r, "Access Denied"),
		Status:  http.StatusForbidden,
		Heading: "Access Denied",
		Message: "You do not have permission to view this page.",
		Back:    h.adminBase,
	}))
}

func logger(r *http.Request) *zap.Logger {
	return requestctx.Logger(r.Context())
}
