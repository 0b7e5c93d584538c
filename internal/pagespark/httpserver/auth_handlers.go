package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/auth"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	"finitefield.org/page-spark/internal/pagespark/forms"
	"finitefield.org/page-spark/internal/pagespark/views"
)

func (h *handlers) authContext(w http.ResponseWriter, r *http.Request) (*auth.Context, bool) {
	ac, ok := custommw.AuthFromContext(r.Context())
	if !ok {
		logger(r).Error("auth context missing")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return ac, ok
}

// redirectTarget returns a local next URL, never the login page itself.
func (h *handlers) redirectTarget(next string) string {
	target := forms.SafeRedirect(next, h.adminBase)
	if u, err := url.Parse(target); err == nil && strings.TrimRight(u.Path, "/") == h.loginPath {
		return h.adminBase
	}
	return target
}

// LoginForm renders the sign-in page, or skips it for signed-in users.
func (h *handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	next := r.URL.Query().Get("next")
	if ac.State().IsAuthenticated {
		http.Redirect(w, r, h.redirectTarget(next), http.StatusFound)
		return
	}
	render(w, r, http.StatusOK, views.Login(views.LoginPage{
		Layout: h.layout(r, "Sign in"),
		Form:   forms.Login{RememberMe: ac.RememberMe(), Next: next},
	}))
}

// LoginSubmit signs the administrator in.
func (h *handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := forms.LoginFromValues(r.PostForm)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderLogin(w, r, form, errs, http.StatusUnprocessableEntity)
		return
	}

	if err := ac.Login(r.Context(), form.Credentials()); err != nil {
		status := http.StatusBadGateway
		if reqErr, ok := apiclient.AsRequestError(err); ok && (reqErr.Unauthorized() || reqErr.Status == http.StatusBadRequest) {
			status = http.StatusUnauthorized
		}
		form.Password = ""
		h.renderLogin(w, r, form, nil, status)
		return
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetRememberMe(form.RememberMe)
		sess.MarkValidated(h.now())
	}
	custommw.Redirect(w, r, h.redirectTarget(form.Next))
}

func (h *handlers) renderLogin(w http.ResponseWriter, r *http.Request, form forms.Login, errs forms.Errors, status int) {
	render(w, r, status, views.Login(views.LoginPage{
		Layout: h.layout(r, "Sign in"),
		Form:   form,
		Errors: errs,
	}))
}

// RegisterForm renders the sign-up page.
func (h *handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if ac.State().IsAuthenticated {
		http.Redirect(w, r, h.adminBase, http.StatusFound)
		return
	}
	h.renderRegister(w, r, forms.Register{}, nil, "", http.StatusOK)
}

// RegisterSubmit creates an administrator account and signs it in.
func (h *handlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := forms.RegisterFromValues(r.PostForm)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderRegister(w, r, form, errs, "", http.StatusUnprocessableEntity)
		return
	}

	if err := ac.Register(r.Context(), form.Data()); err != nil {
		errs := forms.Errors{}
		banner := ""
		status := http.StatusBadGateway
		if reqErr, ok := apiclient.AsRequestError(err); ok {
			for field, msg := range reqErr.FieldErrors() {
				errs[field] = msg
			}
			if reqErr.Status == http.StatusBadRequest {
				status = http.StatusUnprocessableEntity
			}
			if len(errs) == 0 {
				banner = reqErr.Message
			}
		}
		form.Password, form.ConfirmPassword = "", ""
		h.renderRegister(w, r, form, errs, banner, status)
		return
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.MarkValidated(h.now())
	}
	custommw.Redirect(w, r, h.adminBase)
}

func (h *handlers) renderRegister(w http.ResponseWriter, r *http.Request, form forms.Register, errs forms.Errors, banner string, status int) {
	render(w, r, status, views.Register(views.RegisterPage{
		Layout: h.layout(r, "Create account"),
		Form:   form,
		Errors: errs,
		Banner: banner,
	}))
}

// PasswordStrength renders the live strength meter.
func (h *handlers) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	password := r.PostFormValue("password")
	page := views.RegisterPage{Layout: h.layout(r, "")}
	if password != "" {
		s := forms.PasswordStrength(password)
		page.Strength = &s
	}
	render(w, r, http.StatusOK, views.PasswordStrength(page))
}

// Logout clears the stored credentials and returns to the login page.
func (h *handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if err := ac.Logout(r.Context()); err != nil {
		logger(r).Warn("logout storage failure", zap.Error(err))
	}
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.MarkValidated(time.Time{})
	}
	custommw.Redirect(w, r, h.loginPath)
}
