package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/admin"
	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/auth"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	"finitefield.org/page-spark/internal/pagespark/forms"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/views"
)

var roleOptions = []struct {
	role  apiclient.Role
	label string
}{
	{apiclient.RoleAdmin, "Admin"},
	{apiclient.RoleSuperAdmin, "Super admin"},
}

func roles(selected string) []views.Option {
	out := make([]views.Option, 0, len(roleOptions))
	for _, r := range roleOptions {
		out = append(out, views.Option{Value: string(r.role), Label: r.label, Selected: string(r.role) == selected})
	}
	return out
}

func (h *handlers) adminService(ac *auth.Context) *admin.Service {
	return admin.NewService(ac.API().Admin(), admin.WithClock(h.now))
}

// reauthenticate forces the next request to re-check the stored token, which
// signs the user out when the backend rejected it.
func (h *handlers) reauthenticate(w http.ResponseWriter, r *http.Request, err error) bool {
	reqErr, ok := apiclient.AsRequestError(err)
	if !ok || !reqErr.Unauthorized() {
		return false
	}
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.MarkValidated(time.Time{})
	}
	target := h.adminBase
	if r.Method == http.MethodGet && !custommw.IsHTMXRequest(r.Context()) {
		target = r.URL.RequestURI()
	}
	custommw.Redirect(w, r, target)
	return true
}

func (h *handlers) dashboardPage(w http.ResponseWriter, r *http.Request) (views.DashboardPage, bool) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return views.DashboardPage{}, false
	}
	page := views.DashboardPage{Loaded: views.Clock(h.now())}
	overview, err := h.adminService(ac).Overview(r.Context())
	if err != nil {
		if h.reauthenticate(w, r, err) {
			return page, false
		}
		page.Error = apiclient.Message(err)
	} else {
		page.Stats = statCards(overview.Stats)
		page.Popular = overview.Popular
		page.Admins = len(overview.Admins)
		page.Loaded = views.Clock(overview.LoadedAt)
		for _, item := range overview.Recent {
			page.Recent = append(page.Recent, historyRow(item))
		}
		if overview.AdminsErr != nil {
			page.AdminErr = apiclient.Message(overview.AdminsErr)
		}
	}
	page.Layout = h.layout(r, "Dashboard")
	return page, true
}

// Dashboard renders the administration overview.
func (h *handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	page, ok := h.dashboardPage(w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, views.Dashboard(page))
}

// DashboardFragment re-renders the overview for the refresh button.
func (h *handlers) DashboardFragment(w http.ResponseWriter, r *http.Request) {
	page, ok := h.dashboardPage(w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, views.DashboardPanel(page))
}

func statCards(s apiclient.DashboardStats) []views.StatCard {
	return []views.StatCard{
		{Label: "Total pages", Value: views.Count(s.TotalPages)},
		{Label: "Pages today", Value: views.Count(s.PagesToday)},
		{Label: "Total views", Value: views.Count(s.TotalViews)},
		{Label: "Unique users", Value: views.Count(s.UniqueUsers)},
		{Label: "Conversion rate", Value: fmt.Sprintf("%.1f%%", s.ConversionRate), Hint: "views per page"},
	}
}

// AdminList renders the administrator accounts.
func (h *handlers) AdminList(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	page := views.AdminsPage{Roles: roles("")}
	status := http.StatusOK
	admins, err := h.adminService(ac).Admins(r.Context())
	if err != nil {
		if h.reauthenticate(w, r, err) {
			return
		}
		logger(r).Warn("admin list failed", zap.Error(err))
		page.Error = apiclient.Message(err)
		status = http.StatusBadGateway
	}
	selfID := ""
	if user, ok := custommw.CurrentUser(r.Context()); ok {
		selfID = user.ID
	}
	for _, a := range admins {
		page.Admins = append(page.Admins, views.AdminRow{
			ID:        a.ID,
			Email:     a.Email,
			Name:      a.Name,
			Role:      string(a.Role),
			Active:    a.IsActive,
			Created:   views.Timestamp(a.CreatedAt),
			LastLogin: views.Timestamp(a.LastLogin),
			Self:      a.ID == selfID,
		})
	}
	page.Layout = h.layout(r, "Administrators")
	render(w, r, status, views.Admins(page))
}

// AdminNew renders the create-admin form.
func (h *handlers) AdminNew(w http.ResponseWriter, r *http.Request) {
	h.renderCreateAdmin(w, r, forms.CreateAdmin{Role: string(apiclient.RoleAdmin)}, nil, "", http.StatusOK)
}

func (h *handlers) renderCreateAdmin(w http.ResponseWriter, r *http.Request, form forms.CreateAdmin, errs forms.Errors, banner string, status int) {
	form.Password, form.ConfirmPassword = "", ""
	render(w, r, status, views.CreateAdmin(views.CreateAdminPage{
		Layout: h.layout(r, "Create admin"),
		Form:   form,
		Errors: errs,
		Banner: banner,
		Roles:  roles(form.Role),
	}))
}

// AdminCreate creates an administrator account.
func (h *handlers) AdminCreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := forms.CreateAdminFromValues(r.PostForm)
	if errs := form.Validate(); len(errs) > 0 {
		h.renderCreateAdmin(w, r, form, errs, "", http.StatusUnprocessableEntity)
		return
	}
	created, err := h.adminService(ac).Create(r.Context(), form.Request())
	if err != nil {
		if h.reauthenticate(w, r, err) {
			return
		}
		errs := forms.Errors{}
		banner := apiclient.Message(err)
		status := http.StatusBadGateway
		if reqErr, ok := apiclient.AsRequestError(err); ok {
			for field, msg := range reqErr.FieldErrors() {
				errs[field] = msg
			}
			if reqErr.Status == http.StatusBadRequest {
				status = http.StatusUnprocessableEntity
			}
		}
		h.renderCreateAdmin(w, r, form, errs, banner, status)
		return
	}
	flash(r, appsession.FlashSuccess, "Administrator created", fmt.Sprintf("%s can now sign in as %s", created.Email, created.Role))
	custommw.Redirect(w, r, h.adminBase+"/users")
}

// AdminUpdate changes an administrator's name, role or status.
func (h *handlers) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	form := forms.UpdateAdminFromValues(r.PostForm)
	if errs := form.Validate(); len(errs) > 0 {
		for _, field := range []string{"form", "role", "isActive"} {
			if msg, ok := errs[field]; ok {
				flash(r, appsession.FlashError, "Could not update administrator", msg)
				break
			}
		}
		custommw.Redirect(w, r, h.adminBase+"/users")
		return
	}

	updated, err := h.adminService(ac).Update(r.Context(), id, form.Patch())
	if err != nil {
		if h.reauthenticate(w, r, err) {
			return
		}
		logger(r).Warn("admin update failed", zap.String("admin_id", id), zap.Error(err))
		flash(r, appsession.FlashError, "Could not update administrator", apiclient.Message(err))
		custommw.Redirect(w, r, h.adminBase+"/users")
		return
	}

	if user, ok := custommw.CurrentUser(r.Context()); ok && user.ID == updated.ID {
		name, role := updated.Name, updated.Role
		if err := ac.UpdateUser(apiclient.UserPatch{Name: &name, Role: &role}); err != nil {
			logger(r).Warn("refresh signed-in profile failed", zap.Error(err))
		}
	}
	flash(r, appsession.FlashSuccess, "Administrator updated", updated.Email)
	custommw.Redirect(w, r, h.adminBase+"/users")
}

// AdminDelete removes an administrator other than the signed-in one.
func (h *handlers) AdminDelete(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	actorID := ""
	if user, ok := custommw.CurrentUser(r.Context()); ok {
		actorID = user.ID
	}
	id := chi.URLParam(r, "id")
	err := h.adminService(ac).Delete(r.Context(), id, actorID)
	switch {
	case err == nil:
		flash(r, appsession.FlashSuccess, "Administrator deleted", "")
	case errors.Is(err, admin.ErrSelfDelete):
		flash(r, appsession.FlashError, "Could not delete administrator", "You cannot delete your own account.")
	default:
		if h.reauthenticate(w, r, err) {
			return
		}
		logger(r).Warn("admin delete failed", zap.String("admin_id", id), zap.Error(err))
		flash(r, appsession.FlashError, "Could not delete administrator", apiclient.Message(err))
	}
	custommw.Redirect(w, r, h.adminBase+"/users")
}
