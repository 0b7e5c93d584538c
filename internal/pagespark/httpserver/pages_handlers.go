package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	"finitefield.org/page-spark/internal/pagespark/forms"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/views"
)

func (h *handlers) quickPage(r *http.Request, form forms.QuickPage, errs forms.Errors) views.QuickPage {
	return views.QuickPage{
		Layout:    h.layout(r, "Quick prompt"),
		Form:      form,
		Errors:    errs,
		PageTypes: views.ChoicesFromForms(forms.QuickPageTypes(), form.PageType),
		Themes:    views.ChoicesFromForms(forms.QuickThemes(), form.Theme),
	}
}

// QuickForm renders the single-prompt generator.
func (h *handlers) QuickForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.Quick(h.quickPage(r, forms.QuickPage{}, nil)))
}

// QuickSubmit generates a page from a free-form description.
func (h *handlers) QuickSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := forms.QuickPageFromValues(r.PostForm)
	if errs := form.Validate(); len(errs) > 0 {
		render(w, r, http.StatusUnprocessableEntity, views.Quick(h.quickPage(r, form, errs)))
		return
	}

	resp, err := h.client.Pages().Generate(r.Context(), form.Request())
	if err != nil {
		logger(r).Warn("quick generation failed", zap.Error(err))
		errs := forms.Errors{}
		status := http.StatusBadGateway
		if reqErr, ok := apiclient.AsRequestError(err); ok {
			for field, msg := range reqErr.FieldErrors() {
				errs[field] = msg
			}
			if len(errs) > 0 {
				status = http.StatusUnprocessableEntity
			}
			flash(r, appsession.FlashError, "Failed to generate page", reqErr.Message)
		} else {
			flash(r, appsession.FlashError, "An error occurred", "Please make sure the backend is running and try again.")
		}
		render(w, r, status, views.Quick(h.quickPage(r, form, errs)))
		return
	}

	flash(r, appsession.FlashSuccess, "Page generated successfully!", "Your page is live at "+resp.LiveURL)
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetLastLiveURL(resp.LiveURL)
	}
	h.renderResult(w, r, resp)
}

// History lists pages generated for the email in the query string.
func (h *handlers) History(w http.ResponseWriter, r *http.Request) {
	email := forms.NormalizeEmail(r.URL.Query().Get("email"))
	page := views.HistoryPage{Email: email, Asked: email != ""}

	status := http.StatusOK
	switch {
	case email == "":
	case !forms.ValidEmail(email):
		page.Error = "Please enter a valid email address"
		status = http.StatusUnprocessableEntity
	default:
		items, err := h.client.Pages().History(r.Context(), email)
		if err != nil {
			logger(r).Warn("history load failed", zap.Error(err))
			page.Error = apiclient.Message(err)
			status = http.StatusBadGateway
			break
		}
		for _, item := range items {
			page.Rows = append(page.Rows, historyRow(item))
		}
	}
	page.Layout = h.layout(r, "History")
	render(w, r, status, views.History(page))
}

// PageDetail shows a single generated page.
func (h *handlers) PageDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	item, err := h.client.Pages().ByID(r.Context(), id)
	if err != nil {
		if reqErr, ok := apiclient.AsRequestError(err); ok && reqErr.Status == http.StatusNotFound {
			h.NotFound(w, r)
			return
		}
		logger(r).Warn("page load failed", zap.String("page_id", id), zap.Error(err))
		h.renderError(w, r, http.StatusBadGateway, "Something went wrong", apiclient.Message(err))
		return
	}
	render(w, r, http.StatusOK, views.Page(views.PageDetail{
		Layout:  h.layout(r, "Page "+item.ID),
		Page:    *item,
		Created: views.Timestamp(item.CreatedAt),
		Views:   views.Count(item.Views),
	}))
}

func historyRow(item apiclient.PageHistoryItem) views.HistoryRow {
	return views.HistoryRow{
		ID:       item.ID,
		Prompt:   item.Prompt,
		PageType: item.PageType,
		Link:     item.Link(),
		Created:  views.Timestamp(item.CreatedAt),
		Views:    views.Count(item.Views),
	}
}
