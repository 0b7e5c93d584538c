package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/forms"
	custommw "finitefield.org/page-spark/internal/pagespark/httpserver/middleware"
	appsession "finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/views"
	"finitefield.org/page-spark/internal/pagespark/wizard"
)

var errNoSession = errors.New("httpserver: request has no session")

// controller returns the wizard bound to the visitor's session, starting one when needed.
func (h *handlers) controller(r *http.Request) (*wizard.Controller, error) {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok {
		return nil, errNoSession
	}
	id, ctrl, created := h.drafts.Ensure(sess.DraftID())
	if created {
		sess.SetDraftID(id)
	}
	return ctrl, nil
}

func (h *handlers) wizardPage(r *http.Request, ctrl *wizard.Controller) views.WizardPage {
	return views.NewWizardPage(h.layout(r, "Create a page"), ctrl.Snapshot())
}

// respondWizard re-renders the panel for htmx, or the full page otherwise.
func (h *handlers) respondWizard(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller, status int) {
	if custommw.IsHTMXRequest(r.Context()) {
		render(w, r, http.StatusOK, views.WizardPanel(h.wizardPage(r, ctrl)))
		return
	}
	if status == http.StatusOK {
		// Post/redirect/get keeps refreshes from re-posting a step.
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	render(w, r, status, views.Wizard(h.wizardPage(r, ctrl)))
}

// applyAnswers copies posted wizard inputs onto the controller. Only changed
// values are applied so untouched fields keep their inline errors.
func applyAnswers(ctrl *wizard.Controller, form url.Values) error {
	current := ctrl.Form()
	var errs []error
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch {
		case key == wizard.FieldOccasion:
			o := wizard.OccasionNone
			if value != "" {
				parsed, err := wizard.ParseOccasion(value)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				o = parsed
			}
			if o != current.Occasion {
				errs = append(errs, ctrl.SetOccasion(o))
			}
		case key == wizard.FieldEmail:
			if forms.NormalizeEmail(value) != current.Email {
				ctrl.SetEmail(value)
			}
		case key == wizard.FieldTheme:
			if value != current.Theme {
				errs = append(errs, ctrl.SetTheme(value))
			}
		case key == "font":
			if value != current.Font {
				errs = append(errs, ctrl.SetFont(value))
			}
		case key == "language":
			if value != current.Language {
				errs = append(errs, ctrl.SetLanguage(value))
			}
		case key == "generatedPrompt":
			value = strings.ReplaceAll(value, "\r\n", "\n")
			if value != current.GeneratedPrompt {
				ctrl.SetGeneratedPrompt(value)
			}
		case strings.HasPrefix(key, views.CommonPrefix):
			id := strings.TrimPrefix(key, views.CommonPrefix)
			if value != current.Common[id] {
				errs = append(errs, ctrl.SetCommonField(id, value))
			}
		case strings.HasPrefix(key, views.SpecificPrefix):
			id := strings.TrimPrefix(key, views.SpecificPrefix)
			if value != current.Specific[id] {
				errs = append(errs, ctrl.SetSpecificField(id, value))
			}
		}
	}
	return errors.Join(errs...)
}

// withWizard resolves the controller and applies posted answers before fn runs.
func (h *handlers) withWizard(apply bool, fn func(http.ResponseWriter, *http.Request, *wizard.Controller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := h.controller(r)
		if err != nil {
			logger(r).Error("wizard unavailable", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if apply {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "invalid form submission", http.StatusBadRequest)
				return
			}
			if err := applyAnswers(ctrl, r.PostForm); err != nil {
				logger(r).Info("rejected wizard input", zap.Error(err))
				http.Error(w, "invalid form submission", http.StatusBadRequest)
				return
			}
		}
		fn(w, r, ctrl)
	}
}

// Home renders the wizard, or the result card once a page was generated.
func (h *handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		if res := ctrl.Result(); res != nil {
			h.renderResult(w, r, res)
			return
		}
		render(w, r, http.StatusOK, views.Wizard(h.wizardPage(r, ctrl)))
	})(w, r)
}

// WizardNext validates the current step and advances.
func (h *handlers) WizardNext(w http.ResponseWriter, r *http.Request) {
	h.withWizard(true, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		if _, ok := ctrl.Next(r.Context()); !ok {
			h.respondWizard(w, r, ctrl, http.StatusUnprocessableEntity)
			return
		}
		h.respondWizard(w, r, ctrl, http.StatusOK)
	})(w, r)
}

// WizardBack returns to the previous step.
func (h *handlers) WizardBack(w http.ResponseWriter, r *http.Request) {
	h.withWizard(true, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		ctrl.Back()
		h.respondWizard(w, r, ctrl, http.StatusOK)
	})(w, r)
}

// WizardReset clears every answer.
func (h *handlers) WizardReset(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		ctrl.Reset()
		h.respondWizard(w, r, ctrl, http.StatusOK)
	})(w, r)
}

// WizardSubmit generates the page from the collected answers.
func (h *handlers) WizardSubmit(w http.ResponseWriter, r *http.Request) {
	h.withWizard(true, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		sub, err := ctrl.Submit(r.Context())
		var validation *wizard.ValidationError
		switch {
		case err == nil && sub.Response != nil:
			flash(r, appsession.FlashSuccess, "Page generated successfully!", "Your page is live at "+sub.Response.LiveURL)
			if sess, ok := custommw.SessionFromContext(r.Context()); ok {
				sess.SetLastLiveURL(sub.Response.LiveURL)
			}
			custommw.Redirect(w, r, "/result")
		case err == nil:
			logger(r).Error("wizard has no page generator")
			h.respondWizard(w, r, ctrl, http.StatusInternalServerError)
		case errors.As(err, &validation):
			h.respondWizard(w, r, ctrl, http.StatusUnprocessableEntity)
		case errors.Is(err, wizard.ErrNotLastStep):
			h.respondWizard(w, r, ctrl, http.StatusConflict)
		case errors.Is(err, wizard.ErrBusy):
			flash(r, appsession.FlashInfo, "Your page is already being generated", "")
			h.respondWizard(w, r, ctrl, http.StatusConflict)
		default:
			if reqErr, ok := apiclient.AsRequestError(err); ok {
				flash(r, appsession.FlashError, "Failed to generate page", reqErr.Message)
			} else {
				flash(r, appsession.FlashError, "An error occurred", "Please make sure the backend is running and try again.")
			}
			h.respondWizard(w, r, ctrl, http.StatusBadGateway)
		}
	})(w, r)
}

func (h *handlers) respondPrompt(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
	if !custommw.IsHTMXRequest(r.Context()) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, views.PromptPanel(h.wizardPage(r, ctrl)))
}

// PromptPreview is polled while the backend drafts the prompt.
func (h *handlers) PromptPreview(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, h.respondPrompt)(w, r)
}

// PromptEdit toggles the editable prompt, keeping any text already typed.
func (h *handlers) PromptEdit(w http.ResponseWriter, r *http.Request) {
	h.withWizard(true, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		ctrl.TogglePromptEditing()
		h.respondPrompt(w, r, ctrl)
	})(w, r)
}

// PromptRegenerate asks the backend for a fresh prompt.
func (h *handlers) PromptRegenerate(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		ctrl.RegeneratePrompt(r.Context())
		h.respondPrompt(w, r, ctrl)
	})(w, r)
}

// Result renders the latest generated page for this visitor.
func (h *handlers) Result(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		res := ctrl.Result()
		if res == nil {
			if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess.LastLiveURL() != "" {
				res = &apiclient.GeneratePageResponse{LiveURL: sess.LastLiveURL()}
			}
		}
		if res == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.renderResult(w, r, res)
	})(w, r)
}

// ResultReset starts a new page.
func (h *handlers) ResultReset(w http.ResponseWriter, r *http.Request) {
	h.withWizard(false, func(w http.ResponseWriter, r *http.Request, ctrl *wizard.Controller) {
		ctrl.Reset()
		custommw.Redirect(w, r, "/")
	})(w, r)
}

func (h *handlers) renderResult(w http.ResponseWriter, r *http.Request, res *apiclient.GeneratePageResponse) {
	render(w, r, http.StatusOK, views.Result(views.ResultPage{
		Layout:    h.layout(r, "Your page is live"),
		Result:    res,
		CreatedAt: views.Timestamp(res.CreatedAt),
	}))
}
