package httpserver_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/testutil"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	resp := testutil.NewBrowser(t, ts).Get("/healthz")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "ok", string(resp.Body))
}

func TestHomeRendersFirstStep(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)

	resp := browser.Get("/")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.NotEmpty(t, browser.CSRFToken())

	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, "Create a page · Page Spark", doc.Find("title").First().Text())
	require.Equal(t, "1", testutil.WizardStep(doc))
	require.Equal(t, 4, doc.Find(".steps .step").Length())
	require.Equal(t, browser.CSRFToken(), doc.Find(`input[name="csrf_token"]`).AttrOr("value", ""))
}

func TestWizardRejectsMissingCSRFToken(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	resp := browser.HXPost("/wizard/next", url.Values{"csrf_token": {"forged"}, "occasion": {"birthday"}})
	require.Equal(t, http.StatusForbidden, resp.Status)
	require.Equal(t, "true", resp.Header.Get("HX-Refresh"))

	home := testutil.ParseHTML(t, browser.Get("/").Body)
	require.Equal(t, "1", testutil.WizardStep(home))
	require.Equal(t, []string{"Your form expired"}, testutil.Flashes(home, "error"))
}

func TestWizardValidationKeepsStep(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	resp := browser.HXPost("/wizard/next", url.Values{"occasion": {""}})
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, "1", testutil.WizardStep(doc))
	require.Equal(t, "Please select an occasion", testutil.FieldError(doc, "occasion"))
	require.NotContains(t, doc.Find(".error").Text(), "Valid email is required")

	full := browser.Post("/wizard/next", url.Values{"occasion": {""}})
	require.Equal(t, http.StatusUnprocessableEntity, full.Status)
	require.Equal(t, 1, testutil.ParseHTML(t, full.Body).Find(".site-header").Length())
}

func TestWizardDetailsStepRejectsBadEmail(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	step2 := browser.HXPost("/wizard/next", url.Values{"occasion": {"birthday"}})
	doc := testutil.ParseHTML(t, step2.Body)
	require.Equal(t, "2", testutil.WizardStep(doc))
	require.Equal(t, 1, doc.Find("#field-email").Length())

	values := detailAnswers()
	values.Set("email", "not-an-email")
	resp := browser.HXPost("/wizard/next", values)
	doc = testutil.ParseHTML(t, resp.Body)
	require.Equal(t, "2", testutil.WizardStep(doc))
	require.Equal(t, "Valid email is required", testutil.FieldError(doc, "email"))

	values.Set("email", " Ana@Example.COM ")
	resp = browser.HXPost("/wizard/next", values)
	require.Equal(t, "3", testutil.WizardStep(testutil.ParseHTML(t, resp.Body)))
}

func TestWizardPlainPostRedirects(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	resp := browser.Post("/wizard/next", url.Values{"occasion": {"birthday"}})
	require.Equal(t, http.StatusSeeOther, resp.Status)
	require.Equal(t, "/", resp.Location())

	home := testutil.ParseHTML(t, browser.Get("/").Body)
	require.Equal(t, "2", testutil.WizardStep(home))
}

func TestWizardWalkthroughWithPromptPreview(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	completeDetails(t, browser)

	release := backend.HoldPrompts()
	resp := browser.HXPost("/wizard/next", url.Values{"specific.birthday_person": {"Ana"}, "specific.age": {"5th"}})
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, "4", testutil.WizardStep(doc))
	panel := doc.Find("#prompt-panel")
	require.Equal(t, "/wizard/preview", panel.AttrOr("hx-get", ""))
	require.Equal(t, 1, panel.Find(".loading").Length())

	release()
	require.Eventually(t, func() bool {
		poll := browser.Fragment("/wizard/preview")
		if poll.Status != http.StatusOK {
			return false
		}
		p := testutil.ParseHTML(t, poll.Body).Find("#prompt-panel")
		_, polling := p.Attr("hx-get")
		return !polling && strings.Contains(p.Find(".prompt-preview").Text(), "joyful birthday page")
	}, 5*time.Second, 20*time.Millisecond)

	submit := browser.HXPost("/wizard/submit", url.Values{})
	require.Equal(t, http.StatusNoContent, submit.Status)
	require.Equal(t, "/result", submit.Location())

	gen := backend.LastGenerate()
	require.Equal(t, "Create a joyful birthday page for Ana.", gen.Prompt)
	require.Equal(t, "ana@example.com", gen.Email)
	require.Equal(t, "birthday", gen.PageType)
	require.Equal(t, "modern", gen.Theme)

	result := browser.Get("/result")
	require.Equal(t, http.StatusOK, result.Status)
	card := testutil.ParseHTML(t, result.Body)
	require.Equal(t, "https://pages.example.com/page-1", card.Find("#live-url").AttrOr("value", ""))
	require.Equal(t, []string{"Page generated successfully!"}, testutil.Flashes(card, "success"))

	reset := browser.Post("/result/reset", url.Values{})
	require.Equal(t, http.StatusSeeOther, reset.Status)
	require.Equal(t, "1", testutil.WizardStep(testutil.ParseHTML(t, browser.Get("/").Body)))
}

func TestWizardPreviewFragmentRequiresHTMX(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	require.Equal(t, http.StatusNotFound, browser.Get("/wizard/preview").Status)
}

func TestWizardEditedPromptIsSubmitted(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	completeDetails(t, browser)
	browser.HXPost("/wizard/next", url.Values{"specific.birthday_person": {"Ana"}})
	require.Eventually(t, func() bool {
		p := testutil.ParseHTML(t, browser.Fragment("/wizard/preview").Body).Find("#prompt-panel")
		_, polling := p.Attr("hx-get")
		return !polling
	}, 5*time.Second, 20*time.Millisecond)

	edit := browser.HXPost("/wizard/prompt/edit", url.Values{})
	require.Equal(t, 1, testutil.ParseHTML(t, edit.Body).Find(`textarea[name="generatedPrompt"]`).Length())

	submit := browser.HXPost("/wizard/submit", url.Values{"generatedPrompt": {"My own words\r\nsecond line"}})
	require.Equal(t, http.StatusNoContent, submit.Status)
	require.Equal(t, "My own words\nsecond line", backend.LastGenerate().Prompt)
}

func TestThreeStepWizardBuildsPromptLocally(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend, testutil.WithPromptPreview(false))
	browser := testutil.NewBrowser(t, ts)

	doc := testutil.ParseHTML(t, browser.Get("/").Body)
	require.Equal(t, 3, doc.Find(".steps .step").Length())

	completeDetails(t, browser)
	submit := browser.HXPost("/wizard/submit", url.Values{"specific.birthday_person": {"Ana"}})
	require.Equal(t, http.StatusNoContent, submit.Status)

	require.Zero(t, backend.Calls("POST /api/generate-prompt/"))
	prompt := backend.LastGenerate().Prompt
	require.Contains(t, prompt, "Ana")
	require.Contains(t, prompt, "Birthday")
}

func TestWizardSubmitShowsBackendFieldErrors(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	backend.FailGenerate(map[string][]string{"birthday_person": {"Name is too long"}})
	ts := testutil.NewServer(t, backend, testutil.WithPromptPreview(false))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/")

	completeDetails(t, browser)
	resp := browser.HXPost("/wizard/submit", url.Values{"specific.birthday_person": {"Ana"}})
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Contains(t, doc.Find(".error").Text(), "Name is too long")
	oob := doc.Find(`#flashes[hx-swap-oob="true"]`)
	require.Contains(t, oob.Text(), "Failed to generate page")
}

func TestQuickGenerator(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	require.Equal(t, http.StatusOK, browser.Get("/quick").Status)

	invalid := browser.Post("/quick", url.Values{"email": {"nobody"}})
	require.Equal(t, http.StatusUnprocessableEntity, invalid.Status)
	errs := testutil.ParseHTML(t, invalid.Body).Find(".error").Text()
	require.Contains(t, errs, "Please describe the page you want to create")
	require.Contains(t, errs, "Please enter a valid email address")

	resp := browser.Post("/quick", url.Values{
		"prompt":   {"A landing page for my bakery"},
		"email":    {"ana@example.com"},
		"pageType": {"landing"},
	})
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, "https://pages.example.com/page-1", doc.Find("#live-url").AttrOr("value", ""))
	require.Equal(t, "landing", backend.LastGenerate().PageType)
}

func TestHistoryAndPageDetail(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	backend.AddPage(apiclient.PageHistoryItem{
		ID:        "p-1",
		Email:     "ana@example.com",
		Prompt:    "Birthday party for Ana",
		PageType:  "birthday",
		LiveURL:   "https://pages.example.com/p-1",
		CreatedAt: "2026-03-01T10:00:00Z",
	})
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)

	resp := browser.Get("/history?email=" + url.QueryEscape(" ANA@example.com "))
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, 1, doc.Find("table.pages tbody tr").Length())
	require.Equal(t, "/pages/p-1", doc.Find("table.pages a").First().AttrOr("href", ""))

	empty := testutil.ParseHTML(t, browser.Get("/history?email=bob@example.com").Body)
	require.Contains(t, empty.Find(".empty").Text(), "No pages found for bob@example.com.")

	require.Equal(t, http.StatusUnprocessableEntity, browser.Get("/history?email=bob").Status)

	detail := browser.Get("/pages/p-1")
	require.Equal(t, http.StatusOK, detail.Status)
	require.Contains(t, string(detail.Body), "Birthday party for Ana")

	missing := browser.Get("/pages/nope")
	require.Equal(t, http.StatusNotFound, missing.Status)
	require.Equal(t, "404", testutil.ParseHTML(t, missing.Body).Find(".error-card").AttrOr("data-status", ""))
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	resp := testutil.NewBrowser(t, ts).Get("/does/not/exist")
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Equal(t, "Page not found", testutil.ParseHTML(t, resp.Body).Find("h1").First().Text())
}

func TestAdminRedirectsAnonymousToLogin(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)

	resp := browser.Get("/admin/users")
	require.Equal(t, http.StatusFound, resp.Status)
	require.Equal(t, "/admin/login?next=%2Fadmin%2Fusers", resp.Location())

	fragment := browser.Fragment("/admin/fragments/dashboard")
	require.Equal(t, http.StatusUnauthorized, fragment.Status)
	require.Equal(t, "/admin/login", fragment.Header.Get("HX-Redirect"))
}

func TestLoginFailureStaysOnForm(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/admin/login")

	resp := browser.Post("/admin/login", url.Values{"username": {testutil.AdminName}, "password": {"wrong-password"}})
	require.Equal(t, http.StatusUnauthorized, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Contains(t, testutil.Flashes(doc, "error"), "Login failed")
	require.Equal(t, testutil.AdminName, doc.Find(`input[name="username"]`).AttrOr("value", ""))

	missing := browser.Post("/admin/login", url.Values{})
	require.Equal(t, http.StatusUnprocessableEntity, missing.Status)
}

func TestAdminRoleCannotManageUsers(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	login(t, browser, testutil.AdminName, "/admin/users")

	resp := browser.Get("/admin/users")
	require.Equal(t, http.StatusForbidden, resp.Status)
	require.Equal(t, "Access Denied", testutil.ParseHTML(t, resp.Body).Find("h1").First().Text())

	dash := browser.Get("/admin/")
	require.Equal(t, http.StatusOK, dash.Status)
	doc := testutil.ParseHTML(t, dash.Body)
	require.Equal(t, 5, doc.Find(".stats .stat-value").Length())
	require.Contains(t, doc.Find(".stats").Text(), "1,280")
}

func TestDashboardFragment(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	login(t, browser, testutil.SuperAdminName, "")

	resp := browser.Fragment("/admin/fragments/dashboard")
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, 1, doc.Find("#overview").Length())
	require.Zero(t, doc.Find(".site-header").Length())

	backend.FailDashboard(true)
	failed := testutil.ParseHTML(t, browser.Fragment("/admin/fragments/dashboard").Body)
	require.Contains(t, failed.Find("#overview .banner").Text(), "Dashboard unavailable")

	require.Equal(t, http.StatusNotFound, browser.Get("/admin/fragments/dashboard").Status)
}

func TestSuperAdminManagesAdministrators(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	login(t, browser, testutil.SuperAdminName, "")

	list := testutil.ParseHTML(t, browser.Get("/admin/users").Body)
	require.Equal(t, 2, list.Find("tbody tr").Length())
	require.Zero(t, list.Find("#admin-"+testutil.SuperAdminID+` form[action$="/delete"]`).Length())
	require.Equal(t, 1, list.Find("#admin-"+testutil.AdminID+` form[action$="/delete"]`).Length())

	invalid := browser.Post("/admin/users", url.Values{
		"email":           {"new@example.com"},
		"password":        {"short"},
		"confirmPassword": {"other"},
		"role":            {"admin"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, invalid.Status)
	require.Contains(t, testutil.ParseHTML(t, invalid.Body).Find(".error").Text(), "Passwords do not match")

	created := browser.Post("/admin/users", url.Values{
		"email":           {" New@Example.com "},
		"password":        {testutil.Password},
		"confirmPassword": {testutil.Password},
		"role":            {"admin"},
	})
	require.Equal(t, http.StatusSeeOther, created.Status)
	require.Equal(t, "/admin/users", created.Location())

	list = testutil.ParseHTML(t, browser.Get("/admin/users").Body)
	require.Equal(t, 3, list.Find("tbody tr").Length())
	require.Contains(t, testutil.Flashes(list, "success"), "Administrator created")
	require.Contains(t, list.Find("tbody").Text(), "new@example.com")

	updated := browser.Post("/admin/users/"+testutil.AdminID, url.Values{
		"name":     {"Operations"},
		"role":     {"super_admin"},
		"isActive": {"false"},
	})
	require.Equal(t, http.StatusSeeOther, updated.Status)
	ops, ok := backend.Admin(testutil.AdminID)
	require.True(t, ok)
	require.Equal(t, "Operations", ops.Name)
	require.Equal(t, apiclient.RoleSuperAdmin, ops.Role)
	require.False(t, ops.IsActive)

	browser.Post("/admin/users/"+testutil.SuperAdminID+"/delete", url.Values{})
	_, ok = backend.Admin(testutil.SuperAdminID)
	require.True(t, ok)
	flashes := testutil.ParseHTML(t, browser.Get("/admin/users").Body).Find(".flash-error").Text()
	require.Contains(t, flashes, "You cannot delete your own account.")
	require.Zero(t, backend.Calls("DELETE /api/admin/users/"+testutil.SuperAdminID+"/"))

	deleted := browser.Post("/admin/users/"+testutil.AdminID+"/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, deleted.Status)
	_, ok = backend.Admin(testutil.AdminID)
	require.False(t, ok)
}

func TestUpdatingOwnAccountRefreshesHeader(t *testing.T) {
	t.Parallel()

	backend := testutil.NewBackend(t)
	ts := testutil.NewServer(t, backend)
	browser := testutil.NewBrowser(t, ts)
	login(t, browser, testutil.SuperAdminName, "")

	browser.Post("/admin/users/"+testutil.SuperAdminID, url.Values{"name": {"Head Root"}, "role": {"super_admin"}, "isActive": {"true"}})
	doc := testutil.ParseHTML(t, browser.Get("/admin/").Body)
	require.Contains(t, doc.Find(".site-header").Text(), "Head Root")
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	login(t, browser, testutil.AdminName, "")

	resp := browser.Post("/admin/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.Status)
	require.Equal(t, "/admin/login", resp.Location())

	again := browser.Get("/admin/")
	require.Equal(t, http.StatusFound, again.Status)
}

func TestRegisterPasswordStrengthFragment(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/admin/register")

	resp := browser.HXPost("/admin/register/strength", url.Values{"password": {"Secret123!"}})
	require.Equal(t, http.StatusOK, resp.Status)
	doc := testutil.ParseHTML(t, resp.Body)
	require.Equal(t, 1, doc.Find("#password-strength .meter").Length())

	require.Equal(t, http.StatusNotFound, browser.Post("/admin/register/strength", url.Values{"password": {"x"}}).Status)
}

func TestRegisterSignsIn(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.NewBackend(t))
	browser := testutil.NewBrowser(t, ts)
	browser.Get("/admin/register")

	taken := browser.Post("/admin/register", url.Values{
		"username":        {testutil.AdminName},
		"name":            {"Someone"},
		"email":           {"someone@example.com"},
		"password":        {testutil.Password},
		"confirmPassword": {testutil.Password},
	})
	require.Equal(t, http.StatusUnprocessableEntity, taken.Status)
	require.Contains(t, testutil.ParseHTML(t, taken.Body).Find(".error").Text(), "already exists")

	resp := browser.Post("/admin/register", url.Values{
		"username":        {"newbie"},
		"name":            {"New Bie"},
		"email":           {"newbie@example.com"},
		"password":        {testutil.Password},
		"confirmPassword": {testutil.Password},
	})
	require.Equal(t, http.StatusSeeOther, resp.Status)
	require.Equal(t, http.StatusOK, browser.Get("/admin/").Status)
}

func completeDetails(t *testing.T, browser *testutil.Browser) {
	t.Helper()

	step2 := browser.HXPost("/wizard/next", url.Values{"occasion": {"birthday"}})
	require.Equal(t, "2", testutil.WizardStep(testutil.ParseHTML(t, step2.Body)))

	step3 := browser.HXPost("/wizard/next", detailAnswers())
	doc := testutil.ParseHTML(t, step3.Body)
	require.Equal(t, "3", testutil.WizardStep(doc))
	require.Equal(t, "Birthday details", doc.Find("#wizard h2").First().Text())
}

func detailAnswers() url.Values {
	return url.Values{
		"email":              {"ana@example.com"},
		"common.title":       {"Ana turns five"},
		"common.names":       {"Ana"},
		"common.description": {"Join us for cake"},
		"common.date":        {"2026-05-01"},
		"common.location":    {"Central Park"},
		"common.contact":     {"ana@example.com"},
		"theme":              {"modern"},
	}
}

func login(t *testing.T, browser *testutil.Browser, username, next string) {
	t.Helper()

	browser.Get("/admin/login")
	resp := browser.Post("/admin/login", url.Values{
		"username":   {username},
		"password":   {testutil.Password},
		"rememberMe": {"true"},
		"next":       {next},
	})
	require.Equal(t, http.StatusSeeOther, resp.Status)
	if next != "" {
		require.Equal(t, next, resp.Location())
	}
}
