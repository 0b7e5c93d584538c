package views

import (
	"html/template"

	"finitefield.org/page-spark/internal/pagespark/admin"
	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/forms"
	"finitefield.org/page-spark/internal/pagespark/session"
	"finitefield.org/page-spark/internal/pagespark/wizard"
)

// Layout is the chrome shared by every full page.
type Layout struct {
	Title       string
	AppName     string
	Description string
	Version     string
	CSRFToken   string
	Flashes     []session.Flash
	User        *apiclient.User
	AdminBase   string
	Analytics   bool
	DebugMode   bool
	// Fragment is set for htmx partial responses; flashes are then swapped out of band.
	Fragment bool
}

// Option is a select/radio entry.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// FieldView is one rendered wizard input.
type FieldView struct {
	Name        string
	ID          string
	Label       string
	Kind        string
	Value       string
	Placeholder string
	Required    bool
	Options     []Option
	Error       string
}

// StepView is one entry of the progress indicator.
type StepView struct {
	Number  int
	Label   string
	Current bool
	Done    bool
}

// WizardPage renders the structured generator.
type WizardPage struct {
	Layout
	Step          int
	LastStep      int
	Steps         []StepView
	Occasions     []Option
	OccasionError string
	Email         string
	EmailError    string
	Common        []FieldView
	Themes        []Option
	ThemeError    string
	Fonts         []Option
	Languages     []Option
	OccasionLabel string
	Specific      []FieldView
	Prompt        PromptView
	Submitting    bool
	FormErrors    int
}

// PromptView is the preview step's prompt panel.
type PromptView struct {
	Text    string
	HTML    template.HTML
	Pending bool
	Editing bool
}

// QuickPage renders the single-prompt generator.
type QuickPage struct {
	Layout
	Form      forms.QuickPage
	Errors    forms.Errors
	PageTypes []Option
	Themes    []Option
}

// ResultPage renders the result card.
type ResultPage struct {
	Layout
	Result    *apiclient.GeneratePageResponse
	CreatedAt string
}

// HistoryRow is one generated page.
type HistoryRow struct {
	ID       string
	Prompt   string
	PageType string
	Link     string
	Created  string
	Views    string
}

// HistoryPage lists pages generated for an email.
type HistoryPage struct {
	Layout
	Email string
	Rows  []HistoryRow
	Error string
	Asked bool
}

// PageDetail shows a single page.
type PageDetail struct {
	Layout
	Page    apiclient.PageHistoryItem
	Created string
	Views   string
}

// LoginPage renders the sign-in form.
type LoginPage struct {
	Layout
	Form   forms.Login
	Errors forms.Errors
	Banner string
}

// RegisterPage renders the sign-up form.
type RegisterPage struct {
	Layout
	Form     forms.Register
	Errors   forms.Errors
	Banner   string
	Strength *forms.Strength
}

// StatCard is one dashboard counter.
type StatCard struct {
	Label string
	Value string
	Hint  string
}

// DashboardPage renders the admin overview.
type DashboardPage struct {
	Layout
	Stats    []StatCard
	Popular  []admin.PopularType
	Recent   []HistoryRow
	Loaded   string
	Error    string
	Admins   int
	AdminErr string
}

// AdminRow is one administrator in the list.
type AdminRow struct {
	ID        string
	Email     string
	Name      string
	Role      string
	Active    bool
	Created   string
	LastLogin string
	Self      bool
}

// AdminsPage lists and edits administrators.
type AdminsPage struct {
	Layout
	Admins []AdminRow
	Error  string
	Roles  []Option
}

// CreateAdminPage renders the create-admin form.
type CreateAdminPage struct {
	Layout
	Form    forms.CreateAdmin
	Errors  forms.Errors
	Banner  string
	Roles   []Option
	Created *apiclient.AdminUser
}

// ErrorPage renders an error screen such as Access Denied.
type ErrorPage struct {
	Layout
	Status  int
	Heading string
	Message string
	Back    string
}

// ChoicesFromWizard converts wizard choices to options, marking selected.
func ChoicesFromWizard(choices []wizard.Choice, selected string) []Option {
	out := make([]Option, 0, len(choices))
	for _, c := range choices {
		out = append(out, Option{Value: c.Value, Label: c.Label, Selected: c.Value == selected})
	}
	return out
}

// ChoicesFromForms converts form choices to options, marking selected.
func ChoicesFromForms(choices []forms.Choice, selected string) []Option {
	out := make([]Option, 0, len(choices))
	for _, c := range choices {
		out = append(out, Option{Value: c.Value, Label: c.Label, Selected: c.Value == selected})
	}
	return out
}
