package views

import (
	"finitefield.org/page-spark/internal/pagespark/wizard"
)

// Form field name prefixes used by the wizard inputs.
const (
	CommonPrefix   = "common."
	SpecificPrefix = "specific."
)

// NewWizardPage projects a controller snapshot into template data.
func NewWizardPage(layout Layout, v wizard.View) WizardPage {
	page := WizardPage{
		Layout:        layout,
		Step:          int(v.Step),
		LastStep:      int(v.LastStep),
		OccasionError: v.Errors[wizard.FieldOccasion],
		Email:         v.Form.Email,
		EmailError:    v.Errors[wizard.FieldEmail],
		Themes:        ChoicesFromWizard(wizard.Themes(), v.Form.Theme),
		ThemeError:    v.Errors[wizard.FieldTheme],
		Fonts:         ChoicesFromWizard(wizard.Fonts(), v.Form.Font),
		Languages:     ChoicesFromWizard(wizard.Languages(), v.Form.Language),
		OccasionLabel: v.Form.Occasion.Label(),
		Submitting:    v.Submitting,
		FormErrors:    len(v.Errors),
		Prompt: PromptView{
			Text:    v.Form.GeneratedPrompt,
			Pending: v.PromptPending,
			Editing: v.PromptEditing,
		},
	}
	if !v.PromptPending && v.Form.GeneratedPrompt != "" {
		page.Prompt.HTML = RenderMarkdown(v.Form.GeneratedPrompt)
	}

	for s := wizard.StepOccasion; s <= v.LastStep; s++ {
		page.Steps = append(page.Steps, StepView{
			Number:  int(s),
			Label:   s.Label(),
			Current: s == v.Step,
			Done:    s < v.Step,
		})
	}
	for _, o := range wizard.Occasions() {
		page.Occasions = append(page.Occasions, Option{
			Value:    o.String(),
			Label:    o.Label(),
			Selected: o == v.Form.Occasion,
		})
	}
	for _, f := range wizard.CommonFields() {
		page.Common = append(page.Common, fieldView(CommonPrefix, f, v.Form.Common[f.ID], v.Errors[f.ID]))
	}
	for _, f := range v.Form.Occasion.Fields() {
		page.Specific = append(page.Specific, fieldView(SpecificPrefix, f, v.Form.Specific[f.ID], v.Errors[f.ID]))
	}
	return page
}

func fieldView(prefix string, f wizard.Field, value, errMsg string) FieldView {
	fv := FieldView{
		Name:        prefix + f.ID,
		ID:          "field-" + f.ID,
		Label:       f.Label,
		Kind:        string(f.Kind),
		Value:       value,
		Placeholder: f.Placeholder,
		Required:    f.Required,
		Error:       errMsg,
	}
	for _, opt := range f.Options {
		fv.Options = append(fv.Options, Option{Value: opt, Label: opt, Selected: opt == value})
	}
	return fv
}
