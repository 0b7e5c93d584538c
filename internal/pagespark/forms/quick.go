package forms

import (
	"net/url"
	"strings"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

// Choice is a selectable option.
type Choice struct {
	Value string
	Label string
}

var (
	quickPageTypes = []Choice{
		{Value: "birthday", Label: "Birthday Invitation"},
		{Value: "event", Label: "Event Page"},
		{Value: "landing", Label: "Landing Page"},
		{Value: "portfolio", Label: "Portfolio"},
		{Value: "announcement", Label: "Announcement"},
		{Value: "other", Label: "Other"},
	}
	quickThemes = []Choice{
		{Value: "light", Label: "Light & Clean"},
		{Value: "dark", Label: "Dark & Bold"},
		{Value: "colorful", Label: "Colorful & Fun"},
		{Value: "modern", Label: "Modern & Minimal"},
		{Value: "elegant", Label: "Elegant & Classic"},
	}
)

// QuickPageTypes lists the optional page types of the single-prompt generator.
func QuickPageTypes() []Choice { return append([]Choice(nil), quickPageTypes...) }

// QuickThemes lists the optional themes of the single-prompt generator.
func QuickThemes() []Choice { return append([]Choice(nil), quickThemes...) }

func knownChoice(choices []Choice, v string) bool {
	for _, c := range choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// QuickPage is the single free-text generator form.
type QuickPage struct {
	Prompt   string
	Email    string
	PageType string
	Theme    string
}

// QuickPageFromValues reads a posted quick generator form.
func QuickPageFromValues(v url.Values) QuickPage {
	return QuickPage{
		Prompt:   strings.TrimSpace(v.Get("prompt")),
		Email:    strings.TrimSpace(v.Get("email")),
		PageType: strings.TrimSpace(v.Get("pageType")),
		Theme:    strings.TrimSpace(v.Get("theme")),
	}
}

// Validate requires a description and a valid email. Unknown page types and
// themes are rejected.
func (f QuickPage) Validate() Errors {
	errs := Errors{}
	if f.Prompt == "" {
		errs.add("prompt", "Please describe the page you want to create")
	}
	checkEmail(errs, "email", f.Email, "Please enter a valid email address")
	if f.PageType != "" && !knownChoice(quickPageTypes, f.PageType) {
		errs.add("pageType", "Please select a page type")
	}
	if f.Theme != "" && !knownChoice(quickThemes, f.Theme) {
		errs.add("theme", "Please select a theme")
	}
	return errs
}

// Request returns the generate payload.
func (f QuickPage) Request() apiclient.GeneratePageRequest {
	return apiclient.GeneratePageRequest{
		Prompt:   f.Prompt,
		Email:    f.Email,
		PageType: f.PageType,
		Theme:    f.Theme,
	}
}
