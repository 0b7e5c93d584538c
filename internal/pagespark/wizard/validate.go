package wizard

import "finitefield.org/page-spark/internal/pagespark/forms"

// ValidEmail reports whether s looks like an address: something@something.something
// with no whitespace or extra @.
func ValidEmail(s string) bool {
	return forms.ValidEmail(s)
}

// Validate checks the fields owned by step and returns every failure. An empty
// result means the step is complete. It never mutates f.
//
// The preview step re-checks the occasion-specific answers it summarises.
func Validate(step Step, f Form) Errors {
	errs := Errors{}
	switch step {
	case StepOccasion:
		if !f.Occasion.Valid() {
			errs[FieldOccasion] = "Please select an occasion"
		}
	case StepDetails:
		if f.Email == "" || !ValidEmail(f.Email) {
			errs[FieldEmail] = "Valid email is required"
		}
		for _, field := range commonFields {
			if field.Required && f.Common[field.ID] == "" {
				errs[field.ID] = field.Label + " is required"
			}
		}
		if f.Theme == "" {
			errs[FieldTheme] = "Please select a theme"
		}
	case StepSpecifics, StepPreview:
		for _, field := range f.Occasion.Fields() {
			if field.Required && f.Specific[field.ID] == "" {
				errs[field.ID] = field.Label + " is required"
			}
		}
	}
	return errs
}
