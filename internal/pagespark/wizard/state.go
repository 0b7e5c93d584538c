package wizard

import (
	"errors"
	"maps"
)

var (
	// ErrUnknownOccasion is returned when an occasion value is not in the catalogue.
	ErrUnknownOccasion = errors.New("wizard: unknown occasion")
	// ErrUnknownField is returned when a field id does not belong to the targeted collection.
	ErrUnknownField = errors.New("wizard: unknown field")
	// ErrInvalidChoice is returned when a theme, font or language value is not selectable.
	ErrInvalidChoice = errors.New("wizard: invalid choice")
	// ErrNotLastStep is returned by Submit before the final step is reached.
	ErrNotLastStep = errors.New("wizard: submit is only allowed from the last step")
	// ErrBusy is returned by Submit while a previous submission is still running.
	ErrBusy = errors.New("wizard: submission already in progress")
)

// Step is a 1-based wizard position.
type Step int

const (
	StepOccasion  Step = 1
	StepDetails   Step = 2
	StepSpecifics Step = 3
	StepPreview   Step = 4
)

var stepLabels = map[Step]string{
	StepOccasion:  "Occasion",
	StepDetails:   "Details",
	StepSpecifics: "Specifics",
	StepPreview:   "Preview",
}

// Label returns the progress indicator label.
func (s Step) Label() string {
	return stepLabels[s]
}

// Errors maps field ids to a single message.
type Errors map[string]string

// Clone returns an independent copy.
func (e Errors) Clone() Errors {
	if e == nil {
		return Errors{}
	}
	return maps.Clone(e)
}

// Form holds every answer collected by the wizard.
type Form struct {
	Occasion        Occasion
	Email           string
	Common          map[string]string
	Theme           string
	Font            string
	Language        string
	Specific        map[string]string
	GeneratedPrompt string
}

// NewForm returns an empty form with the default font and language.
func NewForm() Form {
	return Form{
		Common:   map[string]string{},
		Font:     DefaultFont,
		Language: DefaultLanguage,
		Specific: map[string]string{},
	}
}

// Clone returns a deep copy.
func (f Form) Clone() Form {
	out := f
	out.Common = maps.Clone(f.Common)
	out.Specific = maps.Clone(f.Specific)
	if out.Common == nil {
		out.Common = map[string]string{}
	}
	if out.Specific == nil {
		out.Specific = map[string]string{}
	}
	return out
}

// Payload returns the structured answers in the shape the backend expects
// for both prompt generation and the user_data of a generate request.
// Specific fields that do not belong to the selected occasion are dropped.
func (f Form) Payload() map[string]any {
	out := map[string]any{
		"occasion": f.Occasion.String(),
		"email":    f.Email,
		"theme":    f.Theme,
		"font":     f.Font,
		"language": f.Language,
	}
	for _, field := range commonFields {
		out[field.ID] = f.Common[field.ID]
	}
	specific := map[string]string{}
	for _, field := range f.Occasion.Fields() {
		if v := f.Specific[field.ID]; v != "" {
			specific[field.ID] = v
		}
	}
	out["specific_fields"] = specific
	return out
}
