package wizard

// FieldKind is the input control a field renders as.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindDate     FieldKind = "date"
	KindTime     FieldKind = "time"
	KindTextArea FieldKind = "textarea"
	KindSelect   FieldKind = "select"
)

// Field is a static field definition.
type Field struct {
	ID          string
	Label       string
	Kind        FieldKind
	Options     []string
	Placeholder string
	Required    bool
}

// Choice is a value/label pair for enumerated preferences.
type Choice struct {
	Value string
	Label string
}

// Common field identifiers.
const (
	FieldTitle       = "title"
	FieldNames       = "names"
	FieldDescription = "description"
	FieldDate        = "date"
	FieldTime        = "time"
	FieldLocation    = "location"
	FieldContact     = "contact"
)

// Top-level field identifiers that carry errors.
const (
	FieldOccasion = "occasion"
	FieldEmail    = "email"
	FieldTheme    = "theme"
)

var commonFields = []Field{
	{ID: FieldTitle, Label: "Page Title", Kind: KindText, Placeholder: "e.g., Sarah's 5th Birthday", Required: true},
	{ID: FieldNames, Label: "Name(s)", Kind: KindText, Placeholder: "Person / Couple / Company Name", Required: true},
	{ID: FieldDescription, Label: "Short Message / Description", Kind: KindTextArea, Placeholder: "A brief welcome message...", Required: true},
	{ID: FieldDate, Label: "Date", Kind: KindDate, Required: true},
	{ID: FieldTime, Label: "Time", Kind: KindTime},
	{ID: FieldLocation, Label: "Location / Venue", Kind: KindText, Placeholder: "Venue Name & Address", Required: true},
	{ID: FieldContact, Label: "Contact / RSVP Info", Kind: KindText, Placeholder: "Phone or Email", Required: true},
}

// CommonFields returns the occasion-independent detail fields in display order.
func CommonFields() []Field {
	return append([]Field(nil), commonFields...)
}

func commonField(id string) (Field, bool) {
	for _, f := range commonFields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Design preference defaults.
const (
	DefaultFont     = "sans"
	DefaultLanguage = "english"
)

var (
	themes = []Choice{
		{Value: "minimal", Label: "Minimal"},
		{Value: "modern", Label: "Modern"},
		{Value: "elegant", Label: "Elegant"},
		{Value: "traditional", Label: "Traditional"},
		{Value: "fun", Label: "Fun / Colorful"},
	}
	fonts = []Choice{
		{Value: "serif", Label: "Serif (Classic)"},
		{Value: "sans", Label: "Sans (Clean)"},
		{Value: "handwritten", Label: "Handwritten (Playful)"},
	}
	languages = []Choice{
		{Value: "english", Label: "English"},
		{Value: "telugu", Label: "Telugu"},
		{Value: "mixed", Label: "Mixed (English + Telugu)"},
	}
)

// Themes lists the selectable themes.
func Themes() []Choice { return append([]Choice(nil), themes...) }

// Fonts lists the selectable font styles.
func Fonts() []Choice { return append([]Choice(nil), fonts...) }

// Languages lists the selectable page languages.
func Languages() []Choice { return append([]Choice(nil), languages...) }

func validChoice(choices []Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}
