package wizard

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fontDescriptions = map[string]string{
	"serif":       "Classic serif",
	"sans":        "Clean sans-serif",
	"handwritten": "Playful handwritten",
}

// promptExcluded lists common fields already stated in the prompt header.
var promptExcluded = map[string]bool{FieldTitle: true}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// BuildPrompt assembles the generation prompt locally from the answers in f.
func BuildPrompt(f Form) string {
	font := fontDescriptions[f.Font]
	if font == "" {
		font = fontDescriptions[DefaultFont]
	}
	lang := f.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	var b strings.Builder
	b.WriteString("You are an expert web designer and front-end developer. ")
	b.WriteString("Create a complete, beautiful single-page website for the occasion described below.\n\n")

	fmt.Fprintf(&b, "Occasion: %s\n", titleCase(f.Occasion.String()))
	fmt.Fprintf(&b, "Title: %s\n", f.Common[FieldTitle])
	fmt.Fprintf(&b, "Theme: %s\n", f.Theme)
	fmt.Fprintf(&b, "Font style: %s\n", font)
	fmt.Fprintf(&b, "Language: %s\n", titleCase(lang))

	var details []string
	for _, field := range commonFields {
		if promptExcluded[field.ID] {
			continue
		}
		if v := f.Common[field.ID]; v != "" {
			details = append(details, fmt.Sprintf("- %s: %s", field.Label, v))
		}
	}
	if len(details) > 0 {
		b.WriteString("\nEvent details:\n")
		b.WriteString(strings.Join(details, "\n"))
		b.WriteString("\n")
	}

	var specifics []string
	for _, field := range f.Occasion.Fields() {
		if v := f.Specific[field.ID]; v != "" {
			specifics = append(specifics, fmt.Sprintf("- %s: %s", field.Label, v))
		}
	}
	if len(specifics) > 0 {
		fmt.Fprintf(&b, "\n%s details:\n", f.Occasion.Label())
		b.WriteString(strings.Join(specifics, "\n"))
		b.WriteString("\n")
	}

	b.WriteString(`
Page structure:
1. Hero section with the title and the main names
2. Event information (date, time, venue) when provided
3. The main message or description
4. Sections for the occasion-specific details above
5. Contact / RSVP section
6. Simple footer

Styling:
- Apply the chosen theme consistently across colours, spacing and decoration
- Use the chosen font style for headings and body text
- Mobile-first, responsive layout with generous whitespace
- Write all visible text in the chosen language

Technical requirements:
- Return a single self-contained HTML document with embedded CSS
- Use semantic HTML5 elements and accessible colour contrast
- Do not reference external scripts; only web fonts may be loaded externally
- Do not include explanations outside the HTML
`)
	return b.String()
}
