package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses a rendered page or htmx fragment for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// WizardStep reports the step the wizard panel was rendered at, or "" when
// the document has no panel.
func WizardStep(doc *goquery.Document) string {
	return doc.Find("#wizard").AttrOr("data-step", "")
}

// FieldError returns the inline error shown next to the input named name.
// Radio groups report the error of their enclosing fieldset.
func FieldError(doc *goquery.Document, name string) string {
	input := doc.Find(`[name="` + name + `"]`).First()
	if input.Length() == 0 {
		return ""
	}
	group := input.Closest(".field, fieldset")
	return strings.TrimSpace(group.ChildrenFiltered("p.error").Text())
}

// Flashes returns the titles of the rendered flash messages of kind
// ("success", "error", ...), in document order.
func Flashes(doc *goquery.Document, kind string) []string {
	var titles []string
	doc.Find("#flashes .flash-" + kind + " strong").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, strings.TrimSpace(s.Text()))
	})
	return titles
}
