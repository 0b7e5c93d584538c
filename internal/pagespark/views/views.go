// Package views renders the console's HTML as templ components backed by
// embedded html/template files.
package views

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

//go:embed templates/*.html
var files embed.FS

var (
	pages     = mustParsePages()
	markdown  = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
	sanitizer = bluemonday.UGCPolicy()
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
		"width": func(f float64) string {
			if f < 0 {
				f = 0
			}
			if f > 100 {
				f = 100
			}
			return fmt.Sprintf("width: %.1f%%", f)
		},
		"truncate": Truncate,
		"errFor": func(errs map[string]string, field string) string {
			return errs[field]
		},
		"initial": func(s string) string {
			for _, r := range s {
				return strings.ToUpper(string(r))
			}
			return "?"
		},
	}
}

func mustParsePages() map[string]*template.Template {
	base := template.Must(template.New("base").Funcs(funcMap()).ParseFS(files, "templates/layout.html", "templates/partials.html"))
	names, err := fs.Glob(files, "templates/page_*.html")
	if err != nil {
		panic(err)
	}
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		page := template.Must(template.Must(base.Clone()).ParseFS(files, name))
		key := strings.TrimSuffix(strings.TrimPrefix(path.Base(name), "page_"), ".html")
		out[key] = page
	}
	return out
}

func component(page, block string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tmpl, ok := pages[page]
		if !ok {
			return fmt.Errorf("views: unknown page %q", page)
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, block, data); err != nil {
			return fmt.Errorf("views: render %s/%s: %w", page, block, err)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

// Wizard renders the structured generator page.
func Wizard(data WizardPage) templ.Component { return component("wizard", "layout", data) }

// WizardPanel renders only the current step for htmx swaps.
func WizardPanel(data WizardPage) templ.Component { return component("wizard", "panel", data) }

// PromptPanel renders the preview prompt for polling.
func PromptPanel(data WizardPage) templ.Component { return component("wizard", "prompt", data) }

// Quick renders the single-prompt generator.
func Quick(data QuickPage) templ.Component { return component("quick", "layout", data) }

// Result renders the result card.
func Result(data ResultPage) templ.Component { return component("result", "layout", data) }

// History renders the history list.
func History(data HistoryPage) templ.Component { return component("history", "layout", data) }

// Page renders a single generated page's details.
func Page(data PageDetail) templ.Component { return component("page", "layout", data) }

// Login renders the sign-in page.
func Login(data LoginPage) templ.Component { return component("login", "layout", data) }

// Register renders the sign-up page.
func Register(data RegisterPage) templ.Component { return component("register", "layout", data) }

// PasswordStrength renders the strength meter fragment.
func PasswordStrength(data RegisterPage) templ.Component {
	return component("register", "strength", data)
}

// Dashboard renders the admin overview.
func Dashboard(data DashboardPage) templ.Component { return component("dashboard", "layout", data) }

// DashboardPanel renders the refreshable part of the overview.
func DashboardPanel(data DashboardPage) templ.Component {
	return component("dashboard", "overview", data)
}

// Admins renders the administrator list.
func Admins(data AdminsPage) templ.Component { return component("admins", "layout", data) }

// CreateAdmin renders the create-admin page.
func CreateAdmin(data CreateAdminPage) templ.Component {
	return component("admin_create", "layout", data)
}

// Error renders an error screen.
func Error(data ErrorPage) templ.Component { return component("error", "layout", data) }

// RenderMarkdown converts markdown to sanitised HTML.
func RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes()))
}

// Truncate shortens s to n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// Timestamp renders a backend timestamp relative to now, or as-is when unparseable.
func Timestamp(value string) string {
	if value == "" {
		return ""
	}
	t, ok := apiclient.ParseTimestamp(value)
	if !ok {
		return value
	}
	return humanize.Time(t)
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Clock renders a load time.
func Clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}
