// Package forms validates the console's account, administration and quick
// generation forms and converts them into API payloads.
package forms

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Errors maps a form field to its first failing message.
type Errors map[string]string

// add records msg unless the field already failed.
func (e Errors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// notSpaceOrAt excludes "@" and every character JavaScript's \s matches.
const notSpaceOrAt = `[^\t\n\v\f\r \x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}@]`

var emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)

// ValidEmail reports whether s is shaped like local@domain.tld with no
// whitespace or stray @.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkEmail(errs Errors, field, value, invalid string) {
	switch {
	case value == "":
		errs.add(field, "Email is required")
	case !ValidEmail(value):
		errs.add(field, invalid)
	}
}

var (
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
	otherPattern = regexp.MustCompile(`[^A-Za-z0-9]`)
)

func checkPassword(errs Errors, field, value string) {
	switch {
	case value == "":
		errs.add(field, "Password is required")
	case utf8.RuneCountInString(value) < 8:
		errs.add(field, "Password must be at least 8 characters")
	case !upperPattern.MatchString(value):
		errs.add(field, "Password must contain at least one uppercase letter")
	case !lowerPattern.MatchString(value):
		errs.add(field, "Password must contain at least one lowercase letter")
	case !digitPattern.MatchString(value):
		errs.add(field, "Password must contain at least one number")
	}
}

func checkConfirm(errs Errors, password, confirm string) {
	if password != confirm {
		errs.add("confirmPassword", "Passwords do not match")
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// SafeRedirect returns next when it is a local absolute path, otherwise fallback.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
