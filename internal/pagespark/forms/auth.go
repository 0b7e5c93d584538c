package forms

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

// Login is the sign-in form.
type Login struct {
	Username   string
	Password   string
	RememberMe bool
	Next       string
}

// LoginFromValues reads a posted login form.
func LoginFromValues(v url.Values) Login {
	return Login{
		Username:   strings.TrimSpace(v.Get("username")),
		Password:   v.Get("password"),
		RememberMe: truthy(v.Get("rememberMe")),
		Next:       v.Get("next"),
	}
}

// Validate checks that both credentials are present.
func (f Login) Validate() Errors {
	errs := Errors{}
	if f.Username == "" {
		errs.add("username", "Username or Email is required")
	}
	if f.Password == "" {
		errs.add("password", "Password is required")
	}
	return errs
}

// Credentials returns the login payload.
func (f Login) Credentials() apiclient.LoginCredentials {
	return apiclient.LoginCredentials{
		Username:   f.Username,
		Password:   f.Password,
		RememberMe: f.RememberMe,
	}
}

// Register is the administrator sign-up form.
type Register struct {
	Username        string
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterFromValues reads a posted registration form.
func RegisterFromValues(v url.Values) Register {
	return Register{
		Username:        strings.TrimSpace(v.Get("username")),
		Name:            strings.TrimSpace(v.Get("name")),
		Email:           NormalizeEmail(v.Get("email")),
		Password:        v.Get("password"),
		ConfirmPassword: v.Get("confirmPassword"),
	}
}

// Validate applies the username, name, email and password policies.
func (f Register) Validate() Errors {
	errs := Errors{}
	if utf8.RuneCountInString(f.Username) < 3 {
		errs.add("username", "Username must be at least 3 characters")
	}
	if utf8.RuneCountInString(f.Name) < 2 {
		errs.add("name", "Name must be at least 2 characters")
	}
	checkEmail(errs, "email", f.Email, "Invalid email address")
	checkPassword(errs, "password", f.Password)
	checkConfirm(errs, f.Password, f.ConfirmPassword)
	return errs
}

// Data returns the registration payload.
func (f Register) Data() apiclient.RegisterData {
	return apiclient.RegisterData{
		Username: f.Username,
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
	}
}
