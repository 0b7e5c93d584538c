package forms

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

func TestLoginValidate(t *testing.T) {
	f := LoginFromValues(url.Values{"username": {"  "}, "rememberMe": {"on"}})
	errs := f.Validate()
	assert.Equal(t, Errors{
		"username": "Username or Email is required",
		"password": "Password is required",
	}, errs)
	assert.True(t, f.RememberMe)

	f = LoginFromValues(url.Values{"username": {" admin "}, "password": {"pw"}})
	require.Empty(t, f.Validate())
	assert.Equal(t, apiclient.LoginCredentials{Username: "admin", Password: "pw"}, f.Credentials())
}

func TestRegisterValidate(t *testing.T) {
	cases := []struct {
		name string
		form Register
		want Errors
	}{
		{
			name: "valid",
			form: Register{Username: "ana", Name: "Ana", Email: "ana@example.com", Password: "Secret123", ConfirmPassword: "Secret123"},
			want: Errors{},
		},
		{
			name: "short fields",
			form: Register{Username: "an", Name: "A", Email: "ana@example", Password: "short", ConfirmPassword: "short"},
			want: Errors{
				"username": "Username must be at least 3 characters",
				"name":     "Name must be at least 2 characters",
				"email":    "Invalid email address",
				"password": "Password must be at least 8 characters",
			},
		},
		{
			name: "password policy order",
			form: Register{Username: "ana", Name: "Ana", Email: "ana@example.com", Password: "alllower1", ConfirmPassword: "different"},
			want: Errors{
				"password":        "Password must contain at least one uppercase letter",
				"confirmPassword": "Passwords do not match",
			},
		},
		{
			name: "missing digit",
			form: Register{Username: "ana", Name: "Ana", Email: "ana@example.com", Password: "NoDigitsHere", ConfirmPassword: "NoDigitsHere"},
			want: Errors{"password": "Password must contain at least one number"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.form.Validate())
		})
	}
}

func TestRegisterFromValuesNormalizesEmail(t *testing.T) {
	f := RegisterFromValues(url.Values{"email": {"  Ana@Example.COM "}, "username": {" ana "}})
	assert.Equal(t, "ana@example.com", f.Email)
	assert.Equal(t, "ana", f.Data().Username)
}

func TestCreateAdminValidate(t *testing.T) {
	f := CreateAdminFromValues(url.Values{"email": {"bad"}, "password": {"Secret123"}, "confirmPassword": {"Secret123"}})
	assert.Equal(t, Errors{
		"email": "Invalid email format",
		"role":  "Please select a role",
	}, f.Validate())

	f.Email = "ops@example.com"
	f.Role = "super_admin"
	require.Empty(t, f.Validate())
	assert.Equal(t, apiclient.RoleSuperAdmin, f.Request().Role)
}

func TestUpdateAdminPatch(t *testing.T) {
	f := UpdateAdminFromValues(url.Values{"isActive": {"false"}, "role": {"admin"}})
	require.Empty(t, f.Validate())
	patch := f.Patch()
	require.Nil(t, patch.Name)
	require.NotNil(t, patch.IsActive)
	assert.False(t, *patch.IsActive)
	assert.Equal(t, apiclient.RoleAdmin, *patch.Role)

	assert.Contains(t, UpdateAdmin{}.Validate(), "form")
	assert.Contains(t, UpdateAdmin{Role: "owner"}.Validate(), "role")
	assert.Contains(t, UpdateAdmin{IsActive: "maybe"}.Validate(), "isActive")
}

func TestQuickPageValidate(t *testing.T) {
	f := QuickPageFromValues(url.Values{"prompt": {"   "}})
	assert.Equal(t, Errors{
		"prompt": "Please describe the page you want to create",
		"email":  "Email is required",
	}, f.Validate())

	f = QuickPage{Prompt: "A launch page", Email: "nope"}
	assert.Equal(t, Errors{"email": "Please enter a valid email address"}, f.Validate())

	f = QuickPage{Prompt: "A launch page", Email: "a@b.co", PageType: "landing", Theme: "dark"}
	require.Empty(t, f.Validate())
	req := f.Request()
	assert.Equal(t, "landing", req.PageType)
	assert.Equal(t, "dark", req.Theme)

	f.Theme = "neon"
	assert.Contains(t, f.Validate(), "theme")
}

func TestValidEmailRejectsJavaScriptWhitespace(t *testing.T) {
	for _, sep := range []string{"\t", "\v", "\f", "\u00a0", "\u1680", "\u2000", "\u200a", "\u2028", "\u202f", "\u205f", "\u3000", "\ufeff"} {
		assert.False(t, ValidEmail("ana"+sep+"@example.com"), "separator %U", []rune(sep)[0])
		assert.False(t, ValidEmail("ana@exa"+sep+"mple.com"), "separator %U", []rune(sep)[0])
	}
	assert.True(t, ValidEmail("ana@example.com"))
	assert.True(t, ValidEmail("ana.müller@example.de"))
}

func TestPasswordStrength(t *testing.T) {
	cases := []struct {
		in    string
		score int
		label StrengthLabel
	}{
		{"", 0, StrengthWeak},
		{"abc", 1, StrengthWeak},
		{"abcdefgh", 2, StrengthWeak},
		{"abcdefgH", 3, StrengthFair},
		{"abcdefH1", 4, StrengthGood},
		{"abcdefH1!", 5, StrengthStrong},
		{"abcdefghH1!x", 6, StrengthStrong},
	}
	for _, tc := range cases {
		got := PasswordStrength(tc.in)
		assert.Equal(t, tc.score, got.Score, tc.in)
		assert.Equal(t, tc.label, got.Label, tc.in)
	}

	assert.Equal(t, []string{
		"Use at least 8 characters",
		"Add uppercase letters",
		"Add numbers",
		"Add special characters",
	}, PasswordStrength("abc").Feedback)
	assert.Empty(t, PasswordStrength("abcdefH1!").Feedback)
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/admin/users", SafeRedirect("/admin/users", "/admin"))
	assert.Equal(t, "/admin", SafeRedirect("https://evil.example", "/admin"))
	assert.Equal(t, "/admin", SafeRedirect("//evil.example", "/admin"))
	assert.Equal(t, "/admin", SafeRedirect("", "/admin"))
	assert.Equal(t, "/admin", SafeRedirect("admin", "/admin"))
}
