package forms

import (
	"net/url"
	"strings"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

// CreateAdmin is the new-administrator form.
type CreateAdmin struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// CreateAdminFromValues reads a posted create-admin form.
func CreateAdminFromValues(v url.Values) CreateAdmin {
	return CreateAdmin{
		Email:           NormalizeEmail(v.Get("email")),
		Password:        v.Get("password"),
		ConfirmPassword: v.Get("confirmPassword"),
		Role:            strings.TrimSpace(v.Get("role")),
	}
}

// Validate applies the email and password policies and requires a known role.
func (f CreateAdmin) Validate() Errors {
	errs := Errors{}
	checkEmail(errs, "email", f.Email, "Invalid email format")
	checkPassword(errs, "password", f.Password)
	checkConfirm(errs, f.Password, f.ConfirmPassword)
	if !apiclient.Role(f.Role).Valid() {
		errs.add("role", "Please select a role")
	}
	return errs
}

// Request returns the create-admin payload.
func (f CreateAdmin) Request() apiclient.CreateAdminRequest {
	return apiclient.CreateAdminRequest{
		Email:           f.Email,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		Role:            apiclient.Role(f.Role),
	}
}

// UpdateAdmin edits an existing administrator. Empty values leave the field unchanged.
type UpdateAdmin struct {
	Name     string
	Role     string
	IsActive string
}

// UpdateAdminFromValues reads a posted update form.
func UpdateAdminFromValues(v url.Values) UpdateAdmin {
	return UpdateAdmin{
		Name:     strings.TrimSpace(v.Get("name")),
		Role:     strings.TrimSpace(v.Get("role")),
		IsActive: strings.TrimSpace(v.Get("isActive")),
	}
}

// Validate rejects unknown roles and activity flags.
func (f UpdateAdmin) Validate() Errors {
	errs := Errors{}
	if f.Role != "" && !apiclient.Role(f.Role).Valid() {
		errs.add("role", "Please select a role")
	}
	switch f.IsActive {
	case "", "true", "false":
	default:
		errs.add("isActive", "Status must be active or inactive")
	}
	if f.Name == "" && f.Role == "" && f.IsActive == "" {
		errs.add("form", "Nothing to update")
	}
	return errs
}

// Patch returns the partial update payload.
func (f UpdateAdmin) Patch() apiclient.AdminUpdate {
	var patch apiclient.AdminUpdate
	if f.Name != "" {
		name := f.Name
		patch.Name = &name
	}
	if f.Role != "" {
		role := apiclient.Role(f.Role)
		patch.Role = &role
	}
	if f.IsActive != "" {
		active := f.IsActive == "true"
		patch.IsActive = &active
	}
	return patch
}
