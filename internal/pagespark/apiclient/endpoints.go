package apiclient

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Pages groups the public page generation endpoints. None of them send credentials.
type Pages struct{ c *Client }

// Auth groups the authentication endpoints.
type Auth struct{ c *Client }

// Admin groups the authenticated administration endpoints.
type Admin struct{ c *Client }

// Pages returns the page generation endpoints.
func (c *Client) Pages() Pages { return Pages{c: c} }

// Auth returns the authentication endpoints.
func (c *Client) Auth() Auth { return Auth{c: c} }

// Admin returns the administration endpoints.
func (c *Client) Admin() Admin { return Admin{c: c} }

// Generate submits a page for generation.
func (p Pages) Generate(ctx context.Context, req GeneratePageRequest) (*GeneratePageResponse, error) {
	var out GeneratePageResponse
	if err := p.c.Post(ctx, "/api/generate/", req, &out, WithTimeout(GenerationTimeout), SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePrompt asks the backend to turn structured answers into a generation prompt.
func (p Pages) GeneratePrompt(ctx context.Context, userData map[string]any) (*GeneratePromptResponse, error) {
	body := map[string]any{"user_data": userData}
	var out GeneratePromptResponse
	if err := p.c.Post(ctx, "/api/generate-prompt/", body, &out, WithTimeout(PromptTimeout), SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists pages generated for email.
func (p Pages) History(ctx context.Context, email string) ([]PageHistoryItem, error) {
	var out []PageHistoryItem
	if err := p.c.Get(ctx, "/api/history/", &out, WithQuery("email", email), SkipAuth()); err != nil {
		return nil, err
	}
	return out, nil
}

// ByID fetches a single page.
func (p Pages) ByID(ctx context.Context, id string) (*PageHistoryItem, error) {
	var out PageHistoryItem
	if err := p.c.Get(ctx, "/api/pages/"+escapeID(id)+"/", &out, SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for tokens.
func (a Auth) Login(ctx context.Context, creds LoginCredentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.c.Post(ctx, "/api/auth/login/", creds, &out, SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an administrator and signs them in.
func (a Auth) Register(ctx context.Context, data RegisterData) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.c.Post(ctx, "/api/auth/register/", data, &out, SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout notifies the backend. Failures are logged and swallowed so local
// logout always proceeds.
func (a Auth) Logout(ctx context.Context) {
	if err := a.c.Post(ctx, "/api/admin/logout/", nil, nil); err != nil {
		a.c.loggerFor(ctx).Warn("logout request failed", zap.Error(err))
	}
}

// Refresh exchanges a refresh token for a new auth response.
func (a Auth) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	body := map[string]string{"refresh": refreshToken}
	var out AuthResponse
	if err := a.c.Post(ctx, "/api/auth/refresh/", body, &out, SkipAuth()); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile bound to the current token.
func (a Auth) Me(ctx context.Context) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.c.Get(ctx, "/api/admin/me/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard loads usage statistics.
func (a Admin) Dashboard(ctx context.Context) (*DashboardData, error) {
	var out DashboardData
	if err := a.c.Get(ctx, "/api/admin/dashboard/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAdmins lists administrator accounts.
func (a Admin) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	var out []AdminUser
	if err := a.c.Get(ctx, "/api/admin/users/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAdmin creates an administrator account.
func (a Admin) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*AdminUser, error) {
	var out AdminUser
	if err := a.c.Post(ctx, "/api/admin/users/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAdmin applies a partial update.
func (a Admin) UpdateAdmin(ctx context.Context, id string, update AdminUpdate) (*AdminUser, error) {
	var out AdminUser
	if err := a.c.Patch(ctx, "/api/admin/users/"+escapeID(id)+"/", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAdmin removes an administrator account.
func (a Admin) DeleteAdmin(ctx context.Context, id string) error {
	return a.c.Delete(ctx, "/api/admin/users/"+escapeID(id)+"/", nil)
}

func escapeID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
