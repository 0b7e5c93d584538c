package apiclient

import "time"

// Role is an administrator privilege level.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Satisfies reports whether r grants at least the privileges of required.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case "":
		return true
	case RoleAdmin:
		return r == RoleAdmin || r == RoleSuperAdmin
	default:
		return r == required
	}
}

// User is the authenticated administrator profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// DisplayName prefers the name over the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// UserPatch is a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Email *string
	Name  *string
	Role  *Role
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}

// LoginCredentials is the login request body.
type LoginCredentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// RegisterData is the registration request body.
type RegisterData struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// AuthResponse is returned by login, register, refresh and me.
type AuthResponse struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// GeneratePageRequest submits a page for generation.
type GeneratePageRequest struct {
	Prompt   string         `json:"prompt"`
	Email    string         `json:"email"`
	PageType string         `json:"page_type,omitempty"`
	Theme    string         `json:"theme,omitempty"`
	UserData map[string]any `json:"user_data,omitempty"`
}

// GeneratePageResponse describes a freshly published page.
type GeneratePageResponse struct {
	PageID    string `json:"page_id"`
	LiveURL   string `json:"live_url"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// GeneratePromptResponse carries the server-proposed generation prompt.
type GeneratePromptResponse struct {
	GeneratedPrompt string         `json:"generated_prompt"`
	UserData        map[string]any `json:"user_data"`
}

// PageHistoryItem is a previously generated page.
type PageHistoryItem struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Prompt    string `json:"prompt"`
	PageType  string `json:"pageType"`
	Theme     string `json:"theme,omitempty"`
	LiveURL   string `json:"liveUrl"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
	Views     int    `json:"views"`
}

// Link returns the live URL, falling back to the url alias.
func (p PageHistoryItem) Link() string {
	if p.LiveURL != "" {
		return p.LiveURL
	}
	return p.URL
}

// DashboardStats aggregates usage counters.
type DashboardStats struct {
	TotalPages     int     `json:"totalPages"`
	PagesToday     int     `json:"pagesToday"`
	TotalViews     int     `json:"totalViews"`
	UniqueUsers    int     `json:"uniqueUsers"`
	ConversionRate float64 `json:"conversionRate"`
}

// PopularPageType is one row of the page type breakdown.
type PopularPageType struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DashboardData is the admin dashboard payload.
type DashboardData struct {
	Stats        DashboardStats    `json:"stats"`
	RecentPages  []PageHistoryItem `json:"recentPages"`
	PopularTypes []PopularPageType `json:"popularTypes"`
}

// AdminUser is a managed administrator account.
type AdminUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	LastLogin string `json:"lastLogin,omitempty"`
}

// CreateAdminRequest creates an administrator account.
type CreateAdminRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            Role   `json:"role"`
}

// AdminUpdate is a partial administrator update.
type AdminUpdate struct {
	Name     *string `json:"name,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// ParseTimestamp parses the backend's ISO-8601 timestamps.
func ParseTimestamp(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
