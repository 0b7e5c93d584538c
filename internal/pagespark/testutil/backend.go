package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

// Seeded accounts. Both use Password.
const (
	Password       = "Secret123"
	SuperAdminID   = "u-root"
	SuperAdminName = "root"
	AdminID        = "u-ops"
	AdminName      = "ops"
)

type account struct {
	username string
	password string
	admin    apiclient.AdminUser
}

// Backend is an in-memory page generation API served over httptest.
type Backend struct {
	URL string

	mu             sync.Mutex
	accounts       []*account
	pages          []apiclient.PageHistoryItem
	stats          apiclient.DashboardStats
	popular        []apiclient.PopularPageType
	prompt         string
	promptErr      string
	promptGate     chan struct{}
	generateErrors map[string][]string
	dashboardDown  bool
	calls          map[string]int
	lastGenerate   apiclient.GeneratePageRequest
	nextPage       int
}

// NewBackend starts a Backend seeded with a super admin and an admin.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		prompt: "Create a joyful birthday page for Ana.",
		calls:  make(map[string]int),
		stats:  apiclient.DashboardStats{TotalPages: 1280, PagesToday: 12, TotalViews: 45210, UniqueUsers: 310, ConversionRate: 4.2},
		popular: []apiclient.PopularPageType{
			{Type: "birthday", Count: 30},
			{Type: "wedding", Count: 10},
		},
	}
	b.accounts = []*account{
		{username: SuperAdminName, password: Password, admin: apiclient.AdminUser{
			ID: SuperAdminID, Email: "root@example.com", Name: "Root", Role: apiclient.RoleSuperAdmin, IsActive: true, CreatedAt: "2026-01-02T10:00:00Z",
		}},
		{username: AdminName, password: Password, admin: apiclient.AdminUser{
			ID: AdminID, Email: "ops@example.com", Name: "Ops", Role: apiclient.RoleAdmin, IsActive: true, CreatedAt: "2026-02-03T10:00:00Z",
		}},
	}
	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

// SetPrompt changes the generated prompt text, or makes generation fail with msg when prompt is empty.
func (b *Backend) SetPrompt(prompt, failure string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompt = prompt
	b.promptErr = failure
}

// HoldPrompts blocks prompt generation until the returned func is called.
func (b *Backend) HoldPrompts() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.promptGate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// FailGenerate makes page generation answer 400 with the given field errors.
func (b *Backend) FailGenerate(fields map[string][]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generateErrors = fields
}

// FailDashboard makes the dashboard endpoint answer 500.
func (b *Backend) FailDashboard(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dashboardDown = down
}

// AddPage records a generated page.
func (b *Backend) AddPage(p apiclient.PageHistoryItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, p)
}

// Calls reports how often route was hit, e.g. "POST /api/generate/".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// LastGenerate returns the most recent generation request.
func (b *Backend) LastGenerate() apiclient.GeneratePageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastGenerate
}

// Admin returns the stored administrator with id.
func (b *Backend) Admin(id string) (apiclient.AdminUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.findLocked(id); a != nil {
		return a.admin, true
	}
	return apiclient.AdminUser{}, false
}

// Token is the bearer token the backend issues for user id.
func Token(id string) string { return "tok-" + id }

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			b.calls[req.Method+" "+req.URL.Path]++
			b.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/api/generate/", b.generate)
	r.Post("/api/generate-prompt/", b.generatePrompt)
	r.Get("/api/history/", b.history)
	r.Get("/api/pages/{id}/", b.page)

	r.Post("/api/auth/login/", b.login)
	r.Post("/api/auth/register/", b.register)
	r.Post("/api/auth/refresh/", b.refresh)

	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)
		r.Get("/api/admin/me/", b.me)
		r.Post("/api/admin/logout/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		r.Get("/api/admin/dashboard/", b.dashboard)
		r.Get("/api/admin/users/", b.listAdmins)
		r.Post("/api/admin/users/", b.createAdmin)
		r.Patch("/api/admin/users/{id}/", b.updateAdmin)
		r.Delete("/api/admin/users/{id}/", b.deleteAdmin)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) findLocked(id string) *account {
	for _, a := range b.accounts {
		if a.admin.ID == id {
			return a
		}
	}
	return nil
}

func (b *Backend) authResponse(a *account) apiclient.AuthResponse {
	return apiclient.AuthResponse{
		User: apiclient.User{
			ID:        a.admin.ID,
			Email:     a.admin.Email,
			Name:      a.admin.Name,
			Role:      a.admin.Role,
			CreatedAt: a.admin.CreatedAt,
		},
		Token:        Token(a.admin.ID),
		RefreshToken: "refresh-" + a.admin.ID,
	}
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		var found *account
		for _, a := range b.accounts {
			if Token(a.admin.ID) == token {
				found = a
			}
		}
		b.mu.Unlock()
		if found == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authentication credentials were not provided."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) generate(w http.ResponseWriter, r *http.Request) {
	var req apiclient.GeneratePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastGenerate = req
	if len(b.generateErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Validation failed", "errors": b.generateErrors})
		return
	}
	b.nextPage++
	id := fmt.Sprintf("page-%d", b.nextPage)
	item := apiclient.PageHistoryItem{
		ID:        id,
		Email:     req.Email,
		Prompt:    req.Prompt,
		PageType:  req.PageType,
		Theme:     req.Theme,
		LiveURL:   "https://pages.example.com/" + id,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	b.pages = append(b.pages, item)
	writeJSON(w, http.StatusCreated, apiclient.GeneratePageResponse{
		PageID:    id,
		LiveURL:   item.LiveURL,
		Email:     req.Email,
		CreatedAt: item.CreatedAt,
	})
}

func (b *Backend) generatePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserData map[string]any `json:"user_data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	gate := b.promptGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	prompt, failure := b.prompt, b.promptErr
	b.mu.Unlock()
	if failure != "" {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": failure})
		return
	}
	writeJSON(w, http.StatusOK, apiclient.GeneratePromptResponse{GeneratedPrompt: prompt, UserData: body.UserData})
}

func (b *Backend) history(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []apiclient.PageHistoryItem{}
	for _, p := range b.pages {
		if strings.EqualFold(p.Email, email) {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) page(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pages {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Page not found"})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds apiclient.LoginCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if (a.username == creds.Username || strings.EqualFold(a.admin.Email, creds.Username)) && a.password == creds.Password {
			writeJSON(w, http.StatusOK, b.authResponse(a))
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var data apiclient.RegisterData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.username == data.Username {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Registration failed",
				"errors":  map[string][]string{"username": {"A user with that username already exists."}},
			})
			return
		}
	}
	a := &account{username: data.Username, password: data.Password, admin: apiclient.AdminUser{
		ID:        fmt.Sprintf("u-%d", len(b.accounts)+1),
		Email:     data.Email,
		Name:      data.Name,
		Role:      apiclient.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}}
	b.accounts = append(b.accounts, a)
	writeJSON(w, http.StatusCreated, b.authResponse(a))
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.findLocked(strings.TrimPrefix(body.Refresh, "refresh-"))
	if a == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, b.authResponse(a))
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if Token(a.admin.ID) == token {
			writeJSON(w, http.StatusOK, b.authResponse(a))
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is invalid or expired"})
}

func (b *Backend) dashboard(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dashboardDown {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Dashboard unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, apiclient.DashboardData{
		Stats:        b.stats,
		RecentPages:  append([]apiclient.PageHistoryItem{}, b.pages...),
		PopularTypes: append([]apiclient.PopularPageType(nil), b.popular...),
	})
}

func (b *Backend) listAdmins(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]apiclient.AdminUser, 0, len(b.accounts))
	for _, a := range b.accounts {
		out = append(out, a.admin)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createAdmin(w http.ResponseWriter, r *http.Request) {
	var req apiclient.CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if strings.EqualFold(a.admin.Email, req.Email) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Could not create administrator",
				"errors":  map[string][]string{"email": {"An administrator with this email already exists."}},
			})
			return
		}
	}
	a := &account{username: req.Email, password: req.Password, admin: apiclient.AdminUser{
		ID:        fmt.Sprintf("u-%d", len(b.accounts)+1),
		Email:     req.Email,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}}
	b.accounts = append(b.accounts, a)
	writeJSON(w, http.StatusCreated, a.admin)
}

func (b *Backend) updateAdmin(w http.ResponseWriter, r *http.Request) {
	var update apiclient.AdminUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.findLocked(chi.URLParam(r, "id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Administrator not found"})
		return
	}
	if update.Name != nil {
		a.admin.Name = *update.Name
	}
	if update.Role != nil {
		a.admin.Role = *update.Role
	}
	if update.IsActive != nil {
		a.admin.IsActive = *update.IsActive
	}
	writeJSON(w, http.StatusOK, a.admin)
}

func (b *Backend) deleteAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range b.accounts {
		if a.admin.ID == id {
			b.accounts = append(b.accounts[:i], b.accounts[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Administrator not found"})
}
