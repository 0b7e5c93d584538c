// Package admin backs the administration console: dashboard overview and
// administrator account management.
package admin

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/requestctx"
)

// RecentLimit caps the recent activity list.
const RecentLimit = 10

var (
	// ErrNotConfigured indicates the service was built without a backend.
	ErrNotConfigured = errors.New("admin service not configured")
	// ErrSelfDelete is returned when an administrator tries to delete their own account.
	ErrSelfDelete = errors.New("admin: cannot delete the signed-in account")
	// ErrMissingID is returned when an account operation has no target.
	ErrMissingID = errors.New("admin: account id is required")
)

// Backend is the administration API. apiclient.Admin satisfies it.
type Backend interface {
	Dashboard(ctx context.Context) (*apiclient.DashboardData, error)
	ListAdmins(ctx context.Context) ([]apiclient.AdminUser, error)
	CreateAdmin(ctx context.Context, req apiclient.CreateAdminRequest) (*apiclient.AdminUser, error)
	UpdateAdmin(ctx context.Context, id string, update apiclient.AdminUpdate) (*apiclient.AdminUser, error)
	DeleteAdmin(ctx context.Context, id string) error
}

// Service wraps the backend with aggregation and logging.
type Service struct {
	backend Backend
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp overviews.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wraps backend.
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PopularType is one row of the page type breakdown.
type PopularType struct {
	Type       string
	Count      int
	Percentage float64
}

// Overview is everything the dashboard renders.
type Overview struct {
	Stats     apiclient.DashboardStats
	Recent    []apiclient.PageHistoryItem
	Popular   []PopularType
	Admins    []apiclient.AdminUser
	AdminsErr error
	LoadedAt  time.Time
}

// Overview loads the dashboard and the administrator list concurrently. A
// failing administrator list is reported on the result rather than failing
// the whole overview.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	if s == nil || s.backend == nil {
		return nil, ErrNotConfigured
	}
	logger := requestctx.Logger(ctx)

	var (
		data      *apiclient.DashboardData
		admins    []apiclient.AdminUser
		adminsErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		data, err = s.backend.Dashboard(ctx)
		return err
	})
	g.Go(func() error {
		admins, adminsErr = s.backend.ListAdmins(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn("dashboard load failed", zap.Error(err))
		return nil, err
	}
	if adminsErr != nil {
		logger.Warn("admin list load failed", zap.Error(adminsErr))
	}

	out := &Overview{
		Stats:     data.Stats,
		Recent:    data.RecentPages,
		Popular:   popularTypes(data.PopularTypes),
		Admins:    admins,
		AdminsErr: adminsErr,
		LoadedAt:  s.now(),
	}
	if len(out.Recent) > RecentLimit {
		out.Recent = out.Recent[:RecentLimit]
	}
	return out, nil
}

// popularTypes sorts by count and fills in percentages the backend left at zero.
func popularTypes(in []apiclient.PopularPageType) []PopularType {
	total := 0
	computed := true
	for _, p := range in {
		total += p.Count
		if p.Percentage != 0 {
			computed = false
		}
	}
	out := make([]PopularType, 0, len(in))
	for _, p := range in {
		pct := p.Percentage
		if computed && total > 0 {
			pct = math.Round(float64(p.Count)*1000/float64(total)) / 10
		}
		out = append(out, PopularType{Type: p.Type, Count: p.Count, Percentage: pct})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Admins lists administrator accounts.
func (s *Service) Admins(ctx context.Context) ([]apiclient.AdminUser, error) {
	if s == nil || s.backend == nil {
		return nil, ErrNotConfigured
	}
	return s.backend.ListAdmins(ctx)
}

// Create adds an administrator.
func (s *Service) Create(ctx context.Context, req apiclient.CreateAdminRequest) (*apiclient.AdminUser, error) {
	if s == nil || s.backend == nil {
		return nil, ErrNotConfigured
	}
	user, err := s.backend.CreateAdmin(ctx, req)
	if err != nil {
		return nil, err
	}
	requestctx.Logger(ctx).Info("admin created", zap.String("admin_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies a partial change to an administrator.
func (s *Service) Update(ctx context.Context, id string, update apiclient.AdminUpdate) (*apiclient.AdminUser, error) {
	if s == nil || s.backend == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	user, err := s.backend.UpdateAdmin(ctx, id, update)
	if err != nil {
		return nil, err
	}
	requestctx.Logger(ctx).Info("admin updated", zap.String("admin_id", id))
	return user, nil
}

// Delete removes an administrator other than actorID.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	if s == nil || s.backend == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	if id == actorID {
		return ErrSelfDelete
	}
	if err := s.backend.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	requestctx.Logger(ctx).Info("admin deleted", zap.String("admin_id", id))
	return nil
}
