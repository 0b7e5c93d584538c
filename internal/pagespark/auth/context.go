package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/requestctx"
	"finitefield.org/page-spark/internal/pagespark/storage"
)

const defaultRefreshWindow = 2 * time.Minute

var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.New("auth: no refresh token available")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
)

// State is the observable authentication state. IsAuthenticated holds exactly
// when both User and Token are set.
type State struct {
	User            *apiclient.User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

func authenticated(user apiclient.User, token string) State {
	return State{User: &user, Token: token, IsAuthenticated: token != ""}
}

// Context owns the authentication state for one client: a browser session in
// the web console or the state file in the CLI.
type Context struct {
	api      *apiclient.Client
	tokens   *storage.Tokens
	store    *storage.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	window   time.Duration

	mu    sync.RWMutex
	state State
}

// Option customises a Context.
type Option func(*Context)

// WithNotifier routes success and failure notices.
func WithNotifier(n Notifier) Option {
	return func(c *Context) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the fallback logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRefreshWindow sets how close to expiry EnsureFresh refreshes the token.
func WithRefreshWindow(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.window = d
		}
	}
}

// New binds client to the tokens held in store. The returned context starts in
// the loading state until Init or Restore runs.
func New(client *apiclient.Client, store *storage.Store, opts ...Option) (*Context, error) {
	if client == nil {
		return nil, errors.New("auth: api client is required")
	}
	if store == nil {
		return nil, storage.ErrNilBackend
	}
	tokens := storage.NewTokens(store)
	c := &Context{
		api:      client.WithTokens(tokens),
		tokens:   tokens,
		store:    store,
		notifier: discardNotifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
		window:   defaultRefreshWindow,
		state:    State{IsLoading: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// API returns the client bound to this context's token storage.
func (c *Context) API() *apiclient.Client {
	return c.api
}

// State returns a snapshot of the current state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// RememberMe reports the persisted remember-me flag.
func (c *Context) RememberMe() bool {
	var remember bool
	return c.store.Get(storage.KeyRememberMe, &remember, false) && remember
}

func (c *Context) setState(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

func (c *Context) setLoading(loading bool) {
	c.mu.Lock()
	c.state.IsLoading = loading
	c.mu.Unlock()
}

func (c *Context) loggerFor(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return c.logger
}

func (c *Context) stored() (string, *apiclient.User) {
	token, ok := c.tokens.Token()
	if !ok {
		return "", nil
	}
	var user apiclient.User
	if !c.store.Get(storage.KeyUserData, &user, false) {
		return token, nil
	}
	return token, &user
}

// Init seeds the state from storage and validates the token against the
// backend. A rejected token clears every credential and leaves the context
// unauthenticated; it is never reported as an error.
func (c *Context) Init(ctx context.Context) {
	token, user := c.stored()
	if token == "" || user == nil {
		c.setState(State{})
		return
	}

	c.setLoading(true)
	resp, err := c.api.Auth().Me(ctx)
	if err != nil {
		c.loggerFor(ctx).Info("stored credentials rejected", zap.Error(err))
		if clearErr := c.tokens.ClearAll(); clearErr != nil {
			c.loggerFor(ctx).Warn("clear credentials failed", zap.Error(clearErr))
		}
		c.setState(State{})
		return
	}
	if err := c.store.Set(storage.KeyUserData, resp.User, false); err != nil {
		c.loggerFor(ctx).Warn("persist user failed", zap.Error(err))
	}
	c.setState(authenticated(resp.User, token))
}

// Restore seeds the state from storage without contacting the backend.
func (c *Context) Restore() State {
	token, user := c.stored()
	if token == "" || user == nil {
		c.setState(State{})
	} else {
		c.setState(authenticated(*user, token))
	}
	return c.State()
}

// Login exchanges credentials for tokens and persists them.
func (c *Context) Login(ctx context.Context, creds apiclient.LoginCredentials) error {
	c.setLoading(true)
	resp, err := c.api.Auth().Login(ctx, creds)
	if err != nil {
		c.setLoading(false)
		c.notifyFailure("Login failed", err)
		return err
	}
	if err := c.persist(resp); err != nil {
		c.setLoading(false)
		c.notifyFailure("Login failed", err)
		return err
	}
	if creds.RememberMe {
		err = c.store.Set(storage.KeyRememberMe, true, false)
	} else {
		err = c.store.Remove(storage.KeyRememberMe)
	}
	if err != nil {
		c.loggerFor(ctx).Warn("persist remember-me failed", zap.Error(err))
	}
	c.setState(authenticated(resp.User, resp.Token))
	c.notifier.Notify(Notice{
		Kind:        NoticeSuccess,
		Title:       "Welcome back!",
		Description: "Logged in as " + resp.User.Email,
	})
	return nil
}

// Register creates an account and signs it in.
func (c *Context) Register(ctx context.Context, data apiclient.RegisterData) error {
	c.setLoading(true)
	resp, err := c.api.Auth().Register(ctx, data)
	if err != nil {
		c.setLoading(false)
		c.notifyFailure("Registration failed", err)
		return err
	}
	if err := c.persist(resp); err != nil {
		c.setLoading(false)
		c.notifyFailure("Registration failed", err)
		return err
	}
	c.setState(authenticated(resp.User, resp.Token))
	c.notifier.Notify(Notice{
		Kind:        NoticeSuccess,
		Title:       "Account created!",
		Description: "Welcome to Page Spark",
	})
	return nil
}

// Logout notifies the backend best-effort, then always clears stored
// credentials and resets the state. The returned error only reports a
// storage failure; the state is reset regardless.
func (c *Context) Logout(ctx context.Context) error {
	c.api.Auth().Logout(ctx)
	err := c.tokens.ClearAll()
	if err != nil {
		c.loggerFor(ctx).Warn("clear credentials failed", zap.Error(err))
	}
	c.setState(State{})
	c.notifier.Notify(Notice{Kind: NoticeSuccess, Title: "Logged out successfully"})
	return err
}

// Refresh exchanges the stored refresh token for a new token. Any failure
// logs the user out before the error is returned.
func (c *Context) Refresh(ctx context.Context) error {
	err := c.refresh(ctx)
	if err != nil {
		_ = c.Logout(ctx)
	}
	return err
}

func (c *Context) refresh(ctx context.Context) error {
	refreshToken, ok := c.tokens.RefreshToken()
	if !ok {
		return ErrNoRefreshToken
	}
	resp, err := c.api.Auth().Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return err
	}
	if resp.RefreshToken != "" {
		if err := c.tokens.SetRefreshToken(resp.RefreshToken); err != nil {
			return err
		}
	}
	if err := c.store.Set(storage.KeyUserData, resp.User, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = authenticated(resp.User, resp.Token)
	c.mu.Unlock()
	return nil
}

// EnsureFresh refreshes the token when its exp claim falls inside the refresh
// window. Tokens without a readable exp are left alone.
func (c *Context) EnsureFresh(ctx context.Context) error {
	token, ok := c.tokens.Token()
	if !ok {
		return ErrNotAuthenticated
	}
	exp, ok := TokenExpiry(token)
	if !ok || exp.Sub(c.now()) > c.window {
		return nil
	}
	if _, ok := c.tokens.RefreshToken(); !ok {
		return nil
	}
	return c.Refresh(ctx)
}

// UpdateUser merges patch into the current user and persists it. Without a
// signed-in user it does nothing.
func (c *Context) UpdateUser(patch apiclient.UserPatch) error {
	c.mu.Lock()
	if c.state.User == nil {
		c.mu.Unlock()
		return nil
	}
	updated := patch.Apply(*c.state.User)
	c.state.User = &updated
	c.mu.Unlock()
	return c.store.Set(storage.KeyUserData, updated, false)
}

func (c *Context) persist(resp *apiclient.AuthResponse) error {
	if resp.Token == "" {
		return &apiclient.RequestError{Status: apiclient.StatusNetworkError, Message: "authentication response did not include a token"}
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return fmt.Errorf("auth: persist token: %w", err)
	}
	if resp.RefreshToken != "" {
		if err := c.tokens.SetRefreshToken(resp.RefreshToken); err != nil {
			return fmt.Errorf("auth: persist refresh token: %w", err)
		}
	}
	if err := c.store.Set(storage.KeyUserData, resp.User, false); err != nil {
		return fmt.Errorf("auth: persist user: %w", err)
	}
	return nil
}

func (c *Context) notifyFailure(title string, err error) {
	desc := "An unexpected error occurred"
	if reqErr, ok := apiclient.AsRequestError(err); ok {
		desc = reqErr.Message
	}
	c.notifier.Notify(Notice{Kind: NoticeError, Title: title, Description: desc})
}
