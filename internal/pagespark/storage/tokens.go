package storage

// Tokens manages the auth and refresh tokens. Both are obfuscated at rest; the
// user profile stays in clear.
type Tokens struct {
	store *Store
}

// NewTokens wraps store with token helpers.
func NewTokens(store *Store) *Tokens {
	return &Tokens{store: store}
}

// Store exposes the underlying store.
func (t *Tokens) Store() *Store {
	return t.store
}

// SetToken persists the access token obfuscated.
func (t *Tokens) SetToken(token string) error {
	return t.store.Set(KeyAuthToken, token, true)
}

// Token returns the persisted access token. It satisfies apiclient.TokenSource.
func (t *Tokens) Token() (string, bool) {
	var token string
	if !t.store.Get(KeyAuthToken, &token, true) || token == "" {
		return "", false
	}
	return token, true
}

// RemoveToken forgets the access token.
func (t *Tokens) RemoveToken() error {
	return t.store.Remove(KeyAuthToken)
}

// HasToken reports whether an access token is stored, readable or not.
func (t *Tokens) HasToken() bool {
	return t.store.Has(KeyAuthToken)
}

// SetRefreshToken persists the refresh token obfuscated.
func (t *Tokens) SetRefreshToken(token string) error {
	return t.store.Set(KeyRefreshToken, token, true)
}

// RefreshToken returns the persisted refresh token.
func (t *Tokens) RefreshToken() (string, bool) {
	var token string
	if !t.store.Get(KeyRefreshToken, &token, true) || token == "" {
		return "", false
	}
	return token, true
}

// RemoveRefreshToken forgets the refresh token.
func (t *Tokens) RemoveRefreshToken() error {
	return t.store.Remove(KeyRefreshToken)
}

// ClearAll drops both tokens and the stored user profile. The remember-me flag
// survives so the login form can pre-select it.
func (t *Tokens) ClearAll() error {
	return t.store.remove(KeyAuthToken, KeyRefreshToken, KeyUserData)
}
