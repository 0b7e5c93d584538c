package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Prefix namespaces every key written by the client.
const Prefix = "page_spark_"

// Key identifies a persisted client value.
type Key string

const (
	KeyAuthToken    Key = "auth_token"
	KeyRefreshToken Key = "refresh_token"
	KeyUserData     Key = "user_data"
	KeyRememberMe   Key = "remember_me"
)

// Keys lists every key the client knows about, in the order Clear removes them.
var Keys = []Key{KeyAuthToken, KeyRefreshToken, KeyUserData, KeyRememberMe}

var (
	// ErrNilBackend is returned by New when no backend is supplied.
	ErrNilBackend = errors.New("storage: backend is required")
	// ErrInvalidUTF8 is returned by Set for strings that would not survive encoding.
	ErrInvalidUTF8 = errors.New("storage: string is not valid UTF-8")
)

// Backend is the host key/value store. Implementations must read and write a
// single key atomically.
type Backend interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Store serialises values as JSON under namespaced keys and optionally
// obfuscates them before handing them to the backend.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithLogger routes decode failures to the supplied logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps backend in a Store.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	s := &Store{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func fullKey(key Key) string {
	return Prefix + string(key)
}

// Set writes value under key. A nil value is ignored. Strings must be valid
// UTF-8: JSON would silently replace broken bytes with U+FFFD.
func (s *Store) Set(key Key, value any, obfuscate bool) error {
	if value == nil {
		return nil
	}
	if text, ok := value.(string); ok && !utf8.ValidString(text) {
		return fmt.Errorf("storage: encode %s: %w", key, ErrInvalidUTF8)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	final := string(encoded)
	if obfuscate {
		final = Obfuscate(final)
	}
	if err := s.backend.SetItem(fullKey(key), final); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into dst. It reports false when the
// key is absent or the stored value cannot be decoded.
func (s *Store) Get(key Key, dst any, obfuscated bool) bool {
	item, ok := s.backend.GetItem(fullKey(key))
	if !ok || item == "" {
		return false
	}
	if obfuscated {
		plain, err := Deobfuscate(item)
		if err != nil {
			s.logger.Warn("storage: discard unreadable value", zap.String("key", string(key)), zap.Error(err))
			return false
		}
		item = plain
	}
	if err := json.Unmarshal([]byte(item), dst); err != nil {
		s.logger.Warn("storage: discard undecodable value", zap.String("key", string(key)), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes key.
func (s *Store) Remove(key Key) error {
	if err := s.backend.RemoveItem(fullKey(key)); err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

// Has reports whether key holds a value.
func (s *Store) Has(key Key) bool {
	_, ok := s.backend.GetItem(fullKey(key))
	return ok
}

// Clear removes every known key.
func (s *Store) Clear() error {
	return s.remove(Keys...)
}

func (s *Store) remove(keys ...Key) error {
	var errs []error
	for _, key := range keys {
		if err := s.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
