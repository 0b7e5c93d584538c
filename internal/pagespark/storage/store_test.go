package storage

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestObfuscateRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjMifQ.sig",
		"こんにちは世界",
		"emoji 🎉 and accents éàü",
		"తెలుగు mixed English",
		string([]byte{0x00, 0x7f}),
		"page_spark_secret_key_2026",
	}
	for _, in := range inputs {
		encoded := Obfuscate(in)
		if in != "" && encoded == in {
			t.Fatalf("expected %q to be transformed", in)
		}
		got, err := Deobfuscate(encoded)
		require.NoError(t, err)
		require.Equal(t, in, got)
		require.True(t, utf8.ValidString(got) == utf8.ValidString(in))
	}
}

func TestDeobfuscateRejectsGarbage(t *testing.T) {
	_, err := Deobfuscate("%%% not base64")
	require.Error(t, err)
}

func TestStoreNamespacesAndObfuscates(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := New(backend)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyAuthToken, "secret-token", true))
	raw, ok := backend.GetItem("page_spark_auth_token")
	require.True(t, ok)
	require.NotContains(t, raw, "secret-token")

	var token string
	require.True(t, store.Get(KeyAuthToken, &token, true))
	require.Equal(t, "secret-token", token)

	type profile struct {
		Email string `json:"email"`
	}
	require.NoError(t, store.Set(KeyUserData, profile{Email: "ana@example.com"}, false))
	raw, ok = backend.GetItem("page_spark_user_data")
	require.True(t, ok)
	require.Equal(t, `{"email":"ana@example.com"}`, raw)

	var p profile
	require.True(t, store.Get(KeyUserData, &p, false))
	require.Equal(t, "ana@example.com", p.Email)
}

func TestStoreGetTreatsCorruptValuesAsMissing(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := New(backend)
	require.NoError(t, err)

	require.NoError(t, backend.SetItem("page_spark_auth_token", "!!!"))
	var token string
	require.False(t, store.Get(KeyAuthToken, &token, true))
	require.True(t, store.Has(KeyAuthToken))
}

func TestStoreSetRejectsInvalidUTF8(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := New(backend)
	require.NoError(t, err)

	err = store.Set(KeyAuthToken, "tok\xff\xfeen", true)
	require.ErrorIs(t, err, ErrInvalidUTF8)
	require.False(t, store.Has(KeyAuthToken))

	require.NoError(t, store.Set(KeyAuthToken, "tök€n", true))
	var token string
	require.True(t, store.Get(KeyAuthToken, &token, true))
	require.Equal(t, "tök€n", token)
}

func TestStoreClearRemovesKnownKeysOnly(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, backend.SetItem("other_app_key", "keep"))

	for _, key := range Keys {
		require.NoError(t, store.Set(key, "v", false))
	}
	require.NoError(t, store.Clear())
	for _, key := range Keys {
		require.False(t, store.Has(key), "key %s should be removed", key)
	}
	require.Equal(t, 1, backend.Len())
}

func TestTokensClearAllKeepsRememberMe(t *testing.T) {
	store, err := New(NewMemoryBackend())
	require.NoError(t, err)
	tokens := NewTokens(store)

	require.NoError(t, tokens.SetToken("access"))
	require.NoError(t, tokens.SetRefreshToken("refresh"))
	require.NoError(t, store.Set(KeyUserData, map[string]string{"id": "1"}, false))
	require.NoError(t, store.Set(KeyRememberMe, true, false))

	got, ok := tokens.Token()
	require.True(t, ok)
	require.Equal(t, "access", got)

	require.NoError(t, tokens.ClearAll())
	_, ok = tokens.Token()
	require.False(t, ok)
	_, ok = tokens.RefreshToken()
	require.False(t, ok)
	require.False(t, store.Has(KeyUserData))
	require.True(t, store.Has(KeyRememberMe))
}

func TestFileBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	backend, err := OpenFileBackend(path)
	require.NoError(t, err)
	store, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, NewTokens(store).SetToken("tok-ü"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenFileBackend(path)
	require.NoError(t, err)
	store2, err := New(reopened)
	require.NoError(t, err)
	got, ok := NewTokens(store2).Token()
	require.True(t, ok)
	require.Equal(t, "tok-ü", got)

	require.NoError(t, store2.Clear())
	third, err := OpenFileBackend(path)
	require.NoError(t, err)
	_, ok = third.GetItem("page_spark_auth_token")
	require.False(t, ok)
}
