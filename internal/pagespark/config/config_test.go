package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{"PAGESPARK_API_URL": "https://api.example.com"}),
	)
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.APIURL)
	require.Equal(t, "Page Spark", cfg.App.Name)
	require.Equal(t, "1.0.0", cfg.App.Version)
	require.Equal(t, "AI-Powered Live Page Generator", cfg.App.Description)
	require.False(t, cfg.Features.Analytics)
	require.False(t, cfg.Features.ErrorReporting)
	require.False(t, cfg.Features.DebugMode)
	require.True(t, cfg.Features.PromptPreview)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "/admin", cfg.Server.AdminBasePath)
	require.True(t, cfg.IsDevelopment())
}

func TestLoadRequiresAPIURL(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidConfig))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields(), "PAGESPARK_API_URL")
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"PAGESPARK_API_URL": "https://api.example.com",
		"PAGESPARK_ENV":     "staging",
	}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"PAGESPARK_ENV"}, verr.Fields())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# local overrides\nexport PAGESPARK_API_URL=\"https://dotenv.example.com\"\nPAGESPARK_APP_NAME=FromFile\nPAGESPARK_ENABLE_DEBUG_MODE=true\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Setenv("PAGESPARK_APP_NAME", "FromProcess")

	cfg, err := Load(
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{"PAGESPARK_ADMIN_BASE_PATH": "console/"}),
	)
	require.NoError(t, err)
	require.Equal(t, "https://dotenv.example.com", cfg.APIURL)
	require.Equal(t, "FromProcess", cfg.App.Name)
	require.True(t, cfg.Features.DebugMode)
	require.Equal(t, "/console", cfg.Server.AdminBasePath)
}

func TestLoadRejectsMalformedBool(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"PAGESPARK_API_URL":          "https://api.example.com",
		"PAGESPARK_ENABLE_ANALYTICS": "maybe",
	}))
	require.ErrorIs(t, err, ErrInvalidConfig)
}
