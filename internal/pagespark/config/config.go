package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const defaultEnvFile = ".env"

// Environment names accepted by PAGESPARK_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// ErrInvalidConfig is wrapped by every error Load returns for bad input.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the process-wide configuration.
type Config struct {
	APIURL string `env:"PAGESPARK_API_URL"`

	App      AppConfig
	Features FeatureFlags
	Server   ServerConfig
	Session  SessionConfig

	Environment string `env:"PAGESPARK_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// AppConfig carries display metadata.
type AppConfig struct {
	Name        string `env:"PAGESPARK_APP_NAME" envDefault:"Page Spark"`
	Version     string `env:"PAGESPARK_APP_VERSION" envDefault:"1.0.0"`
	Description string `env:"PAGESPARK_APP_DESCRIPTION" envDefault:"AI-Powered Live Page Generator"`
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	Analytics      bool `env:"PAGESPARK_ENABLE_ANALYTICS" envDefault:"false"`
	ErrorReporting bool `env:"PAGESPARK_ENABLE_ERROR_REPORTING" envDefault:"false"`
	DebugMode      bool `env:"PAGESPARK_ENABLE_DEBUG_MODE" envDefault:"false"`
	PromptPreview  bool `env:"PAGESPARK_ENABLE_PROMPT_PREVIEW" envDefault:"true"`
}

// ServerConfig configures the web console listener.
type ServerConfig struct {
	Addr          string `env:"PAGESPARK_HTTP_ADDR" envDefault:":8080"`
	AdminBasePath string `env:"PAGESPARK_ADMIN_BASE_PATH" envDefault:"/admin"`
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	HashKey      string `env:"PAGESPARK_SESSION_HASH_KEY"`
	BlockKey     string `env:"PAGESPARK_SESSION_BLOCK_KEY"`
	CookieSecure bool   `env:"PAGESPARK_COOKIE_SECURE" envDefault:"false"`
}

// IsDevelopment reports whether the development environment is active.
func (c Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }

// IsProduction reports whether the production environment is active.
func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Unwrap ties validation failures to ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process
// environment. Repeated calls merge, later keys winning.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		if o.envMap == nil {
			o.envMap = make(map[string]string, len(values))
		}
		for k, v := range values {
			o.envMap[k] = v
		}
	}
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles configuration from defaults, the .env file, the process
// environment and explicit overrides, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Server.AdminBasePath = normalizeBasePath(cfg.Server.AdminBasePath)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvironmentValues returns the merged key/value map Load parses.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}
	merge(dotEnv)
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[key] = value
		}
	}
	merge(options.envMap)
	return values, nil
}

func validate(cfg Config) error {
	var missing []string

	if cfg.APIURL == "" {
		missing = append(missing, "PAGESPARK_API_URL")
	} else if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "PAGESPARK_API_URL")
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		missing = append(missing, "PAGESPARK_ENV")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		missing = append(missing, "PAGESPARK_HTTP_ADDR")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "PAGESPARK_SESSION_BLOCK_KEY")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func normalizeBasePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}
