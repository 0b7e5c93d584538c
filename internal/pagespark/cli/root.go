// Package cli implements the pagespark command line client. Credentials are
// kept in an obfuscated state file so consecutive invocations share a login.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/auth"
	"finitefield.org/page-spark/internal/pagespark/config"
	"finitefield.org/page-spark/internal/pagespark/observability"
	"finitefield.org/page-spark/internal/pagespark/storage"
)

// ErrNotSignedIn is returned by commands that need stored credentials.
var ErrNotSignedIn = errors.New("not signed in; run `pagespark login` first")

// Options wires the command tree to its environment.
type Options struct {
	Version string
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

type app struct {
	opts Options

	apiURL    string
	statePath string
	envFile   string
	logLevel  string

	logger *zap.Logger
	client *apiclient.Client
	store  *storage.Store
	input  *bufio.Reader
}

// NewRootCommand builds the pagespark command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "pagespark",
		Short:         "Generate live pages from the command line",
		Long:          "pagespark talks to the Page Spark API: generate pages, look up history and manage administrators.",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (defaults to PAGESPARK_API_URL)")
	flags.StringVar(&a.statePath, "state", "", "credential state file (defaults to the user config dir)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to read configuration from")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level for diagnostics written to stderr")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.generateCommand(),
		a.quickCommand(),
		a.historyCommand(),
		a.pageCommand(),
		a.adminCommand(),
	)
	return root
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context, opts Options, args []string) error {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) setup() error {
	overrides := map[string]string{}
	if a.apiURL != "" {
		overrides["PAGESPARK_API_URL"] = a.apiURL
	}
	if a.logLevel != "" {
		overrides["LOG_LEVEL"] = a.logLevel
	}
	loadOpts := []config.Option{config.WithEnvFile(a.envFile)}
	if a.opts.Env != nil {
		loadOpts = append(loadOpts, config.WithoutSystemEnv(), config.WithEnvMap(a.opts.Env))
	}
	loadOpts = append(loadOpts, config.WithEnvMap(overrides))
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Features.DebugMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger.Named("cli")

	client, err := apiclient.New(cfg.APIURL, apiclient.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.client = client

	path := a.statePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "pagespark", "state.json")
	}
	backend, err := storage.OpenFileBackend(path)
	if err != nil {
		return err
	}
	store, err := storage.New(backend, storage.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.store = store
	a.input = bufio.NewReader(a.opts.In)
	return nil
}

// ctx returns the command context carrying the CLI logger.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return observability.WithLogger(ctx, a.logger)
}

func (a *app) authContext() (*auth.Context, error) {
	return auth.New(a.client, a.store,
		auth.WithNotifier(auth.NotifierFunc(a.notify)),
		auth.WithLogger(a.logger),
	)
}

// signedIn validates the stored credentials and refreshes them when close to expiry.
func (a *app) signedIn(ctx context.Context, required apiclient.Role) (*auth.Context, *apiclient.User, error) {
	ac, err := a.authContext()
	if err != nil {
		return nil, nil, err
	}
	ac.Init(ctx)
	st := ac.State()
	if !st.IsAuthenticated || st.User == nil {
		return nil, nil, ErrNotSignedIn
	}
	if err := ac.EnsureFresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("refresh credentials: %w", err)
	}
	user := ac.State().User
	if user == nil {
		return nil, nil, ErrNotSignedIn
	}
	if !user.Role.Satisfies(required) {
		return nil, nil, fmt.Errorf("access denied: %s role required", required)
	}
	return ac, user, nil
}

func (a *app) notify(n auth.Notice) {
	line := n.Title
	if n.Description != "" {
		line += ": " + n.Description
	}
	fmt.Fprintln(a.opts.Err, line)
}

// readSecret returns value, or a line read from stdin when value is empty.
func (a *app) readSecret(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(a.opts.Err, "%s: ", label)
	line, err := a.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
