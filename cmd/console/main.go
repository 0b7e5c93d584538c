package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
	"finitefield.org/page-spark/internal/pagespark/config"
	"finitefield.org/page-spark/internal/pagespark/httpserver"
	"finitefield.org/page-spark/internal/pagespark/observability"
	"finitefield.org/page-spark/internal/pagespark/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Features.DebugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("console stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	hashKey, blockKey := []byte(cfg.Session.HashKey), []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 {
		if cfg.IsProduction() {
			return errors.New("PAGESPARK_SESSION_HASH_KEY is required in production")
		}
		// Sessions do not survive a restart with ephemeral keys.
		logger.Warn("session keys not configured; generating ephemeral keys")
		hashKey, blockKey = session.GenerateKey(32), session.GenerateKey(32)
	}
	sessions, err := session.NewManager(session.Config{
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	client, err := apiclient.New(cfg.APIURL, apiclient.WithLogger(logger.Named("api")))
	if err != nil {
		return err
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:          cfg.Server.Addr,
		AdminBase:        cfg.Server.AdminBasePath,
		App:              cfg.App,
		Features:         cfg.Features,
		Client:           client,
		Sessions:         sessions,
		Logger:           logger,
		CSRFCookieSecure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("console configured",
		zap.String("addr", cfg.Server.Addr),
		zap.String("admin_base", cfg.Server.AdminBasePath),
		zap.String("api", cfg.APIURL),
		zap.String("env", cfg.Environment),
		zap.Bool("prompt_preview", cfg.Features.PromptPreview),
	)
	return srv.Run(ctx)
}
