package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenex/internal/api"
	"expenex/internal/cache"
	"expenex/internal/cli"
	"expenex/internal/config"
	"expenex/internal/events"
	apphttp "expenex/internal/http"
	"expenex/internal/log"
	"expenex/internal/pages"
	"expenex/internal/session"
	"expenex/web"
)

const (
	sessionMaxAge      = 30 * 24 * time.Hour
	workspaceCacheSize = 1000
	workspaceTTL       = 30 * time.Minute
	cacheSweepInterval = 5 * time.Minute
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := cli.InitSessionStore(ctx, logger, cfg.SessionDBPath, sessionMaxAge)
	defer repo.Close()

	sessions := session.NewManager(repo, session.Options{
		CookieName: cfg.SessionCookieName,
		Secure:     cfg.SessionCookieSecure,
		Logger:     logger,
	})

	client := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
		OnUnauthorized: func(ctx context.Context, s session.Session) {
			if err := sessions.Invalidate(ctx, s.ID); err != nil {
				logger.WarnContext(ctx, "Failed to clear rejected session",
					log.FieldSessionID, s.ID,
					log.FieldError, err.Error())
			}
		},
	})

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		amqpClient := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err := amqpClient.Connect(); err != nil {
			// Publish reconnects lazily.
			logger.Warn("AMQP broker unavailable at startup", log.FieldError, err.Error())
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Transaction events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Transaction events disabled - no AMQP_URL provided")
	}

	workspaces := pages.NewRegistry(pages.Deps{
		Gateway:   client,
		Publisher: publisher,
		Logger:    logger,
	}, workspaceCacheSize, workspaceTTL, time.Now)

	caches := cache.NewManager(logger)
	caches.Register(workspaces.Cleaner())
	caches.Register(sessions.Cleared())
	caches.StartCleanup(cacheSweepInterval)
	defer caches.Stop()

	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		logger.Error("Failed to open static assets", log.FieldError, err.Error())
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:       ":" + cfg.Port,
		Auth:       client,
		Sessions:   sessions,
		Workspaces: workspaces,
		Checks: map[string]apphttp.Pinger{
			"api":           client,
			"session_store": repo,
		},
		Templates:      web.TemplatesFS,
		Static:         static,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		SessionCounter: repo,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err.Error())
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenex server", "port", cfg.Port, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
