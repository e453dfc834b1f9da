package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"moneybook/internal/api"
	"moneybook/internal/cache"
	"moneybook/internal/cli"
	"moneybook/internal/events"
	apphttp "moneybook/internal/http"
	"moneybook/internal/log"
	"moneybook/internal/services"
	"moneybook/internal/session"
	"moneybook/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting moneybook",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		"session_backend", cfg.SessionBackend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, closeStore := cli.InitSessionStore(logger, cfg)
	sessions := session.NewManager(store, session.ManagerConfig{
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
		TTL:          cfg.SessionTTL,
	}, logger)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP publisher", log.FieldError, err)
			os.Exit(1)
		}
		publisher = p
		logger.Info("Activity events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}
	notifier := events.NewNotifier(publisher, logger)

	client, err := api.New(cfg.APIURL,
		api.WithCredentials(session.NewCredentials(sessions)),
		api.WithTimeout(cfg.APITimeout),
		api.WithRetryPolicy(cli.RetryPolicy(cfg)),
		api.WithLogger(logger),
		api.WithMetrics(api.NewMetrics(reg)),
		api.WithOnUnauthorized(func(ctx context.Context, _ string) {
			sess, ok := session.FromContext(ctx)
			if !ok {
				return
			}
			logger.WithComponent(log.ComponentAuth).WarnContext(ctx, "Token rejected, session ended",
				log.FieldSessionID, sess.ID,
				log.FieldUserID, sess.User.ID)
			notifier.Notify(ctx, events.UserLogout, "", sess.User.ID)
		}),
	)
	if err != nil {
		logger.Error("Failed to create API client", log.FieldError, err)
		os.Exit(1)
	}

	auth := services.NewAuthService(client.Auth, sessions, notifier, logger, cfg.AuthVerifyInterval)
	dashboard := services.NewDashboardService(client.Dashboard, cfg.DashboardCacheTTL, logger)
	ledger := services.NewLedgerService(client.Categories, client.Transactions, dashboard, notifier, logger)

	caches := cache.NewManager(logger)
	caches.Register(dashboard.Cache())
	caches.Register(auth.VerifiedCache())
	caches.StartCleanup(time.Minute)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           cfg.Addr(),
		Auth:           auth,
		Ledger:         ledger,
		Dashboard:      dashboard,
		Sessions:       sessions,
		Upstream:       client,
		Logger:         logger,
		Registry:       reg,
		FormsPerMinute: cfg.FormsPerMinute,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := notifier.Close(); err != nil {
			logger.Warn("Failed to close publisher", log.FieldError, err)
		}
		if closeStore != nil {
			if err := closeStore(); err != nil {
				logger.Warn("Failed to close session store", log.FieldError, err)
			}
		}
	})

	sweeper := worker.NewSessionSweeper(sessions, cfg.SessionSweepInterval, logger)
	go sweeper.Run(ctx)

	logger.Info("HTTP server listening", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
