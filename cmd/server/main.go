package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"subscriptions-go/internal/app"
	"subscriptions-go/internal/cache"
	"subscriptions-go/internal/config"
	"subscriptions-go/internal/logging"
	"subscriptions-go/internal/mailer"
	"subscriptions-go/internal/models"
	"subscriptions-go/internal/repository"
	"subscriptions-go/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("subscriber-api: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := telemetry.ShutdownTracing(context.Background(), tp); err != nil {
			logger.WithError(err).Error("Error shutting down tracer provider")
		}
	}()

	appConfig := &app.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Port:           cfg.Port,
		Logger:         logger,
		GinMode:        cfg.GinMode,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ResendCooldown: cfg.ResendCooldown,
	}

	if cfg.DatabaseURL != "" {
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		appConfig.Repository = repository.NewPostgresSubscriberRepository(db)
		logger.Info("Using Postgres subscriber store")
	} else {
		logger.Warn("DATABASE_URL not set, subscribers are kept in memory")
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		appConfig.Cooldown = cache.NewRedisCooldown(client)
		logger.Info("Using Redis resend cooldown")
	}

	transport, closeTransport, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	sender, err := models.ParseEmail(cfg.SenderEmail)
	if err != nil {
		return fmt.Errorf("SENDER_EMAIL: %w", err)
	}
	appConfig.Mailer, err = mailer.NewConfirmationMailer(transport, cfg.BaseURL, sender, cfg.MailTimeout)
	if err != nil {
		return err
	}

	application, err := app.Build(appConfig)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"transport": transport.Name(),
		"base_url":  cfg.BaseURL,
	}).Info("Confirmation mailer ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(application.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return application.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}

func newTransport(ctx context.Context, cfg *config.Config, logger *logging.ContextLogger) (mailer.Transport, func(), error) {
	noop := func() {}
	switch cfg.MailTransport {
	case config.TransportPostmark:
		return mailer.NewPostmarkTransport(cfg.PostmarkURL, cfg.PostmarkServerToken, cfg.MailTimeout), noop, nil
	case config.TransportSES:
		t, err := mailer.NewSESTransport(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			return nil, nil, err
		}
		return t, noop, nil
	case config.TransportDapr:
		client, err := dapr.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to dapr sidecar: %w", err)
		}
		return mailer.NewDaprSMTPTransport(client, cfg.DaprSMTPBinding), client.Close, nil
	default:
		if cfg.GinMode == "release" {
			logger.Warn("MAIL_TRANSPORT=log in release mode, confirmation emails are only logged")
		}
		return mailer.NewLogTransport(logger), noop, nil
	}
}
