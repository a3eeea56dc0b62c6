// Command server runs the shortify HTTP API.
//
// Configuration comes from the environment (and an optional .env file); see
// internal/config for the keys. SIGINT and SIGTERM trigger a graceful
// shutdown with a 30 second budget.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/albizan/shortify-backend/internal/config"
	"github.com/albizan/shortify-backend/internal/mail"
	"github.com/albizan/shortify-backend/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(serverConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// The server shuts its parts down in order, so it is a single operation.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"server": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Port:          cfg.Port,
		DatabaseURL:   cfg.DatabaseURL,
		FrontendHost:  cfg.FrontendHost,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		MailSecret:    cfg.MailSecret,
		ResetSecret:   cfg.ResetSecret,
		BcryptCost:    cfg.BcryptCost,
		MailFrom:      cfg.MailFrom,
		SMTP: mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		},
		Mail: mail.Config{
			Workers:     cfg.MailWorkers,
			QueueSize:   cfg.MailQueueSize,
			SendTimeout: cfg.MailSendTimeout,
		},
		AMQPURL:            cfg.AMQPURL,
		MailConsumerInline: cfg.MailConsumerInline,
		CORSOrigins:        cfg.CORSOrigins,
	}
}
