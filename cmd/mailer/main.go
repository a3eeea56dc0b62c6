// Command mailer consumes the outbound mail queue and delivers every message
// over SMTP, or to the log when SMTP_HOST is empty. Run it next to the API
// when AMQP_URL is set and MAIL_CONSUMER_INLINE is off.
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
	logger := cfg.NewLogger().With(slog.String("component", "mailer"))

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}
	if cfg.IsProduction() && cfg.SMTPHost == "" {
		logger.Error("SMTP_HOST is required in production")
		os.Exit(1)
	}

	transport, err := server.DeliveryTransport(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}, logger)
	if err != nil {
		logger.Error("failed to create mail transport", slog.String("error", err.Error()))
		os.Exit(1)
	}

	consumer := mail.NewConsumer(cfg.AMQPURL, transport, cfg.MailSendTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("mail consumer starting", slog.String("queue", mail.QueueName))
		_ = consumer.Run(ctx)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"consumer": func(ctx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	)

	exitCode := <-wait
	logger.Info("mailer exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}
