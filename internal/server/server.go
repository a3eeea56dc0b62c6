// Package server is the composition root: it opens the database, builds the
// token issuers, the mail pipeline, the services and the handlers, and
// mounts everything on a chi router.
//
//	sqldb.DB ──► service.AuthService ──► handler.AuthHandler ──┐
//	        └──► service.LinkService ──► handler.LinkHandler ──┼──► chi.Mux
//	mail.Dispatcher ◄── mail.Notifier ◄─┘    handler.UserHandler┘
//
// Shutdown runs in a fixed order: HTTP server, mail dispatcher, inline
// consumer, AMQP relay, database.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/albizan/shortify-backend/internal/auth"
	"github.com/albizan/shortify-backend/internal/handler"
	"github.com/albizan/shortify-backend/internal/mail"
	"github.com/albizan/shortify-backend/internal/middleware"
	"github.com/albizan/shortify-backend/internal/repository/sqldb"
	"github.com/albizan/shortify-backend/internal/service"
)

// Config holds everything New needs. cmd/server fills it from
// config.Config; tests build it by hand.
type Config struct {
	Port        int
	DatabaseURL string

	FrontendHost  string
	SessionSecret string
	SessionTTL    time.Duration
	MailSecret    string
	ResetSecret   string
	BcryptCost    int

	MailFrom string
	SMTP     mail.SMTPConfig
	Mail     mail.Config

	// AMQPURL routes outbound mail through RabbitMQ instead of delivering
	// it from this process.
	AMQPURL string
	// MailConsumerInline also runs the queue consumer inside this process.
	MailConsumerInline bool

	CORSOrigins []string

	// MailTransport, when set, replaces the transport picked from the SMTP
	// and AMQP settings.
	MailTransport mail.Transport
}

// Server owns the router and every long-lived resource behind it.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger

	db         *sqldb.DB
	dispatcher *mail.Dispatcher
	relay      *mail.AMQPRelay

	httpServer *http.Server

	consumerCancel context.CancelFunc
	consumerDone   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wires the application. On error every resource opened so far is
// released.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if err := ensureDataDir(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	db, err := sqldb.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := s.setup(); err != nil {
		s.closeResources()
		return nil, err
	}

	logger.Info("server configured",
		slog.String("database", db.Dialect().String()),
		slog.Bool("amqp", cfg.AMQPURL != ""),
	)
	return s, nil
}

func (s *Server) setup() error {
	cfg := s.config

	issuers, err := auth.NewIssuers(cfg.SessionSecret, cfg.SessionTTL, cfg.MailSecret, cfg.ResetSecret)
	if err != nil {
		return fmt.Errorf("creating token issuers: %w", err)
	}

	passwords := auth.NewPasswordService()
	if cfg.BcryptCost != 0 {
		passwords, err = auth.NewPasswordServiceWithCost(cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("creating password service: %w", err)
		}
	}

	transport, err := s.mailTransport()
	if err != nil {
		return fmt.Errorf("creating mail transport: %w", err)
	}

	s.dispatcher = mail.NewDispatcher(transport, cfg.Mail, s.logger)
	s.dispatcher.Start()

	from := cfg.MailFrom
	if from == "" {
		from = mail.DefaultFrom
	}
	notifier := mail.NewNotifier(s.dispatcher, from, s.logger)

	authService := service.NewAuthService(s.db.Users(), issuers, passwords, notifier, cfg.FrontendHost, s.logger)
	linkService := service.NewLinkService(s.db.Links(), s.db.Users(), s.logger)

	s.routes(
		issuers.Session,
		handler.NewAuthHandler(authService, s.logger),
		handler.NewLinkHandler(linkService, s.logger),
		handler.NewUserHandler(authService, linkService, s.logger),
		handler.NewHealthHandler(s.db, s.logger),
	)
	return nil
}

// mailTransport picks where the dispatcher hands messages to. With an AMQP
// URL the dispatcher publishes to the broker; otherwise it delivers
// directly.
func (s *Server) mailTransport() (mail.Transport, error) {
	cfg := s.config
	if cfg.MailTransport != nil {
		return cfg.MailTransport, nil
	}

	if cfg.AMQPURL == "" {
		return DeliveryTransport(cfg.SMTP, s.logger)
	}

	s.relay = mail.NewAMQPRelay(cfg.AMQPURL, s.logger)
	if cfg.MailConsumerInline {
		delivery, err := DeliveryTransport(cfg.SMTP, s.logger)
		if err != nil {
			return nil, err
		}
		s.startConsumer(mail.NewConsumer(cfg.AMQPURL, delivery, cfg.Mail.SendTimeout, s.logger))
	}
	return s.relay, nil
}

// DeliveryTransport returns an SMTP transport when a host is configured and
// a logging transport otherwise. cmd/mailer uses it too.
func DeliveryTransport(cfg mail.SMTPConfig, logger *slog.Logger) (mail.Transport, error) {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set, mail will be logged instead of sent")
		return mail.NewLogTransport(logger), nil
	}
	return mail.NewSMTPTransport(cfg)
}

func (s *Server) startConsumer(c *mail.Consumer) {
	ctx, cancel := context.WithCancel(context.Background())
	s.consumerCancel = cancel
	s.consumerDone = make(chan struct{})
	go func() {
		defer close(s.consumerDone)
		_ = c.Run(ctx)
	}()
}

// routes mounts middleware and handlers.
//
//	POST   /auth/register
//	POST   /auth/login
//	POST   /auth/amnesia
//	POST   /auth/resend-confirmation-mail
//	POST   /auth/change-password
//	GET    /mail/confirm/{token}
//	GET    /link/{id}
//	GET    /healthz
//	GET    /user/me                 (bearer)
//	GET    /user/stats              (bearer)
//	GET    /user/links              (bearer)
//	POST   /user/add-link           (bearer)
//	DELETE /user/delete-link/{id}   (bearer)
//	PATCH  /user/patch-link/{id}    (bearer)
func (s *Server) routes(
	sessions *auth.TokenService,
	authHandler *handler.AuthHandler,
	linkHandler *handler.LinkHandler,
	userHandler *handler.UserHandler,
	healthHandler *handler.HealthHandler,
) {
	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPut, http.MethodPost,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/amnesia", authHandler.HandleAmnesia)
		r.Post("/resend-confirmation-mail", authHandler.HandleResendConfirmation)
		r.Post("/change-password", authHandler.HandleChangePassword)
	})

	s.router.Get("/mail/confirm/{token}", authHandler.HandleConfirmEmail)
	s.router.Get("/link/{id}", linkHandler.HandleRedirect)

	s.router.Route("/user", func(r chi.Router) {
		r.Use(auth.RequireAuth(sessions))
		r.Get("/me", userHandler.HandleMe)
		r.Get("/stats", userHandler.HandleStats)
		r.Get("/links", userHandler.HandleListLinks)
		r.Post("/add-link", userHandler.HandleAddLink)
		r.Delete("/delete-link/{id}", userHandler.HandleDeleteLink)
		r.Patch("/patch-link/{id}", userHandler.HandlePatchLink)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and blocks until the server stops.
// It returns nil after a clean Shutdown, including one that happened
// before Start was called.
func (s *Server) Start() error {
	s.logger.Info("server starting",
		slog.Int("port", s.config.Port),
		slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, drains the mail queue and releases the
// database. Later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error

		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		s.logger.Info("http server stopped")

		if s.dispatcher != nil {
			if err := s.dispatcher.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("mail dispatcher: %w", err))
			}
		}

		errs = append(errs, s.closeResources()...)
		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("server stopped gracefully")
	})
	return s.shutdownErr
}

// closeResources stops the inline consumer and closes the relay and the
// database.
func (s *Server) closeResources() []error {
	var errs []error

	if s.consumerCancel != nil {
		s.consumerCancel()
		<-s.consumerDone
	}
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp relay: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errs
}

// ensureDataDir creates the parent directory of a file-backed SQLite
// database.
func ensureDataDir(dsn string) error {
	if strings.Contains(dsn, "://") || dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") {
		return nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
