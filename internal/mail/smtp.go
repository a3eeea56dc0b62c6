package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig points at a submission server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport sends each message over a fresh SMTP session, so workers
// never share a connection.
type SMTPTransport struct {
	host string
	opts []gomail.Option
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	t := &SMTPTransport{host: cfg.Host, opts: opts}

	// Fail at startup on bad options rather than on the first email.
	if _, err := gomail.NewClient(t.host, t.opts...); err != nil {
		return nil, fmt.Errorf("mail: configuring smtp client: %w", err)
	}
	return t, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(t.host, t.opts...)
	if err != nil {
		return fmt.Errorf("mail: creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
	}
	return nil
}

func buildMsg(msg Message) (*gomail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}
