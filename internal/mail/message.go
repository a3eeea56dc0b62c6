// Package mail sends the transactional emails of the service.
//
// The flow is:
//
//	Notifier ──Enqueue──▶ Dispatcher (buffered channel + workers) ──Send──▶ Transport
//
// The Notifier is what the auth workflow talks to. It never blocks on
// delivery and never reports failure to its caller. Transports decide where
// a Message actually goes: an SMTP server, the log, or a RabbitMQ queue that
// a separate mailer process drains.
package mail

import (
	"fmt"
	"html"
)

// Kind labels a message for logging and routing.
type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindPasswordReset Kind = "password-reset"
)

// Message is a single outbound email. It is also the JSON payload relayed
// through RabbitMQ, so field names are part of the wire format.
type Message struct {
	Kind    Kind   `json:"kind"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Validate checks the fields every transport needs.
func (m Message) Validate() error {
	switch {
	case m.From == "":
		return fmt.Errorf("mail: message has no sender")
	case m.To == "":
		return fmt.Errorf("mail: message has no recipient")
	case m.Subject == "":
		return fmt.Errorf("mail: message has no subject")
	}
	return nil
}

func confirmationMessage(from, to, url string) Message {
	u := html.EscapeString(url)
	return Message{
		Kind:    KindConfirmation,
		From:    from,
		To:      to,
		Subject: "Confirm your email",
		HTML:    fmt.Sprintf(`Please click on this link to confirm your email: <a href="%s">%s</a>`, u, u),
	}
}

func passwordResetMessage(from, to, url string) Message {
	u := html.EscapeString(url)
	return Message{
		Kind:    KindPasswordReset,
		From:    from,
		To:      to,
		Subject: "Set your new password",
		HTML:    fmt.Sprintf(`Please follow this link to set a new password: <a href="%s">%s</a>`, u, u),
	}
}
