package mail

import (
	"context"
	"log/slog"
)

// DefaultFrom is the sender used when MAIL_FROM is unset.
const DefaultFrom = "Activation <activation@shortify.com>"

// Notifier turns workflow events into queued emails. Its methods return
// nothing: a message that cannot be queued is logged and dropped.
type Notifier struct {
	queue  Queue
	from   string
	logger *slog.Logger
}

func NewNotifier(q Queue, from string, logger *slog.Logger) *Notifier {
	if from == "" {
		from = DefaultFrom
	}
	return &Notifier{queue: q, from: from, logger: logger}
}

// SendConfirmation queues the account activation email.
func (n *Notifier) SendConfirmation(ctx context.Context, email, activationURL string) {
	n.enqueue(ctx, confirmationMessage(n.from, email, activationURL))
}

// SendPasswordReset queues the "set your new password" email.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, resetURL string) {
	n.enqueue(ctx, passwordResetMessage(n.from, email, resetURL))
}

func (n *Notifier) enqueue(ctx context.Context, msg Message) {
	if err := n.queue.Enqueue(msg); err != nil {
		n.logger.ErrorContext(ctx, "cannot queue email",
			slog.String("kind", string(msg.Kind)),
			slog.String("to", msg.To),
			slog.String("error", err.Error()),
		)
	}
}
