package mail

import (
	"context"
	"log/slog"
)

// Transport delivers one message. Implementations must be safe for
// concurrent use: the dispatcher calls Send from several workers.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Queue accepts messages for asynchronous delivery.
type Queue interface {
	Enqueue(msg Message) error
}

// LogTransport writes messages to the logger instead of sending them.
// It is the fallback when no SMTP host is configured. Bodies carry live
// account links, so they are only logged at debug level.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "mail not sent (log transport)",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	t.logger.DebugContext(ctx, "mail body (log transport)",
		slog.String("to", msg.To),
		slog.String("html", msg.HTML),
	)
	return nil
}
