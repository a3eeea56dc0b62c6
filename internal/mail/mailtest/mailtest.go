// Package mailtest provides a mail.Transport that records instead of sending.
package mailtest

import (
	"context"
	"strings"
	"sync"

	"github.com/albizan/shortify-backend/internal/mail"
)

// Recorder keeps every message it is given.
type Recorder struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

// NewRecorder returns a Recorder whose Send records the message and then
// returns err.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mail.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// LastURLWithPrefix returns the last path segment after prefix found in any
// recorded message body, newest first. It is how tests pull a mailed token
// back out: LastURLWithPrefix("/confirm-email/").
func (r *Recorder) LastURLWithPrefix(prefix string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		body := r.sent[i].HTML
		idx := strings.Index(body, prefix)
		if idx < 0 {
			continue
		}
		rest := body[idx+len(prefix):]
		if end := strings.IndexAny(rest, `"<`); end >= 0 {
			rest = rest[:end]
		}
		return rest, true
	}
	return "", false
}
