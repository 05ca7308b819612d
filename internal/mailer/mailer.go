// Package mailer defines the outbound email contract used to deliver
// one-time codes. Transport is an external collaborator: a failed send
// returns false, never an error, and never rolls back what was persisted
// before dispatch.
package mailer

import (
	"context"
	"log/slog"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) bool
}

// LogSender is the development sender: it logs that a message would have
// been sent. Bodies carry one-time codes, so they are logged only when
// RevealBodies is explicitly enabled.
type LogSender struct {
	RevealBodies bool
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) bool {
	if s.RevealBodies {
		slog.Debug("Email dispatched (dev)", "to", to, "subject", subject, "body", body)
	} else {
		slog.Info("Email dispatched (dev)", "to", to, "subject", subject)
	}
	return true
}
