// Package service contains application services.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
)

// Dispatcher fans notifications out to the configured channels. Every
// send is best-effort: a failed or unconfigured channel is logged and
// reported as not-delivered, and never fails the caller.
type Dispatcher struct {
	email     notifier.EmailSender
	notifiers []notifier.Notifier
	log       *slog.Logger
}

// NewDispatcher creates a dispatcher. email may be nil when no SMTP
// configuration is present; notifiers may be empty.
func NewDispatcher(email notifier.EmailSender, notifiers []notifier.Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{email: email, notifiers: notifiers, log: log}
}

// SendEmail delivers one email. The boolean reports delivery.
func (d *Dispatcher) SendEmail(ctx context.Context, email notifier.Email) bool {
	if d.email == nil {
		d.log.Debug("email not configured, skipping send", "to", email.To, "subject", email.Subject)
		return false
	}
	if err := d.email.Send(ctx, email); err != nil {
		if errors.Is(err, notifier.ErrNotConfigured) {
			d.log.Debug("email not configured, skipping send", "to", email.To)
		} else {
			d.log.Warn("email send failed", "to", email.To, "subject", email.Subject, "error", err)
		}
		return false
	}
	d.log.Debug("email sent", "to", email.To, "subject", email.Subject)
	return true
}

// Announce sends a chat-style message to every registered notifier.
// It reports true when at least one channel delivered it.
func (d *Dispatcher) Announce(ctx context.Context, text, source string) bool {
	delivered := false
	for _, provider := range d.notifiers {
		err := provider.Send(ctx, notifier.Message{Text: text, Source: source})
		if err != nil {
			if errors.Is(err, notifier.ErrNotConfigured) {
				d.log.Debug("notifier not configured, skipping", "provider", provider.Name())
			} else {
				d.log.Warn("notification send failed", "provider", provider.Name(), "source", source, "error", err)
			}
			continue
		}
		d.log.Debug("notification sent", "provider", provider.Name(), "source", source)
		delivered = true
	}
	return delivered
}

// NotifierCount returns the number of registered chat notifiers.
func (d *Dispatcher) NotifierCount() int {
	return len(d.notifiers)
}
