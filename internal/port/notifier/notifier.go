// Package notifier defines the notification port (interface) and the
// adapter registry.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
// Callers treat it as "not delivered", never as a failure to escalate.
var ErrNotConfigured = errors.New("notifier: not configured")

// Message is the payload sent through a webhook-style Notifier.
type Message struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"` // e.g. "export.completed", "reminder.sent"
}

// Notifier is the port interface for sending chat-style notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "webhook").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, msg Message) error
}

// Email is one outbound email, optionally carrying a file attachment.
type Email struct {
	To         string
	Subject    string
	HTMLBody   string
	Attachment *Attachment
}

// Attachment is a file attached to an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailSender is the port interface for sending email.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}
