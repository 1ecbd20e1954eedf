// Package notify delivers operator notifications, such as a stale session
// cookie that needs a fresh login.
package notify

import (
	"context"
	"errors"
	"time"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
)

// Message is one operator notification.
type Message struct {
	Kind    errs.Kind
	Subject string
	Body    string
	Time    time.Time
}

// Notifier delivers messages to an operator.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var all []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// LogNotifier writes messages to the run log.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a notifier that logs at warn level.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.WarnWithFields(msg.Subject, map[string]interface{}{
		"kind": string(msg.Kind),
		"body": msg.Body,
	})
	return nil
}

// New builds the notifier chain for cfg. The log notifier is always present.
func New(cfg config.NotificationConfig, log logger.Logger) Notifier {
	chain := Multi{NewLogNotifier(log)}
	if cfg.EmailEnabled() {
		chain = append(chain, NewEmailNotifier(cfg))
	}
	if cfg.Desktop {
		if d := NewDesktopNotifier(); d != nil {
			chain = append(chain, d)
		}
	}
	return chain
}

// SessionExpired builds the message sent when persisted cookies no longer authenticate.
func SessionExpired(cookieFile string, cause error) Message {
	body := "The saved session at " + cookieFile + " is no longer accepted. Run `postscraper auth login` or scrape with credentials to refresh it."
	if cause != nil {
		body += "\n\nCause: " + cause.Error()
	}
	return Message{
		Kind:    errs.KindSessionExpired,
		Subject: "postscraper: session cookies expired",
		Body:    body,
		Time:    time.Now(),
	}
}
