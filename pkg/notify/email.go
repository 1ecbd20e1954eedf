package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"postscraper/pkg/config"
)

// EmailNotifier sends messages over SMTP.
type EmailNotifier struct {
	cfg config.NotificationConfig
	// send is swapped in tests.
	send func(e *email.Email, addr string, a smtp.Auth) error
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(cfg config.NotificationConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from := n.cfg.From
	if from == "" {
		from = n.cfg.SMTPUsername
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("postscraper <%s>", from)
	mail.To = strings.Split(n.cfg.To, ",")
	for i := range mail.To {
		mail.To[i] = strings.TrimSpace(mail.To[i])
	}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	var auth smtp.Auth
	if n.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}
	err := n.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}
