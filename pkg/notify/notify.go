// Package notify sends the external-customer form-link email the
// Next-Step Resolver triggers when a next activity's role resolves
// to external_customer, satisfying pkg/resolver.Notifier.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/codeready-toolchain/bpmflow/pkg/resolver"
)

// SMTPConfig is the mail transport's connection settings.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	ReplyTo      string
	SupportEmail string
}

// Mailer sends HTML emails over SMTP with STARTTLS, mirroring the
// source system's smtp_handler.send_email.
type Mailer struct {
	cfg SMTPConfig
}

// New returns a Mailer configured against cfg.
func New(cfg SMTPConfig) *Mailer {
	if cfg.From == "" {
		cfg.From = "noreply@process-gpt.io"
	}
	if cfg.ReplyTo == "" {
		cfg.ReplyTo = "help@uengine.org"
	}
	if cfg.SupportEmail == "" {
		cfg.SupportEmail = cfg.ReplyTo
	}
	return &Mailer{cfg: cfg}
}

var _ resolver.Notifier = (*Mailer)(nil)

// SendFormLink emails to a rendered HTML template pointing at formURL.
func (m *Mailer) SendFormLink(ctx context.Context, to, subject, formURL string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("notify: set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("notify: set to address %q: %w", to, err)
	}
	msg.ReplyTo(m.cfg.ReplyTo)
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, formLinkTemplate(subject, formURL, m.cfg.SupportEmail))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("notify: build smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send email to %q: %w", to, err)
	}
	return nil
}

func formLinkTemplate(title, url, supportEmail string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%s</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px;">
  <div style="max-width: 600px; background-color: #fff; padding: 30px; border-radius: 8px; box-shadow: 0 0 10px rgba(0,0,0,0.1); text-align: center; margin: 0 auto;">
    <h2 style="color: #333; margin-bottom: 20px;">A step is waiting for you</h2>
    <p style="color: #555; font-size: 16px; line-height: 1.5;">%s: please follow the link below to review and complete it.</p>
    <div style="margin: 30px 0;">
      <a href="%s" style="display: inline-block; padding: 12px 24px; background-color: #0366d6; color: #fff; text-decoration: none; border-radius: 5px; font-weight: bold;">%s</a>
    </div>
    <p style="margin-top: 30px; font-size: 13px; color: #888; line-height: 1.5;">If you run into problems, please contact our support team at %s.</p>
  </div>
</body>
</html>`, title, title, url, title, supportEmail)
}
