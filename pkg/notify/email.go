package notify

import (
	"context"
	"fmt"

	"github.com/weilai0412/dormwatt/internal/config"
	"github.com/wneessen/go-mail"
)

// EmailNotifier sends the alert mail to a single recipient over SMTP.
type EmailNotifier struct {
	smtp      config.SMTPConfig
	recipient string
}

// NewEmailNotifier creates an email notifier for one recipient.
func NewEmailNotifier(smtp config.SMTPConfig, recipient string) *EmailNotifier {
	return &EmailNotifier{smtp: smtp, recipient: recipient}
}

func (e *EmailNotifier) Name() string { return "email:" + e.recipient }

func (e *EmailNotifier) Send(ctx context.Context, alert Alert) error {
	msg, err := buildMessage(e.smtp.Username, e.recipient, alert)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(e.smtp.Server, clientOptions(e.smtp)...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", e.recipient, err)
	}
	return nil
}

// clientOptions maps the configured security mode onto the SMTP
// negotiation path: ssl connects already encrypted, tls upgrades via
// STARTTLS after a plaintext connect, none stays unencrypted.
func clientOptions(cfg config.SMTPConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	ssl, policy := securityMode(cfg.Security)
	if ssl {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(policy))
	}
	return opts
}

func securityMode(security string) (ssl bool, policy mail.TLSPolicy) {
	switch security {
	case "ssl":
		return true, mail.TLSMandatory
	case "tls":
		return false, mail.TLSMandatory
	default:
		return false, mail.NoTLS
	}
}

func buildMessage(sender, recipient string, alert Alert) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(sender); err != nil {
		return nil, fmt.Errorf("sender address %q: %w", sender, err)
	}
	if err := m.To(recipient); err != nil {
		return nil, fmt.Errorf("recipient address %q: %w", recipient, err)
	}

	m.Subject(fmt.Sprintf("[%s] electricity balance low: %.2f", alert.Room, alert.Balance))
	m.SetBodyString(mail.TypeTextPlain, textBody(alert))

	if html, err := renderHTML(alert); err == nil {
		m.AddAlternativeString(mail.TypeTextHTML, html)
	}
	return m, nil
}

func textBody(alert Alert) string {
	return fmt.Sprintf(
		"Room %s prepaid electricity balance is %.2f, below the alert threshold of %.2f.\n"+
			"Please top up soon to avoid a power cut.\n\nChecked at %s.\n",
		alert.Room, alert.Balance, alert.Threshold, alert.At.Format("2006-01-02 15:04:05"),
	)
}
