package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailNotifier sends security notices over SMTP.
type EmailNotifier struct {
	config SMTPConfig
	client *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	} else {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &EmailNotifier{config: config, client: client}, nil
}

func (n *EmailNotifier) Send(ctx context.Context, notice Notice) error {
	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(notice.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(notice.Subject)
	msg.SetBodyString(mail.TypeTextPlain, notice.Body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("failed to send notice", "type", notice.Type, "err", err)
		return fmt.Errorf("failed to send notice: %w", err)
	}
	slog.Info("sent security notice", "type", notice.Type, "to", notice.To)
	return nil
}
