package config

import (
	"github.com/contractanalyser/authbridge/pkg/notification"
)

// EmailConfig holds SMTP settings for security notices.
type EmailConfig struct {
	Enabled  bool   `env:"AB_EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"AB_EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"AB_EMAIL_PORT" env-default:"1025"`
	Username string `env:"AB_EMAIL_USERNAME" env-default:""`
	Password string `env:"AB_EMAIL_PASSWORD" env-default:""`
	From     string `env:"AB_EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"AB_EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig.
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// ToNotifier builds the configured notifier, falling back to a no-op when
// email is disabled.
func (e EmailConfig) ToNotifier() (notification.Notifier, error) {
	if !e.Enabled {
		return notification.NoopNotifier{}, nil
	}
	return notification.NewEmailNotifier(e.ToSMTPConfig())
}
