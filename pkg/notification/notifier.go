package notification

import "context"

// NoticeType identifies a security notice sent to an account's email.
type NoticeType string

const (
	NoticeSecondFactorVerified NoticeType = "second_factor_verified"
	NoticeMobileSignIn         NoticeType = "mobile_sign_in"
)

// Notice is one security notification addressed to a user.
type Notice struct {
	Type    NoticeType
	To      string
	Subject string
	Body    string
}

// Notifier delivers security notices. Delivery failures are reported to the
// caller but never block the authentication path.
type Notifier interface {
	Send(ctx context.Context, notice Notice) error
}

// NoopNotifier discards every notice. Used when no SMTP host is configured
// and in tests.
type NoopNotifier struct{}

func (NoopNotifier) Send(ctx context.Context, notice Notice) error { return nil }
