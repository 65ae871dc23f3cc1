package email

// Config holds email service configuration.
// Postmark tokens act as the feature flag: when either is empty the email
// channel is considered unconfigured and notifications stay in-app only.
// DevDir switches to DevSender so emails land on disk during development.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"notifications@example.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@example.com"`
	DevDir               string `env:"EMAIL_DEV_DIR"`
}

// PostmarkEnabled reports whether production email delivery is configured.
func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}

// NewFromConfig picks the sender matching cfg: Postmark when tokens are set,
// DevSender when DevDir is set, otherwise ErrNotConfigured.
func NewFromConfig(cfg Config) (EmailSender, error) {
	switch {
	case cfg.PostmarkEnabled():
		return NewPostmarkClient(cfg)
	case cfg.DevDir != "":
		return NewDevSender(cfg.DevDir), nil
	default:
		return nil, ErrNotConfigured
	}
}
