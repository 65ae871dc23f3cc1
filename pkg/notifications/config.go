package notifications

import (
	"fmt"
	"os"
	"time"
)

// Config holds the notification engine settings.
type Config struct {
	AdminEmails    []string      `env:"NOTIFY_ADMIN_EMAILS" envSeparator:","`
	SendWorkers    int           `env:"NOTIFY_SEND_WORKERS" envDefault:"4"`
	SendQueueSize  int           `env:"NOTIFY_SEND_QUEUE_SIZE" envDefault:"1024"`
	SendRate       float64       `env:"NOTIFY_SEND_RATE" envDefault:"10"`
	SendDrain      time.Duration `env:"NOTIFY_SEND_DRAIN" envDefault:"15s"`
	FeedBuffer     int           `env:"NOTIFY_FEED_BUFFER" envDefault:"16"`
	PolicyFile     string        `env:"NOTIFY_POLICY_FILE"`
	IdempotencyTTL time.Duration `env:"NOTIFY_IDEMPOTENCY_TTL" envDefault:"24h"`
	AppName        string        `env:"APP_NAME" envDefault:"Harvest Lane"`
	AppBaseURL     string        `env:"APP_BASE_URL"`
}

// SendPoolOptions converts the config into send pool options.
func (c Config) SendPoolOptions() []SendPoolOption {
	return []SendPoolOption{
		WithWorkers(c.SendWorkers),
		WithQueueSize(c.SendQueueSize),
		WithRate(c.SendRate),
	}
}

// LoadPolicyFile returns the policy from path, or the default policy when
// path is empty.
func LoadPolicyFile(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return LoadPolicy(data)
}
