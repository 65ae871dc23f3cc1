package redis

import "time"

// Config holds the Redis connection settings. An empty ConnectionURL
// disables Redis-backed features.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                              // ConnectionURL in the form "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`    // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`   // RetryInterval is the wait between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"` // ConnectTimeout bounds the whole connect phase.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"notify:"`  // KeyPrefix namespaces every key written by this service.
}

// Enabled reports whether Redis is configured.
func (c Config) Enabled() bool { return c.ConnectionURL != "" }
