// Package config holds the process-wide defaults courier run parses its
// flags into, plus the validation applied once at startup.
package config

import (
	"fmt"
	"time"

	"github.com/couriermq/courier/pkg/log"
)

// Config is the fully-resolved set of process defaults: per-resource TTLs
// applied when a create request omits them, and the server's bind address
// and logging setup.
type Config struct {
	DefaultMessageTTL      time.Duration
	DefaultTopicTTL        time.Duration
	DefaultSubscriptionTTL time.Duration
	DefaultAckDeadline     time.Duration
	DefaultMaxMessages     int
	CleanupInterval        time.Duration

	Host string
	Port int

	LogLevel log.Level
	LogJSON  bool
}

// Default returns the out-of-the-box configuration: no TTLs (nothing
// expires unless a caller opts in), a 30s ack deadline, pulls returning at
// most 10 messages when a request omits max_messages, a 1s cleanup
// interval, and the server bound to localhost:8080.
func Default() Config {
	return Config{
		DefaultMessageTTL:      0,
		DefaultTopicTTL:        0,
		DefaultSubscriptionTTL: 0,
		DefaultAckDeadline:     30 * time.Second,
		DefaultMaxMessages:     10,
		CleanupInterval:        time.Second,
		Host:                   "127.0.0.1",
		Port:                   8080,
		LogLevel:               log.InfoLevel,
		LogJSON:                false,
	}
}

// Validate rejects configurations that cannot possibly bind or run: a
// negative duration anywhere, a non-positive max-messages default, or a
// port outside the valid TCP range.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"default-message-ttl":      c.DefaultMessageTTL,
		"default-topic-ttl":        c.DefaultTopicTTL,
		"default-subscription-ttl": c.DefaultSubscriptionTTL,
		"default-ack-deadline":     c.DefaultAckDeadline,
		"cleanup-interval":         c.CleanupInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.DefaultMaxMessages <= 0 {
		return fmt.Errorf("default-max-messages must be positive, got %d", c.DefaultMaxMessages)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	switch c.LogLevel {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
