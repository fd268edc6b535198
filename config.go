package grove

import (
	"fmt"
	"time"

	"github.com/grovekit/grove/policy"
	queue "github.com/grovekit/grove/service/messaging/memory"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful - all nested fields inherit their package defaults.

type Config struct {
	Messaging MessagingConfig `json:"messaging" yaml:"messaging"`

	// Policy optionally gates approval nodes for every run started through
	// the runtime.
	Policy *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// MessagingConfig sizes the in-memory queues backing events and approvals.
type MessagingConfig struct {
	Buffer     int `json:"buffer" yaml:"buffer"`
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Messaging: MessagingConfig{
			Buffer:     100,
			MaxRetries: 3,
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Messaging.Buffer <= 0 {
		return fmt.Errorf("messaging.buffer must be > 0")
	}
	if c.Messaging.MaxRetries < 0 {
		return fmt.Errorf("messaging.maxRetries must be >= 0")
	}
	return nil
}

// queueConfig maps the messaging settings onto a memory queue configuration.
func (c *Config) queueConfig() queue.Config {
	return queue.Config{
		MaxRetries:  c.Messaging.MaxRetries,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: c.Messaging.Buffer,
	}
}
