package endpoint

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/correlation"
	"github.com/jonboulle/clockwork"
)

// Defaults
const (
	DefaultTimeout         = 5 * time.Second
	DefaultPollingInterval = correlation.DefaultPollingInterval
	DefaultName            = "sync-endpoint"
	DefaultListenTimeout   = time.Minute
)

// Configuration holds the settings of a synchronous endpoint.
// Destination names may contain ${var} placeholders resolved from the test context.
type Configuration struct {
	Name                 string
	Destination          Destination
	DestinationName      string
	ReplyDestination     Destination
	ReplyDestinationName string
	Timeout              time.Duration
	ListenTimeout        time.Duration
	PollingInterval      time.Duration
	Correlator           correlation.MessageCorrelator
	ObjectStore          correlation.ObjectStore
	Clock                clockwork.Clock
	Logger               *slog.Logger
}

// Option configures the endpoint
type Option func(*Configuration)

// WithName sets the endpoint name, the producer is named after it
func WithName(name string) Option {
	return func(c *Configuration) {
		c.Name = name
	}
}

// WithDestination sets an already resolved request destination
func WithDestination(dest Destination) Option {
	return func(c *Configuration) {
		c.Destination = dest
	}
}

// WithDestinationName sets the request destination by name
func WithDestinationName(name string) Option {
	return func(c *Configuration) {
		c.DestinationName = name
	}
}

// WithReplyDestination sets an already resolved reply destination
func WithReplyDestination(dest Destination) Option {
	return func(c *Configuration) {
		c.ReplyDestination = dest
	}
}

// WithReplyDestinationName sets the reply destination by name
func WithReplyDestinationName(name string) Option {
	return func(c *Configuration) {
		c.ReplyDestinationName = name
	}
}

// WithTimeout sets the default reply timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Configuration) {
		c.Timeout = timeout
	}
}

// WithPollingInterval sets the delay between two reply checks
func WithPollingInterval(interval time.Duration) Option {
	return func(c *Configuration) {
		c.PollingInterval = interval
	}
}

// WithCorrelator sets the message correlator
func WithCorrelator(correlator correlation.MessageCorrelator) Option {
	return func(c *Configuration) {
		c.Correlator = correlator
	}
}

// WithObjectStore shares a store between producers. Keys must be globally unique then.
func WithObjectStore(store correlation.ObjectStore) Option {
	return func(c *Configuration) {
		c.ObjectStore = store
	}
}

// WithClock sets the clock used while polling for replies
func WithClock(clock clockwork.Clock) Option {
	return func(c *Configuration) {
		c.Clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Configuration) {
		c.Logger = logger
	}
}

// WithListenTimeout bounds how long a reply listener keeps waiting after Send
// when no Receive claims the exchange. A Receive extends the listener to its
// own timeout.
func WithListenTimeout(timeout time.Duration) Option {
	return func(c *Configuration) {
		c.ListenTimeout = timeout
	}
}

// NewConfiguration creates a configuration with defaults applied before options
func NewConfiguration(options ...Option) *Configuration {
	c := &Configuration{
		Name:            DefaultName,
		Timeout:         DefaultTimeout,
		ListenTimeout:   DefaultListenTimeout,
		PollingInterval: DefaultPollingInterval,
		Correlator:      correlation.NewDefaultMessageCorrelator(),
		Clock:           clockwork.NewRealClock(),
		Logger:          slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Validate checks the configuration
func (c *Configuration) Validate() error {
	if c.Destination.IsZero() && c.DestinationName == "" {
		return ErrNoDestination
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %v", contracts.ErrInvalidInput, c.Timeout)
	}
	if c.ListenTimeout < 0 {
		return fmt.Errorf("%w: listen timeout must not be negative, got %v", contracts.ErrInvalidInput, c.ListenTimeout)
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("%w: polling interval must be positive, got %v", contracts.ErrInvalidInput, c.PollingInterval)
	}
	if c.Correlator == nil {
		return fmt.Errorf("%w: correlator is required", contracts.ErrInvalidInput)
	}
	return nil
}

// ReplyStrategy selects how the reply channel of an exchange is obtained
type ReplyStrategy int

const (
	// ReplyExplicit uses the configured reply destination as is
	ReplyExplicit ReplyStrategy = iota
	// ReplyNamed resolves the reply destination name through the transport
	ReplyNamed
	// ReplyTemporary creates a destination per exchange and deletes it afterwards
	ReplyTemporary
)

func (s ReplyStrategy) String() string {
	switch s {
	case ReplyExplicit:
		return "explicit"
	case ReplyNamed:
		return "named"
	case ReplyTemporary:
		return "temporary"
	default:
		return fmt.Sprintf("ReplyStrategy(%d)", int(s))
	}
}

// ReplyStrategy returns the strategy this configuration selects:
// explicit reply destination, then reply destination name, then temporary.
func (c *Configuration) ReplyStrategy() ReplyStrategy {
	switch {
	case !c.ReplyDestination.IsZero():
		return ReplyExplicit
	case c.ReplyDestinationName != "":
		return ReplyNamed
	default:
		return ReplyTemporary
	}
}
