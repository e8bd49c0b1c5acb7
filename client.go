// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package syncprobe wires configuration, the RabbitMQ transport and
// synchronous endpoints together.
package syncprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/glimte/syncprobe/browser"
	"github.com/glimte/syncprobe/config"
	"github.com/glimte/syncprobe/correlation"
	"github.com/glimte/syncprobe/correlation/redisstore"
	"github.com/glimte/syncprobe/endpoint"
	"github.com/glimte/syncprobe/health"
	"github.com/glimte/syncprobe/internal/rabbitmq"
	rabbitmqTransport "github.com/glimte/syncprobe/transports/rabbitmq"
	"github.com/redis/go-redis/v9"
)

// closingTransport is an endpoint transport that owns resources
type closingTransport interface {
	endpoint.Transport
	Close() error
}

// Client owns a broker connection and hands out endpoints on it
type Client struct {
	config    *config.Config
	transport closingTransport
	redis     redis.UniversalClient
	ownsRedis bool
	store     correlation.ObjectStore
	logger    *slog.Logger

	mu        sync.Mutex
	endpoints []*endpoint.SyncEndpoint
	closed    bool
}

// clientConfig holds client configuration
type clientConfig struct {
	logger           *slog.Logger
	redis            redis.UniversalClient
	transportOptions []rabbitmqTransport.TransportOption
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithRedisClient uses client for the shared reply store instead of
// dialing redis.addr from the configuration
func WithRedisClient(client redis.UniversalClient) ClientOption {
	return func(cfg *clientConfig) {
		cfg.redis = client
	}
}

// WithTransportOptions passes extra options to the RabbitMQ transport
func WithTransportOptions(opts ...rabbitmqTransport.TransportOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.transportOptions = append(cfg.transportOptions, opts...)
	}
}

// NewClient connects to the broker named in cfg
func NewClient(ctx context.Context, cfg *config.Config, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ccfg := newClientConfig(options)

	transportOpts := append(TransportOptions(cfg.AMQP, ccfg.logger), ccfg.transportOptions...)
	transport, err := rabbitmqTransport.NewTransport(ctx, cfg.AMQP.URL, transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	client, err := newClient(cfg, transport, ccfg)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	ccfg.logger.Info("syncprobe client ready",
		"url", rabbitmq.SanitizeURL(cfg.AMQP.URL),
		"sharedStore", client.redis != nil)
	return client, nil
}

func newClientConfig(options []ClientOption) *clientConfig {
	ccfg := &clientConfig{logger: slog.Default()}
	for _, opt := range options {
		opt(ccfg)
	}
	return ccfg
}

func newClient(cfg *config.Config, transport closingTransport, ccfg *clientConfig) (*Client, error) {
	c := &Client{
		config:    cfg,
		transport: transport,
		redis:     ccfg.redis,
		logger:    ccfg.logger,
	}

	if c.redis == nil && cfg.Redis.Enabled() {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.ownsRedis = true
	}

	if c.redis != nil {
		store, err := redisstore.New(c.redis,
			redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix),
			redisstore.WithTTL(cfg.Redis.TTL),
			redisstore.WithLogger(c.logger))
		if err != nil {
			c.closeRedis()
			return nil, fmt.Errorf("failed to create reply store: %w", err)
		}
		c.store = store
	}

	return c, nil
}

// TransportOptions maps the amqp section onto transport options
func TransportOptions(cfg config.AMQPConfig, logger *slog.Logger) []rabbitmqTransport.TransportOption {
	return []rabbitmqTransport.TransportOption{
		rabbitmqTransport.WithLogger(logger),
		rabbitmqTransport.WithDeclareQueues(cfg.DeclareQueues),
		rabbitmqTransport.WithConnectionOptions(
			rabbitmq.WithReconnectDelay(cfg.ReconnectDelay),
			rabbitmq.WithMaxRetries(cfg.MaxReconnects),
			rabbitmq.WithConnectTimeout(cfg.ConnectTimeout),
		),
		rabbitmqTransport.WithPoolOptions(rabbitmq.WithMaxSize(cfg.PoolSize)),
		rabbitmqTransport.WithPublisherOptions(
			rabbitmq.WithConfirmTimeout(cfg.ConfirmTimeout),
			rabbitmq.WithPublishRetries(cfg.PublishRetries),
		),
	}
}

// EndpointOptions maps the endpoint section onto endpoint options.
// A nil store keeps the per-producer in-memory store.
func EndpointOptions(cfg config.EndpointConfig, store correlation.ObjectStore, logger *slog.Logger) []endpoint.Option {
	opts := []endpoint.Option{
		endpoint.WithName(cfg.Name),
		endpoint.WithTimeout(cfg.Timeout),
		endpoint.WithPollingInterval(cfg.PollingInterval),
		endpoint.WithLogger(logger),
	}
	if cfg.Destination != "" {
		opts = append(opts, endpoint.WithDestinationName(cfg.Destination))
	}
	if cfg.ReplyDestination != "" {
		opts = append(opts, endpoint.WithReplyDestinationName(cfg.ReplyDestination))
	}
	if store != nil {
		opts = append(opts, endpoint.WithObjectStore(store))
	}
	return opts
}

// LocatorOptions maps the browser section onto element locator options.
// Screenshots are written to screenshotDir when one is configured.
func LocatorOptions(cfg config.BrowserConfig, testName string, logger *slog.Logger) []browser.LocatorOption {
	opts := []browser.LocatorOption{
		browser.WithMaxRetries(cfg.MaxRetries),
		browser.WithWaitTimeout(cfg.WaitTimeout),
		browser.WithPollInterval(cfg.PollInterval),
		browser.WithLogger(logger),
	}
	if cfg.ScreenshotDir != "" {
		opts = append(opts, browser.WithScreenshots(
			browser.NewFileScreenshots(cfg.ScreenshotDir, testName, cfg.Type, logger)))
	}
	return opts
}

// Endpoint creates a synchronous endpoint from the configured defaults.
// options are applied after the configuration and win over it.
func (c *Client) Endpoint(options ...endpoint.Option) (*endpoint.SyncEndpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, endpoint.ErrEndpointClosed
	}

	opts := append(EndpointOptions(c.config.Endpoint, c.store, c.logger), options...)
	ep, err := endpoint.NewSyncEndpoint(c.transport, opts...)
	if err != nil {
		return nil, err
	}
	c.endpoints = append(c.endpoints, ep)
	return ep, nil
}

// Transport returns the underlying transport
func (c *Client) Transport() endpoint.Transport {
	return c.transport
}

// ObjectStore returns the shared reply store, or nil when replies stay in memory
func (c *Client) ObjectStore() correlation.ObjectStore {
	return c.store
}

// Health checks the broker, the configured request queue and the shared
// reply store. Destinations with ${name} placeholders are not inspected.
func (c *Client) Health(ctx context.Context) health.Report {
	registry := health.NewRegistry()
	if probe, ok := c.transport.(health.BrokerProbe); ok {
		registry.Register(health.NewBrokerChecker(probe))
	}
	if inspector, ok := c.transport.(health.QueueInspector); ok {
		if dest := c.config.Endpoint.Destination; dest != "" && !strings.Contains(dest, "${") {
			registry.Register(health.NewResponderChecker(inspector, dest, 0))
		}
	}
	if c.redis != nil {
		registry.Register(health.NewRedisChecker(c.redis))
	}

	report := registry.Check(ctx)
	for _, name := range report.Names() {
		check := report.Checks[name]
		c.logger.Debug("health check", "check", name, "status", check.Status, "message", check.Message)
	}
	return report
}

// Close closes all endpoints and the broker connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	endpoints := c.endpoints
	c.endpoints = nil
	c.mu.Unlock()

	var errs []error
	for _, ep := range endpoints {
		if err := ep.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.closeRedis(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) closeRedis() error {
	if c.ownsRedis && c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// AMQPEndpoint is an endpoint that owns its client
type AMQPEndpoint struct {
	*endpoint.SyncEndpoint
	client *Client
}

// NewAMQPEndpoint connects with cfg and returns a single endpoint.
// Closing the endpoint closes the connection.
func NewAMQPEndpoint(ctx context.Context, cfg *config.Config, options ...endpoint.Option) (*AMQPEndpoint, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ep, err := client.Endpoint(options...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &AMQPEndpoint{SyncEndpoint: ep, client: client}, nil
}

// Client returns the client owning the endpoint
func (e *AMQPEndpoint) Client() *Client {
	return e.client
}

// Close closes the endpoint and its connection
func (e *AMQPEndpoint) Close() error {
	return e.client.Close()
}
