package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/correlation"
	"github.com/glimte/syncprobe/testcontext"
)

// SyncProducer sends requests and receives the correlated replies.
// It acts as both producer and consumer of its endpoint.
type SyncProducer struct {
	name       string
	config     *Configuration
	transport  Transport
	manager    *correlation.PollingCorrelationManager
	correlator correlation.MessageCorrelator
	exchanges  *exchangeTracker
	logger     *slog.Logger
	mu         sync.Mutex
	closed     bool
}

func newSyncProducer(name string, cfg *Configuration, transport Transport) *SyncProducer {
	managerOpts := []correlation.ManagerOption{
		correlation.WithPollingInterval(cfg.PollingInterval),
		correlation.WithManagerLogger(cfg.Logger),
	}
	if cfg.Clock != nil {
		managerOpts = append(managerOpts, correlation.WithClock(cfg.Clock))
	}
	if cfg.ObjectStore != nil {
		managerOpts = append(managerOpts, correlation.WithObjectStore(cfg.ObjectStore))
	}

	return &SyncProducer{
		name:       name,
		config:     cfg,
		transport:  transport,
		manager:    correlation.NewPollingCorrelationManager(managerOpts...),
		correlator: cfg.Correlator,
		exchanges:  newExchangeTracker(),
		logger:     cfg.Logger.With("producer", name),
	}
}

// Name returns the producer name
func (p *SyncProducer) Name() string {
	return p.name
}

// CorrelationManager returns the manager holding this producer's pending replies
func (p *SyncProducer) CorrelationManager() *correlation.PollingCorrelationManager {
	return p.manager
}

// CorrelationKeyName returns the test variable the producer saves its keys under
func (p *SyncProducer) CorrelationKeyName() string {
	return p.correlator.GetCorrelationKeyName(p.name)
}

// Send publishes msg and starts listening for its reply. The reply channel
// is established before Send returns.
func (p *SyncProducer) Send(ctx context.Context, msg *contracts.Message, tctx *testcontext.Context) error {
	if msg.IsEmpty() {
		return &InvalidInputError{Reason: emptyMessageReason}
	}
	if tctx == nil {
		return &InvalidInputError{Reason: "test context is required"}
	}
	if p.isClosed() {
		return ErrEndpointClosed
	}

	dest, err := p.resolveDestination(ctx, tctx)
	if err != nil {
		return err
	}

	request := msg.Copy()
	key := p.correlator.GetCorrelationKey(request)
	request.SetCorrelationID(key)

	channel, err := openReplyChannel(ctx, p.transport, p.config, tctx)
	if err != nil {
		return err
	}
	request.SetReplyTo(channel.destination.Name)
	p.manager.SaveCorrelationKey(p.CorrelationKeyName(), key, tctx)

	p.logger.Debug("sending synchronous request",
		"destination", dest.Name,
		"replyTo", channel.destination.Name,
		"strategy", channel.strategy.String(),
		"correlationKey", key)

	if err := p.transport.Send(ctx, dest, request); err != nil {
		channel.release(context.WithoutCancel(ctx))
		sendErr := &SendError{Destination: dest, Err: err}
		p.exchanges.track(&pendingExchange{
			exchange: Exchange{
				CorrelationKey: key,
				RequestID:      request.GetID(),
				Destination:    dest,
				ReplyTo:        channel.destination,
				Strategy:       channel.strategy,
				Status:         ExchangeFailed,
				SentAt:         time.Now(),
				CompletedAt:    time.Now(),
				Err:            sendErr,
			},
			channel: channel,
			cancel:  func() {},
			done:    closedChan(),
		})
		return sendErr
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pending := &pendingExchange{
		exchange: Exchange{
			CorrelationKey: key,
			RequestID:      request.GetID(),
			Destination:    dest,
			ReplyTo:        channel.destination,
			Strategy:       channel.strategy,
			Status:         ExchangeAwaitingReply,
			SentAt:         time.Now(),
		},
		channel:  channel,
		cancel:   cancel,
		done:     make(chan struct{}),
		deadline: p.now().Add(max(p.config.Timeout, p.config.ListenTimeout)),
	}
	if prev := p.exchanges.track(pending); prev != nil && !prev.exchange.Status.IsTerminal() {
		prev.cancel()
	}

	go p.listen(listenCtx, pending)

	p.logger.Info("synchronous request sent, awaiting reply",
		"destination", dest.Name,
		"correlationKey", key)
	return nil
}

// ReceiveOption configures a single Receive
type ReceiveOption func(*receiveOptions)

type receiveOptions struct {
	timeout        time.Duration
	correlationKey string
}

// WithReceiveTimeout overrides the endpoint timeout for one Receive
func WithReceiveTimeout(timeout time.Duration) ReceiveOption {
	return func(o *receiveOptions) {
		o.timeout = timeout
	}
}

// WithCorrelationKey receives the reply for key instead of the key saved by the last Send
func WithCorrelationKey(key string) ReceiveOption {
	return func(o *receiveOptions) {
		o.correlationKey = key
	}
}

// Receive waits for the reply of the latest exchange, or of an explicit
// correlation key. Exhausting the timeout returns a *correlation.TimeoutError.
func (p *SyncProducer) Receive(ctx context.Context, tctx *testcontext.Context, opts ...ReceiveOption) (*contracts.Message, error) {
	o := receiveOptions{timeout: p.config.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	key := o.correlationKey
	if key == "" {
		var err error
		key, err = p.manager.GetCorrelationKey(p.CorrelationKeyName(), tctx)
		if err != nil {
			return nil, err
		}
	}

	if pending, ok := p.exchanges.get(key); ok {
		pending.extend(p.now().Add(o.timeout))
	}

	p.logger.Debug("waiting for reply", "correlationKey", key, "timeout", o.timeout)

	reply, err := p.manager.Find(ctx, key, o.timeout)
	p.completeExchange(key, err)
	if err != nil {
		p.logger.Warn("no reply received", "correlationKey", key, "error", err)
		return nil, err
	}

	p.logger.Info("received synchronous reply",
		"correlationKey", key,
		"messageId", reply.GetID())
	return reply, nil
}

// DeliverReply hands a received reply to the correlation manager
func (p *SyncProducer) DeliverReply(ctx context.Context, correlationKey string, reply *contracts.Message) error {
	return p.manager.Store(ctx, correlationKey, reply)
}

// Exchange returns the state of the exchange for key. Unknown keys report idle.
func (p *SyncProducer) Exchange(correlationKey string) (Exchange, bool) {
	return p.exchanges.snapshot(correlationKey)
}

// Close stops all reply listeners and releases their reply channels
func (p *SyncProducer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for _, pending := range p.exchanges.active() {
		pending.cancel()
		<-pending.done
		p.exchanges.finish(pending.exchange.CorrelationKey, ErrEndpointClosed)
	}
	return nil
}

// listen waits for the reply until it arrives, the exchange completes or the
// listener deadline passes. The deadline is re-read after every receive window.
func (p *SyncProducer) listen(ctx context.Context, pending *pendingExchange) {
	defer close(pending.done)
	defer pending.channel.release(context.WithoutCancel(ctx))

	key := pending.exchange.CorrelationKey
	window := max(p.config.Timeout, p.config.PollingInterval)

	for {
		remaining := pending.listenDeadline().Sub(p.now())
		if remaining <= 0 {
			p.logger.Debug("reply listener timed out", "correlationKey", key)
			return
		}

		reply, err := p.transport.Receive(ctx, pending.channel.destination, key, min(window, remaining))
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("reply listener failed",
					"replyTo", pending.channel.destination.Name,
					"correlationKey", key,
					"error", err)
			}
			return
		}
		if reply == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if err := p.DeliverReply(ctx, key, reply); err != nil {
			p.logger.Error("failed to deliver reply",
				"correlationKey", key,
				"error", err)
		}
		return
	}
}

func (p *SyncProducer) completeExchange(key string, err error) {
	pending, ok := p.exchanges.get(key)
	if !ok {
		return
	}
	pending.cancel()
	<-pending.done
	p.exchanges.finish(key, err)
}

func (p *SyncProducer) resolveDestination(ctx context.Context, tctx *testcontext.Context) (Destination, error) {
	if !p.config.Destination.IsZero() {
		return p.config.Destination, nil
	}
	if p.config.DestinationName == "" {
		return Destination{}, ErrNoDestination
	}

	name, err := tctx.ReplaceDynamicContent(p.config.DestinationName)
	if err != nil {
		return Destination{}, fmt.Errorf("failed to resolve destination name: %w", err)
	}
	dest, err := p.transport.ResolveDestination(ctx, name)
	if err != nil {
		return Destination{}, fmt.Errorf("failed to resolve destination %s: %w", name, err)
	}
	return dest, nil
}

func (p *SyncProducer) now() time.Time {
	if p.config.Clock == nil {
		return time.Now()
	}
	return p.config.Clock.Now()
}

func (p *SyncProducer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
