package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glimte/syncprobe/testcontext"
)

// replyChannel is the reply destination of one exchange. Temporary
// destinations are deleted on release, which is safe to call more than once.
type replyChannel struct {
	destination Destination
	strategy    ReplyStrategy
	transport   Transport
	logger      *slog.Logger
	once        sync.Once
}

func openReplyChannel(ctx context.Context, transport Transport, cfg *Configuration, tctx *testcontext.Context) (*replyChannel, error) {
	ch := &replyChannel{
		strategy:  cfg.ReplyStrategy(),
		transport: transport,
		logger:    cfg.Logger,
	}

	switch ch.strategy {
	case ReplyExplicit:
		ch.destination = cfg.ReplyDestination

	case ReplyNamed:
		name, err := tctx.ReplaceDynamicContent(cfg.ReplyDestinationName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reply destination name: %w", err)
		}
		dest, err := transport.ResolveDestination(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reply destination %s: %w", name, err)
		}
		ch.destination = dest

	default:
		dest, err := transport.CreateTemporaryDestination(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary reply destination: %w", err)
		}
		dest.Temporary = true
		ch.destination = dest
	}

	return ch, nil
}

// release deletes a temporary destination. Failures are logged only.
func (c *replyChannel) release(ctx context.Context) {
	c.once.Do(func() {
		if !c.destination.Temporary {
			return
		}
		if err := c.transport.DeleteDestination(ctx, c.destination); err != nil {
			c.logger.Warn("failed to delete temporary reply destination",
				"destination", c.destination.Name,
				"error", err)
			return
		}
		c.logger.Debug("deleted temporary reply destination", "destination", c.destination.Name)
	})
}
