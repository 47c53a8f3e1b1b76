package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/types"
)

// QueueName returns the name of the shared ingress queue upstream
// receivers drop envelopes on.
func QueueName(prefix string) string {
	return prefix + "-ingress"
}

// Envelope is the wire form on the ingress queue: the transport name
// plus its payload, verbatim.
type Envelope struct {
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// RouteFunc routes one decoded message. Implemented by router.Route.
type RouteFunc func(ctx context.Context, msg types.IngressMsg) (*types.RoutingDecision, error)

// Consumer long-polls the ingress queue and feeds decoded messages to
// the router. Terminal failures (malformed envelope, validation) delete
// the message; transient routing failures leave it for redelivery, so
// the queue's redrive policy bounds the retries.
type Consumer struct {
	queues queue.Service
	url    string
	route  RouteFunc
	logger zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
	cancel context.CancelFunc
	ctx    context.Context
}

// NewConsumer creates a consumer for the given ingress queue URL.
func NewConsumer(queues queue.Service, url string, route RouteFunc) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		queues: queues,
		url:    url,
		route:  route,
		logger: log.WithComponent("ingress"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		cancel: cancel,
		ctx:    ctx,
	}
}

// Start begins the poll loop.
func (c *Consumer) Start() {
	go c.run()
}

// Stop halts polling and waits for the loop to exit.
func (c *Consumer) Stop() {
	close(c.stopCh)
	c.cancel()
	<-c.doneCh
}

func (c *Consumer) run() {
	defer close(c.doneCh)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		msgs, err := c.queues.Receive(c.ctx, c.url, 10, 5*time.Second)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn().Err(err).Msg("ingress receive failed")
			select {
			case <-time.After(time.Second):
			case <-c.stopCh:
				return
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(msg)
		}
	}
}

func (c *Consumer) handle(msg queue.Message) {
	deleteMsg := func() {
		if err := c.queues.DeleteMessage(c.ctx, c.url, msg.Receipt); err != nil && c.ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("failed to delete ingress message")
		}
	}

	var env Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed ingress envelope")
		deleteMsg()
		return
	}

	decoded, err := Decode(env.Source, env.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", env.Source).Msg("discarding undecodable ingress payload")
		deleteMsg()
		return
	}

	decision, err := c.route(c.ctx, decoded)
	switch {
	case err == nil:
		deleteMsg()
		c.logger.Debug().
			Str("tenant", decision.TenantKey.String()).
			Str("commandId", decision.CommandID).
			Msg("ingress message routed")
	case errors.Is(err, types.ErrValidation):
		// Terminal; redelivery cannot fix an invalid message.
		c.logger.Warn().Err(err).Msg("discarding invalid ingress message")
		deleteMsg()
	default:
		// Transient: leave the message for the visibility timeout to
		// redeliver; the queue's redrive policy caps the attempts.
		if c.ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("routing failed, leaving message for redelivery")
		}
	}
}
