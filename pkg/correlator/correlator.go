package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/types"
)

// Correlation outcomes. These are ordinary results, not exceptional
// conditions; callers branch on them with errors.Is. Interrupted
// commands are not errors at all: they resolve with a synthetic
// response carrying Interrupted=true.
var (
	ErrTimeout   = errors.New("command timed out")
	ErrCancelled = errors.New("command cancelled")
)

// Poll loop tuning, matching SQS long-poll limits.
const (
	pollWait      = 5 * time.Second
	pollBatch     = 10
	sweepInterval = 2 * time.Second
)

// Result is the terminal outcome of one command: either a worker
// response or a correlation error. Exactly one Result is delivered per
// registered command.
type Result struct {
	Response *types.ResponseMessage
	Err      error
}

// recentResult keeps a resolved command's outcome for a grace window so
// a caller that registered work can still observe a result that beat it
// to the finish line.
type recentResult struct {
	res Result
	at  time.Time
}

// recentTTL is how long resolved results stay observable through Watch.
const recentTTL = time.Minute

// pending is one command awaiting its response.
type pending struct {
	commandID string
	sessionID string
	tenant    types.TenantKey
	threadID  string
	inputURL  string
	outputURL string
	deadline  time.Time
	startedAt time.Time
	resultCh  chan Result // buffered 1; written exactly once
}

// Correlator matches worker responses on tenant output queues back to
// the commands that produced them. It implements router.WorkSender so
// that interrupting a tenant's older work, registering the new command,
// and delivering the work message happen in one ordered step.
type Correlator struct {
	queues  queue.Service
	broker  *events.Broker
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pending // by commandID
	recent  map[string]recentResult
	loops   map[string]struct{} // output URLs with a running poll loop
	stopped bool

	stopCh chan struct{}
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
}

// New creates a correlator. timeout is the per-command deadline
// (T_timeout). broker may be nil.
func New(queues queue.Service, broker *events.Broker, timeout time.Duration) *Correlator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Correlator{
		queues:  queues,
		broker:  broker,
		timeout: timeout,
		now:     time.Now,
		logger:  log.WithComponent("correlator"),
		pending: make(map[string]*pending),
		recent:  make(map[string]recentResult),
		loops:   make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		cancel:  cancel,
		ctx:     ctx,
	}
}

// Start launches the deadline sweeper.
func (c *Correlator) Start() {
	c.wg.Add(1)
	go c.sweepLoop()
}

// Stop resolves every pending command with ErrCancelled, stops all poll
// loops, and waits for them to exit. Responses still in flight will be
// discarded by whichever instance receives them next.
func (c *Correlator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	stranded := make([]*pending, 0, len(c.pending))
	for _, p := range c.pending {
		stranded = append(stranded, p)
	}
	c.mu.Unlock()

	for _, p := range stranded {
		c.resolve(p.commandID, Result{Err: ErrCancelled}, "cancelled")
	}

	close(c.stopCh)
	c.cancel()
	c.wg.Wait()
}

// SendWork implements router.WorkSender. The tenant's older pending
// commands are interrupted before the new work message is sent, so a
// worker never observes new work before the interrupt that supersedes
// its predecessor.
func (c *Correlator) SendWork(ctx context.Context, inputURL, outputURL string, work *types.WorkMessage) error {
	if err := c.interruptOlder(ctx, work.TenantKey(), work.CommandID); err != nil {
		return err
	}

	body, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("failed to marshal work message: %w", err)
	}

	p := &pending{
		commandID: work.CommandID,
		sessionID: work.SessionID,
		tenant:    work.TenantKey(),
		threadID:  work.ThreadID,
		inputURL:  inputURL,
		outputURL: outputURL,
		deadline:  c.now().Add(c.timeout),
		startedAt: c.now(),
		resultCh:  make(chan Result, 1),
	}

	// The shutdown check shares the critical section with registration:
	// a command is either registered before Stop collects stranded
	// entries, or refused outright. It can never slip in between.
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return errors.New("correlator stopped")
	}
	c.pending[work.CommandID] = p
	c.ensureLoopLocked(outputURL)
	c.mu.Unlock()
	metrics.PendingCommands.Inc()

	attrs := map[string]string{
		"projectId": work.ProjectID,
		"userId":    work.UserID,
		"source":    string(work.Source),
		"Priority":  types.PriorityNormal,
	}
	if err := c.queues.Send(ctx, inputURL, string(body), attrs); err != nil {
		// Undo the registration; the command never reached the wire.
		c.mu.Lock()
		delete(c.pending, work.CommandID)
		c.mu.Unlock()
		metrics.PendingCommands.Dec()
		return err
	}
	metrics.MessagesSentTotal.WithLabelValues("input").Inc()
	return nil
}

// Watch returns the result channel for a command. The channel delivers
// exactly one Result. Commands resolved within the last minute are still
// observable; ok is false only when the command is unknown.
func (c *Correlator) Watch(commandID string) (<-chan Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[commandID]; ok {
		return p.resultCh, true
	}
	if r, ok := c.recent[commandID]; ok {
		ch := make(chan Result, 1)
		ch <- r.res
		close(ch)
		return ch, true
	}
	return nil, false
}

// Wait blocks until the command resolves or ctx is done.
func (c *Correlator) Wait(ctx context.Context, commandID string) (*types.ResponseMessage, error) {
	ch, ok := c.Watch(commandID)
	if !ok {
		return nil, fmt.Errorf("unknown command %s", commandID)
	}
	select {
	case res := <-ch:
		return res.Response, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel resolves a pending command with ErrCancelled. Cancelling an
// unknown or already-resolved command is a no-op.
func (c *Correlator) Cancel(commandID string) {
	c.resolve(commandID, Result{Err: ErrCancelled}, "cancelled")
}

// PendingCount reports how many commands are awaiting a response.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Interrupt resolves every pending command for the tenant with a
// synthetic interrupted response carrying the reason. It is idempotent;
// a tenant with nothing pending is a no-op. Returns how many commands
// were interrupted.
func (c *Correlator) Interrupt(key types.TenantKey, reason string) int {
	count := 0
	for _, p := range c.pendingForTenant(key) {
		resp := c.interruptedResponse(p, "", "Interrupted: "+reason)
		if !c.resolve(p.commandID, Result{Response: resp}, "interrupted") {
			continue
		}
		count++
		c.publish(events.EventCommandInterrupted, "command interrupted", map[string]string{
			"tenant":    key.String(),
			"commandId": p.commandID,
			"reason":    reason,
		})
	}
	return count
}

// interruptOlder resolves every pending command for the tenant with a
// synthetic interrupted response naming its successor, and tells the
// worker to abandon it, before the superseding command is sent.
func (c *Correlator) interruptOlder(ctx context.Context, key types.TenantKey, replacedBy string) error {
	for _, p := range c.pendingForTenant(key) {
		interrupt := &types.InterruptMessage{
			Type:       types.MessageTypeInterrupt,
			CommandID:  p.commandID,
			ReplacedBy: replacedBy,
			ProjectID:  key.ProjectID,
			UserID:     key.UserID,
			ThreadID:   p.threadID,
			Timestamp:  c.now().UTC(),
		}
		body, err := json.Marshal(interrupt)
		if err != nil {
			return fmt.Errorf("failed to marshal interrupt: %w", err)
		}
		attrs := map[string]string{
			"projectId": key.ProjectID,
			"userId":    key.UserID,
			"Priority":  types.PriorityHigh,
		}
		if err := c.queues.Send(ctx, p.inputURL, string(body), attrs); err != nil {
			return fmt.Errorf("failed to send interrupt: %w", err)
		}
		metrics.MessagesSentTotal.WithLabelValues("input").Inc()
		resp := c.interruptedResponse(p, replacedBy, "")
		c.resolve(p.commandID, Result{Response: resp}, "interrupted")
		c.publish(events.EventCommandInterrupted, "command interrupted", map[string]string{
			"tenant":     key.String(),
			"commandId":  p.commandID,
			"replacedBy": replacedBy,
		})
	}
	return nil
}

func (c *Correlator) pendingForTenant(key types.TenantKey) []*pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []*pending
	for _, p := range c.pending {
		if p.tenant == key {
			matched = append(matched, p)
		}
	}
	return matched
}

// interruptedResponse builds the synthetic response delivered to the
// waiter of an interrupted command.
func (c *Correlator) interruptedResponse(p *pending, replacedBy, summary string) *types.ResponseMessage {
	return &types.ResponseMessage{
		Type:          types.MessageTypeResponse,
		CommandID:     p.commandID,
		SessionID:     p.sessionID,
		Summary:       summary,
		Interrupted:   true,
		InterruptedBy: replacedBy,
		CompletedAt:   c.now().UTC(),
	}
}

// resolve delivers the terminal Result for a command. The pending entry
// is removed under the lock before the channel write, so a command
// resolves at most once no matter how many paths race to finish it.
func (c *Correlator) resolve(commandID string, res Result, outcome string) bool {
	c.mu.Lock()
	p, ok := c.pending[commandID]
	if ok {
		delete(c.pending, commandID)
	}
	if ok {
		c.recent[commandID] = recentResult{res: res, at: c.now()}
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	p.resultCh <- res
	close(p.resultCh)

	metrics.PendingCommands.Dec()
	metrics.CommandOutcomes.WithLabelValues(outcome).Inc()
	metrics.CommandDuration.Observe(c.now().Sub(p.startedAt).Seconds())
	logger := log.WithCommandID(log.WithTenant(c.logger, p.tenant.String()), commandID)
	logger.Info().
		Str("outcome", outcome).
		Dur("elapsed", c.now().Sub(p.startedAt)).
		Msg("command resolved")
	return true
}

// ensureLoopLocked starts a poll loop for an output queue if none runs.
// Caller holds c.mu.
func (c *Correlator) ensureLoopLocked(outputURL string) {
	if _, ok := c.loops[outputURL]; ok {
		return
	}
	c.loops[outputURL] = struct{}{}
	c.wg.Add(1)
	go c.pollLoop(outputURL)
}

// pollLoop long-polls one tenant output queue until shutdown. Messages
// are deleted before their command resolves: a response observed by a
// caller is guaranteed gone from the queue, and a crash between delete
// and resolve surfaces as a timeout rather than a duplicate resolution.
func (c *Correlator) pollLoop(outputURL string) {
	defer c.wg.Done()
	logger := c.logger.With().Str("outputUrl", outputURL).Logger()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		msgs, err := c.queues.Receive(c.ctx, outputURL, pollBatch, pollWait)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("output queue receive failed")
			select {
			case <-time.After(time.Second):
			case <-c.stopCh:
				return
			}
			continue
		}

		for _, msg := range msgs {
			c.handleResponse(outputURL, msg, logger)
		}
	}
}

func (c *Correlator) handleResponse(outputURL string, msg queue.Message, logger zerolog.Logger) {
	deleteMsg := func() {
		if err := c.queues.DeleteMessage(c.ctx, outputURL, msg.Receipt); err != nil && c.ctx.Err() == nil {
			logger.Warn().Err(err).Msg("failed to delete output message")
		}
	}

	var resp types.ResponseMessage
	if err := json.Unmarshal([]byte(msg.Body), &resp); err != nil {
		logger.Warn().Err(err).Msg("discarding malformed response")
		deleteMsg()
		return
	}
	if err := types.ValidateResponse(&resp); err != nil {
		logger.Warn().Err(err).Msg("discarding invalid response")
		deleteMsg()
		return
	}

	deleteMsg()

	outcome := "completed"
	eventType := events.EventCommandCompleted
	if !resp.Success {
		outcome = "failed"
		eventType = events.EventCommandFailed
	}
	if !c.resolve(resp.CommandID, Result{Response: &resp}, outcome) {
		// Nobody is waiting: a stale response from before a restart, or
		// a command that already timed out.
		metrics.UnknownResponsesTotal.Inc()
		logger.Debug().Str("commandId", resp.CommandID).Msg("discarded response with no pending command")
		return
	}
	c.publish(eventType, "command resolved", map[string]string{
		"commandId": resp.CommandID,
		"outcome":   outcome,
	})
}

// sweepLoop times out pending commands past their deadline.
func (c *Correlator) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepDeadlines()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Correlator) sweepDeadlines() {
	now := c.now()
	c.mu.Lock()
	var expired []string
	for id, p := range c.pending {
		if now.After(p.deadline) {
			expired = append(expired, id)
		}
	}
	for id, r := range c.recent {
		if now.Sub(r.at) > recentTTL {
			delete(c.recent, id)
		}
	}
	c.mu.Unlock()

	for _, id := range expired {
		if c.resolve(id, Result{Err: ErrTimeout}, "timeout") {
			c.publish(events.EventCommandTimeout, "command timed out", map[string]string{
				"commandId": id,
			})
		}
	}
}

func (c *Correlator) publish(t events.EventType, message string, metadata map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.New(t, message, metadata))
}
