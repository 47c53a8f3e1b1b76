package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/types"
)

// WorkSender delivers a work message to a tenant's input queue. The
// correlator implements this to register the command as pending and to
// interrupt the tenant's older work before the new message is sent;
// DirectSender is the fire-and-forget fallback used by one-shot CLI
// routing, where nobody waits for the response.
type WorkSender interface {
	SendWork(ctx context.Context, inputURL, outputURL string, work *types.WorkMessage) error
}

// DirectSender sends work straight to the input queue with no correlation.
type DirectSender struct {
	Queues queue.Service
}

// SendWork implements WorkSender.
func (s *DirectSender) SendWork(ctx context.Context, inputURL, outputURL string, work *types.WorkMessage) error {
	body, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("failed to marshal work message: %w", err)
	}
	if err := s.Queues.Send(ctx, inputURL, string(body), WorkAttributes(work, types.PriorityNormal)); err != nil {
		return err
	}
	metrics.MessagesSentTotal.WithLabelValues("input").Inc()
	return nil
}

// WorkAttributes builds the standard message attributes for a work
// message: tenant halves, source transport, and priority.
func WorkAttributes(work *types.WorkMessage, priority string) map[string]string {
	return map[string]string{
		"projectId": work.ProjectID,
		"userId":    work.UserID,
		"source":    string(work.Source),
		"Priority":  priority,
	}
}
