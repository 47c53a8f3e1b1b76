/*
Package queue abstracts the SQS-style queue provider behind one interface.

Two implementations exist:

  - SQS: Amazon SQS via aws-sdk-go-v2. Long-poll receives (wait time in
    seconds), message attributes alongside the JSON body, redrive policies
    resolved through the DLQ's ARN, and tag-on-create.
  - Memory: in-process queues for local single-binary mode and tests.
    Mirrors the SQS semantics that matter to the core: visibility timeout
    on receive, receipt handles invalidated by redelivery, idempotent
    deletes, and redrive to a DLQ once a message exceeds its receive
    budget.

# Semantics

Delivery is at-least-once: a received message stays in the queue,
invisible, until deleted by receipt or until its visibility timeout lapses
and it is redelivered. Consumers that need at-most-once effects must
tolerate redelivery (the correlator deletes before resolving for exactly
this reason).

# Usage

	svc := queue.NewMemory()
	url, _ := svc.CreateQueue(ctx, "webordinary-input-amelia-scott", tags)
	_ = svc.Send(ctx, url, body, map[string]string{"Priority": "normal"})
	msgs, _ := svc.Receive(ctx, url, 10, 5*time.Second)
	for _, m := range msgs {
		_ = svc.DeleteMessage(ctx, url, m.Receipt)
	}

# Integration Points

  - pkg/registry: queue creation, redrive configuration, deletion
  - pkg/router: work and claim sends
  - pkg/correlator: output queue long-poll loops
  - pkg/reaper: queue enumeration and orphan deletion
*/
package queue
