package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueNotFound is returned when a queue does not exist.
var ErrQueueNotFound = errors.New("queue not found")

// Message is one received queue message. Receipt is the handle required
// to delete it; redelivery invalidates previous receipts.
type Message struct {
	MessageID  string
	Receipt    string
	Body       string
	Attributes map[string]string
}

// QueueInfo describes an existing queue.
type QueueInfo struct {
	Name      string
	URL       string
	CreatedAt time.Time
	// ApproxMessages is the approximate number of messages still in the
	// queue; informational only.
	ApproxMessages int
}

// Service abstracts the SQS-style queue provider. Implemented by SQS for
// hosted mode and Memory for local mode and tests.
type Service interface {
	// CreateQueue creates a queue with the given tags and returns its URL.
	// Creating an existing queue with identical settings is not an error.
	CreateQueue(ctx context.Context, name string, tags map[string]string) (string, error)

	// DeleteQueue deletes a queue by URL. Messages still in the queue are
	// dropped by the provider.
	DeleteQueue(ctx context.Context, url string) error

	// QueueURL resolves a queue name to its URL, or ErrQueueNotFound.
	QueueURL(ctx context.Context, name string) (string, error)

	// ListQueues enumerates queues whose names start with prefix.
	ListQueues(ctx context.Context, prefix string) ([]QueueInfo, error)

	// SetRedrive configures the source queue to move messages to the DLQ
	// after maxReceive failed receives.
	SetRedrive(ctx context.Context, sourceURL, dlqURL string, maxReceive int) error

	// Send places a message on the queue with the given attributes.
	Send(ctx context.Context, url, body string, attrs map[string]string) error

	// Receive long-polls for up to max messages, waiting at most wait.
	Receive(ctx context.Context, url string, max int, wait time.Duration) ([]Message, error)

	// DeleteMessage acknowledges a received message by its receipt.
	DeleteMessage(ctx context.Context, url, receipt string) error
}
