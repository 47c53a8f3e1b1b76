package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory implements Service in process memory. It backs local
// single-binary mode and the test suites, mirroring SQS semantics:
// visibility timeout on receive, receipt handles, and redrive to a DLQ
// once a message exceeds its receive budget.
type Memory struct {
	mu         sync.Mutex
	queues     map[string]*memQueue // by name
	visibility time.Duration
	seq        int
	now        func() time.Time
}

type memQueue struct {
	name       string
	url        string
	createdAt  time.Time
	tags       map[string]string
	dlqURL     string
	maxReceive int
	messages   []*memMessage
}

type memMessage struct {
	id             string
	body           string
	attrs          map[string]string
	receipt        string
	invisibleUntil time.Time
	receiveCount   int
}

// NewMemory creates an in-memory queue service.
func NewMemory() *Memory {
	return &Memory{
		queues:     make(map[string]*memQueue),
		visibility: 30 * time.Second,
		now:        time.Now,
	}
}

// SetVisibility overrides the visibility timeout applied on receive.
func (m *Memory) SetVisibility(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visibility = d
}

func (m *Memory) CreateQueue(ctx context.Context, name string, tags map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[name]; ok {
		return q.url, nil
	}
	q := &memQueue{
		name:      name,
		url:       "memory://" + name,
		createdAt: m.now(),
		tags:      tags,
	}
	m.queues[name] = q
	return q.url, nil
}

func (m *Memory) DeleteQueue(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.byURLLocked(url)
	if err != nil {
		return err
	}
	delete(m.queues, q.name)
	return nil
}

func (m *Memory) QueueURL(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		return "", ErrQueueNotFound
	}
	return q.url, nil
}

func (m *Memory) ListQueues(ctx context.Context, prefix string) ([]QueueInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var infos []QueueInfo
	for name, q := range m.queues {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		infos = append(infos, QueueInfo{
			Name:           name,
			URL:            q.url,
			CreatedAt:      q.createdAt,
			ApproxMessages: len(q.messages),
		})
	}
	return infos, nil
}

func (m *Memory) SetRedrive(ctx context.Context, sourceURL, dlqURL string, maxReceive int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.byURLLocked(sourceURL)
	if err != nil {
		return err
	}
	if _, err := m.byURLLocked(dlqURL); err != nil {
		return err
	}
	q.dlqURL = dlqURL
	q.maxReceive = maxReceive
	return nil
}

func (m *Memory) Send(ctx context.Context, url, body string, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.byURLLocked(url)
	if err != nil {
		return err
	}
	m.seq++
	q.messages = append(q.messages, &memMessage{
		id:    fmt.Sprintf("msg-%d", m.seq),
		body:  body,
		attrs: attrs,
	})
	return nil
}

func (m *Memory) Receive(ctx context.Context, url string, max int, wait time.Duration) ([]Message, error) {
	deadline := m.now().Add(wait)
	for {
		msgs, err := m.receiveOnce(url, max)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 || wait <= 0 || !m.now().Before(deadline) {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Memory) receiveOnce(url string, max int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.byURLLocked(url)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var out []Message
	var kept []*memMessage
	for _, msg := range q.messages {
		if len(out) >= max || msg.invisibleUntil.After(now) {
			kept = append(kept, msg)
			continue
		}
		// Exhausted receive budget: redrive to the DLQ instead of delivering.
		if q.maxReceive > 0 && msg.receiveCount >= q.maxReceive {
			if dlq, err := m.byURLLocked(q.dlqURL); err == nil {
				dlq.messages = append(dlq.messages, &memMessage{
					id:    msg.id,
					body:  msg.body,
					attrs: msg.attrs,
				})
			}
			continue
		}
		msg.receiveCount++
		msg.invisibleUntil = now.Add(m.visibility)
		m.seq++
		msg.receipt = fmt.Sprintf("rcpt-%d", m.seq)
		kept = append(kept, msg)
		out = append(out, Message{
			MessageID:  msg.id,
			Receipt:    msg.receipt,
			Body:       msg.body,
			Attributes: msg.attrs,
		})
	}
	q.messages = kept
	return out, nil
}

func (m *Memory) DeleteMessage(ctx context.Context, url, receipt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.byURLLocked(url)
	if err != nil {
		return err
	}
	for i, msg := range q.messages {
		if msg.receipt == receipt && msg.receipt != "" {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	// Receipt no longer valid; deletes are idempotent, matching SQS.
	return nil
}

func (m *Memory) byURLLocked(url string) (*memQueue, error) {
	for _, q := range m.queues {
		if q.url == url {
			return q, nil
		}
	}
	return nil, ErrQueueNotFound
}
