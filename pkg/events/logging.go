package events

import (
	"github.com/webordinary/switchboard/pkg/log"
)

// LoggingSubscriber drains broker events into the structured log. The
// daemon starts one so every domain event leaves a trace even with no
// other consumer attached.
type LoggingSubscriber struct {
	broker *Broker
	sub    Subscriber
	doneCh chan struct{}
}

// NewLoggingSubscriber subscribes to the broker and starts draining
func NewLoggingSubscriber(broker *Broker) *LoggingSubscriber {
	s := &LoggingSubscriber{
		broker: broker,
		sub:    broker.Subscribe(),
		doneCh: make(chan struct{}),
	}
	go s.run()
	return s
}

// Stop unsubscribes and waits for the drain loop to exit
func (s *LoggingSubscriber) Stop() {
	s.broker.Unsubscribe(s.sub)
	<-s.doneCh
}

func (s *LoggingSubscriber) run() {
	defer close(s.doneCh)
	logger := log.WithComponent("events")
	for event := range s.sub {
		entry := logger.Info().
			Str("event", string(event.Type)).
			Str("eventId", event.ID).
			Time("at", event.Timestamp)
		for k, v := range event.Metadata {
			entry = entry.Str(k, v)
		}
		entry.Msg(event.Message)
	}
}
