package event

import (
	"context"
	"log"
	"sync"

	"github.com/grovekit/grove/service/messaging"
	"github.com/grovekit/grove/service/messaging/memory"
)

// Service fans lifecycle events out to an observer over a message queue.
// Delivery is best-effort: events for the same node arrive in emission
// order (single consumer), but a slow listener never blocks the engine
// beyond the queue buffer.
type Service struct {
	queue  messaging.Queue[Event]
	mux    sync.Mutex
	cancel context.CancelFunc
}

// NewService creates an event service backed by an in-memory queue.
func NewService(config memory.Config) *Service {
	return &Service{queue: memory.NewQueue[Event](config)}
}

// NewWithQueue creates an event service over the supplied queue.
func NewWithQueue(queue messaging.Queue[Event]) *Service {
	return &Service{queue: queue}
}

// Publish emits an event to the observer queue.
func (s *Service) Publish(ctx context.Context, event *Event) error {
	return s.queue.Publish(ctx, event)
}

// SetListener installs the observer callback, replacing any previous one,
// and starts consuming in the background. Passing nil stops consumption.
func (s *Service) SetListener(handler func(*Event)) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if handler == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.consume(ctx, handler)
}

// Stop terminates background consumption.
func (s *Service) Stop() {
	s.SetListener(nil)
}

func (s *Service) consume(ctx context.Context, handler func(*Event)) {
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("failed to consume event: %v", err)
			continue
		}
		if err = msg.Ack(); err != nil {
			log.Printf("failed to ack event: %v", err)
		}
		handler(msg.T())
	}
}
