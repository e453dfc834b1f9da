package events

import (
	"context"
	"sync"

	"moneybook/internal/log"
)

const defaultQueueSize = 256

// Notifier emits activity messages on a best-effort basis. Notify only
// enqueues; a background worker publishes. When the queue is full the
// message is dropped and logged, so a slow broker never stalls a request.
type Notifier struct {
	pub    Publisher
	logger *log.Logger

	mu     sync.RWMutex
	queue  chan ActivityMessage
	closed bool
	done   chan struct{}
}

func NewNotifier(pub Publisher, logger *log.Logger) *Notifier {
	return newNotifier(pub, logger, defaultQueueSize)
}

func newNotifier(pub Publisher, logger *log.Logger, size int) *Notifier {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	n := &Notifier{
		pub:    pub,
		logger: logger.WithComponent(log.ComponentAMQP),
		queue:  make(chan ActivityMessage, size),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) Notify(ctx context.Context, kind Kind, entityID, userID string) {
	if n == nil {
		return
	}
	msg := NewActivityMessage(kind, entityID, userID)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.WarnContext(ctx, "Activity queue full, message dropped",
			log.FieldOperation, log.OpPublish,
			log.FieldEventKind, kind)
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.pub.Publish(context.Background(), msg); err != nil {
			n.logger.Warn("Failed to publish activity message",
				log.FieldOperation, log.OpPublish,
				log.FieldEventKind, msg.Kind,
				log.FieldError, err)
		}
	}
}

// Close stops accepting messages, publishes what is already queued and
// closes the publisher.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return n.pub.Close()
}
