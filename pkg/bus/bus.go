// Package bus implements the Internal Bus: an in-process,
// single-producer-per-topic, multiple-subscriber fan-out keyed by a
// textual topic tag, with prefix-match subscriptions.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lmig/csserver/pkg/event"
	"github.com/lmig/csserver/pkg/logger"
)

// Message is one publication on the bus: a topic tag, the reception
// timestamp carried by the originating event, the decoded event, and — for
// voice topics only — exactly 480 bytes of A-law payload.
type Message struct {
	Topic      string
	ReceivedAt time.Time
	Event      event.Event
	Voice      []byte
}

// SignalingTopic returns the topic tag for a signaling message id, e.g.
// "S_1" for KeepAlive. A subscriber to the bare prefix "S" receives every
// signaling topic; a subscriber to "S_1" receives only that message id.
func SignalingTopic(msgID uint8) string {
	return fmt.Sprintf("S_%x", msgID)
}

// VoiceTopic returns the topic tag for a call's voice stream, e.g. "V_42".
// A subscriber to the bare prefix "V" receives every call's voice.
func VoiceTopic(callID uint32) string {
	return fmt.Sprintf("V_%d", callID)
}

type subscription struct {
	id     uint64
	prefix string
	ch     chan Message
}

// Subscription is a live prefix-match subscription. Messages stop arriving
// once Close is called; the bus never blocks a publisher on a slow or
// closed subscriber — excess messages are dropped.
type Subscription struct {
	id   uint64
	ch   <-chan Message
	bus  *Bus
}

// Messages returns the channel of matching publications.
func (s *Subscription) Messages() <-chan Message { return s.ch }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	select {
	case s.bus.unregister <- s.id:
	case <-s.bus.done:
	}
}

// Bus is the Internal Bus. Create with New, start with Run, and stop by
// canceling the context passed to Run.
type Bus struct {
	logger *logger.Logger

	publish    chan Message
	register   chan *subscription
	unregister chan uint64

	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64

	done chan struct{}
}

// New creates a Bus. Call Run to start its event loop.
func New(log *logger.Logger) *Bus {
	return &Bus{
		logger:     log,
		publish:    make(chan Message, 1024),
		register:   make(chan *subscription),
		unregister: make(chan uint64),
		subs:       make(map[uint64]*subscription),
		done:       make(chan struct{}),
	}
}

// Subscribe registers a prefix-match subscription with the given channel
// buffer size and returns it. Safe to call before or after Run starts.
func (b *Bus) Subscribe(prefix string, bufSize int) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	sub := &subscription{id: id, prefix: prefix, ch: make(chan Message, bufSize)}

	select {
	case b.register <- sub:
	case <-b.done:
	}

	return &Subscription{id: id, ch: sub.ch, bus: b}
}

// Publish fans a message out to every subscription whose prefix matches
// the message's topic. Publish never blocks: a full subscriber channel
// drops the message and is logged, matching the Internal Bus's at-most-
// once, slow-subscribers-drop delivery contract.
func (b *Bus) Publish(msg Message) {
	select {
	case b.publish <- msg:
	case <-b.done:
	default:
		if b.logger != nil {
			b.logger.Warn("internal bus publish queue full, dropping message", logger.String("topic", msg.Topic))
		}
	}
}

// SubscriberCount returns the number of live subscriptions, for metrics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Run drives the bus's single event loop until ctx is canceled. All
// register/unregister/publish state lives only inside this loop, so no
// locking is needed for delivery — only SubscriberCount's external read
// needs the mutex.
func (b *Bus) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subs[sub.id] = sub
			b.mu.Unlock()

		case id := <-b.unregister:
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
			b.mu.Unlock()

		case msg := <-b.publish:
			b.mu.RLock()
			for _, sub := range b.subs {
				if !hasPrefix(msg.Topic, sub.prefix) {
					continue
				}
				select {
				case sub.ch <- msg:
				default:
					if b.logger != nil {
						b.logger.Warn("internal bus subscriber buffer full, dropping message",
							logger.String("topic", msg.Topic),
							logger.String("prefix", sub.prefix))
					}
				}
			}
			b.mu.RUnlock()

		case <-ctx.Done():
			b.mu.Lock()
			for id, sub := range b.subs {
				close(sub.ch)
				delete(b.subs, id)
			}
			b.mu.Unlock()
			return
		}
	}
}

func hasPrefix(topic, prefix string) bool {
	if len(prefix) > len(topic) {
		return false
	}
	return topic[:len(prefix)] == prefix
}
