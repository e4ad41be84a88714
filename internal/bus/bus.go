// Package bus carries fire-and-forget notifications between storefront components.
//
// Publishing never blocks: a subscriber that does not keep up loses messages rather than
// stalling the publisher.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topic identifies a kind of message.
type Topic string

const (
	// TopicPromptTrigger asks the push permission prompt to consider showing itself.
	// Data: "action" = "cart-add" | "checkout".
	TopicPromptTrigger Topic = "trigger-push-request"
	// TopicNotificationsUpdated fires after the local notification inbox changed.
	TopicNotificationsUpdated Topic = "notifications-updated"
	// TopicWorkerMessage relays a message posted by the service worker.
	// Data: "type" = the worker message type.
	TopicWorkerMessage Topic = "service-worker-message"
	// TopicUpdateApplied fires right before the page reloads into a new build.
	// Data: "appHash", "version".
	TopicUpdateApplied Topic = "update-applied"
)

const (
	ActionCartAdd  = "cart-add"
	ActionCheckout = "checkout"
)

// Message is one published notification.
type Message struct {
	Topic Topic             `json:"topic"`
	Data  map[string]string `json:"data,omitempty"`
	At    time.Time         `json:"at"`

	// Origin identifies the RedisBridge that relayed the message; empty for local messages.
	Origin string `json:"origin,omitempty"`
}

// PromptTrigger builds a TopicPromptTrigger message.
func PromptTrigger(action string) Message {
	return Message{Topic: TopicPromptTrigger, Data: map[string]string{"action": action}}
}

// Publisher accepts messages without blocking.
type Publisher interface {
	Publish(msg Message)
}

// Discard drops every message.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Message) {}

// Fanout publishes to several publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(msg Message) {
	for _, p := range f {
		p.Publish(msg)
	}
}

// Bus is an in-process Publisher with per-topic subscriptions.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic]map[int]chan Message
	nextID  int
	buffer  int
	dropped atomic.Int64
}

// New returns a bus whose subscriptions buffer up to buffer messages each.
func New(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[Topic]map[int]chan Message), buffer: buffer}
}

// Subscribe returns a channel of messages on topic and a function that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe(topic Topic) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Message, b.buffer)
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Message)
	}
	b.subs[topic][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[topic]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
			}
		})
	}
}

func (b *Bus) Publish(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[msg.Topic] {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

var (
	_ Publisher = (*Bus)(nil)
	_ Publisher = Fanout(nil)
)
