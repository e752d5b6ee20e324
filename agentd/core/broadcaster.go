package core

import (
	"sync"
	"time"
)

const subscriberBuffer = 64

// StreamEvent is one progress notification for a task.
type StreamEvent struct {
	TaskID   string
	Type     string
	Data     map[string]any
	At       time.Time
	Terminal bool
}

// subscriber owns one consumer channel. closeOnce guards the close so the
// consumer's cancel and a terminal publish cannot both close it.
type subscriber struct {
	ch        chan StreamEvent
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Broadcaster fans execution progress out to stream consumers. Each
// subscriber owns an independent buffered channel; publishing never blocks
// the orchestrator — a non-terminal event that does not fit a subscriber's
// buffer is dropped for that subscriber only. A terminal event also closes
// every subscriber channel for the task, so a consumer whose buffer was
// full still observes the end of the stream.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*subscriber
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]*subscriber)}
}

// Subscribe registers a consumer for one task. The returned cancel func is
// idempotent and closes the channel.
func (b *Broadcaster) Subscribe(taskID string) (<-chan StreamEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{ch: make(chan StreamEvent, subscriberBuffer)}
	if b.subs[taskID] == nil {
		b.subs[taskID] = make(map[int]*subscriber)
	}
	b.subs[taskID][id] = sub

	cancel := func() {
		b.mu.Lock()
		if channels, ok := b.subs[taskID]; ok {
			delete(channels, id)
			if len(channels) == 0 {
				delete(b.subs, taskID)
			}
		}
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

func (b *Broadcaster) Publish(event StreamEvent) {
	b.mu.Lock()
	var closing []*subscriber
	for _, sub := range b.subs[event.TaskID] {
		select {
		case sub.ch <- event:
		default:
		}
		if event.Terminal {
			closing = append(closing, sub)
		}
	}
	if event.Terminal {
		delete(b.subs, event.TaskID)
	}
	b.mu.Unlock()

	for _, sub := range closing {
		sub.close()
	}
}
