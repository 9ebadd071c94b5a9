package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/seventv/common/sync_map"
	"go.uber.org/zap"
)

// Hub is the in-process broadcaster feeding local websocket connections
type Hub struct {
	topics  *sync_map.Map[string, *topic]
	nextID  uint64
	dropped uint64
}

type topic struct {
	mx   sync.RWMutex
	subs map[uint64]chan Message
}

type Subscription struct {
	id      uint64
	channel string
	ch      chan Message
	hub     *Hub
	once    sync.Once
}

func NewHub() *Hub {
	return &Hub{
		topics: &sync_map.Map[string, *topic]{},
	}
}

// Subscribe registers a listener on a channel. The buffer bounds how far a slow listener may fall behind
// before messages to it are dropped.
func (h *Hub) Subscribe(channel string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}

	sub := &Subscription{
		id:      atomic.AddUint64(&h.nextID, 1),
		channel: channel,
		ch:      make(chan Message, buffer),
		hub:     h,
	}

	t, _ := h.topics.LoadOrStore(channel, &topic{subs: make(map[uint64]chan Message)})

	t.mx.Lock()
	t.subs[sub.id] = sub.ch
	t.mx.Unlock()

	return sub
}

// Publish never blocks on a listener
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	t, ok := h.topics.Load(channel)
	if !ok {
		return nil
	}

	msg := Message{
		Channel: channel,
		Payload: payload,
	}

	t.mx.RLock()
	defer t.mx.RUnlock()

	for id, ch := range t.subs {
		select {
		case ch <- msg:
		default:
			atomic.AddUint64(&h.dropped, 1)

			zap.S().Debugw("dropped message for slow listener",
				"channel", channel,
				"subscription", id,
			)
		}
	}

	return nil
}

func (h *Hub) Listeners(channel string) int {
	t, ok := h.topics.Load(channel)
	if !ok {
		return 0
	}

	t.mx.RLock()
	defer t.mx.RUnlock()

	return len(t.subs)
}

// Dropped is the total number of messages discarded because a listener's buffer was full
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

func (s *Subscription) C() <-chan Message {
	return s.ch
}

func (s *Subscription) Channel() string {
	return s.channel
}

// Unsubscribe removes the listener and closes its channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		t, ok := s.hub.topics.Load(s.channel)
		if !ok {
			return
		}

		t.mx.Lock()
		delete(t.subs, s.id)
		close(s.ch)
		t.mx.Unlock()
	})
}
