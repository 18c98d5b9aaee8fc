package service

import (
	"context"

	"scriptsignal/internal/log"
	"scriptsignal/pkg/ringcache"
	"scriptsignal/pkg/signal"
)

// Subscriber forwards fires to a slow consumer such as a socket. The
// listener only buffers, so a stalled client never blocks Fire; when the
// outbox is full the oldest message is dropped.
type Subscriber struct {
	name   string
	conn   *signal.Connection
	outbox *ringcache.RingCache[Message]
	ready  chan struct{}
}

func newSubscriber(name string, s signal.Signal[Message], outboxSize int) *Subscriber {
	sub := &Subscriber{
		name:   name,
		outbox: ringcache.NewRingCache[Message](outboxSize),
		ready:  make(chan struct{}, 1),
	}
	sub.conn = s.Connect(sub.push)
	return sub
}

func (s *Subscriber) push(_ context.Context, msg Message) {
	if _, dropped := s.outbox.Put(msg); dropped {
		log.Warn().Str("signal", s.name).Uint64("dropped", s.outbox.Dropped()).Msg("subscriber outbox full, dropped oldest message")
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready receives after new messages were buffered.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns the buffered messages, oldest first.
func (s *Subscriber) Drain() []Message {
	return s.outbox.Drain()
}

// Dropped returns how many messages were lost to a full outbox.
func (s *Subscriber) Dropped() uint64 {
	return s.outbox.Dropped()
}

// Connected reports whether the subscriber still receives fires.
func (s *Subscriber) Connected() bool {
	return s.conn.Connected()
}

// Close disconnects the subscriber.
func (s *Subscriber) Close() {
	s.conn.Disconnect()
}
