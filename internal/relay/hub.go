package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
)

const subscriberBuffer = 16

// Hub is an in-process session broker. Devices join a named session and
// receive every snapshot published by the other members; a sender never
// hears its own messages back. Delivery per subscriber is ordered, and a
// slow subscriber loses its oldest pending messages rather than blocking
// the session.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu       sync.Mutex
	sessions map[string]map[int]*Subscriber
	nextID   int
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger, recorder *metrics.Recorder) *Hub {
	return &Hub{
		logger:   logger,
		metrics:  recorder,
		sessions: make(map[string]map[int]*Subscriber),
	}
}

// Join adds a member to the named session and returns its subscriber. The
// subscriber satisfies Messenger and plugs straight into Relay.Configure.
func (h *Hub) Join(session string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		hub:     h,
		session: session,
		id:      h.nextID,
		ch:      make(chan snapshot.SharedGame, subscriberBuffer),
	}
	members, ok := h.sessions[session]
	if !ok {
		members = make(map[int]*Subscriber)
		h.sessions[session] = members
	}
	members[sub.id] = sub
	logging.Info(h.logger, "subscriber joined session",
		logging.FieldSessionID, session, "subscriber_id", sub.id)
	return sub
}

// Subscriber looks up an existing member of a session.
func (h *Hub) Subscriber(session string, id int) (*Subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.sessions[session][id]
	return sub, ok
}

// Sessions returns the number of sessions with at least one member.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) publish(session string, from int, snap snapshot.SharedGame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.sessions[session] {
		if id == from {
			continue
		}
		select {
		case sub.ch <- snap:
			continue
		default:
		}
		// Full-state messages supersede one another, so a subscriber this
		// far behind loses the oldest pending delivery to make room for the
		// newest state.
		select {
		case <-sub.ch:
			logging.Warn(h.logger, "subscriber buffer full, dropping oldest message",
				logging.FieldSessionID, session, "subscriber_id", id)
			h.metrics.RecordRelayDropped(metrics.DropSubscriberFull)
		default:
		}
		select {
		case sub.ch <- snap:
		default:
			h.metrics.RecordRelayDropped(metrics.DropSubscriberFull)
		}
	}
}

func (h *Hub) leave(session string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.sessions[session]
	if !ok {
		return
	}
	sub, ok := members[id]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.sessions, session)
	}
	close(sub.ch)
	logging.Info(h.logger, "subscriber left session",
		logging.FieldSessionID, session, "subscriber_id", id)
}

// Subscriber is one member of a hub session.
type Subscriber struct {
	hub     *Hub
	session string
	id      int
	ch      chan snapshot.SharedGame

	closeOnce sync.Once
}

// ID identifies the subscriber within its session.
func (s *Subscriber) ID() int { return s.id }

// Send publishes a snapshot to every other member of the session.
func (s *Subscriber) Send(ctx context.Context, snap snapshot.SharedGame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hub.publish(s.session, s.id, snap)
	return nil
}

// Receive returns the subscriber's inbound message stream. The channel is
// closed when the subscriber leaves the session.
func (s *Subscriber) Receive() <-chan snapshot.SharedGame {
	return s.ch
}

// Close removes the subscriber from its session.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.hub.leave(s.session, s.id)
	})
	return nil
}
