// Package relay keeps an in-progress game consistent across the members of
// a live shared session. It broadcasts full game state on every local
// mutation and applies inbound snapshots with last-write-wins semantics per
// basket/player cell.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/merge"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

// Messenger is the session transport: an async sequence of inbound
// snapshots plus a send operation. Delivery is best-effort and ordered per
// sender only; messages from different senders interleave arbitrarily.
type Messenger interface {
	Send(ctx context.Context, snap snapshot.SharedGame) error
	Receive() <-chan snapshot.SharedGame
	Close() error
}

const defaultSettleDelay = 250 * time.Millisecond

// Relay owns the session-scoped active-game state and drives the merge
// engine from inbound messages. One relay handles at most one session, and
// at most one shared game, at a time.
type Relay struct {
	store   store.Store
	engine  *merge.Engine
	logger  *slog.Logger
	metrics *metrics.Recorder
	settle  time.Duration

	// mu serializes store mutation and the active-game state. Two inbound
	// messages, or an inbound message racing a local broadcast, must not
	// interleave writes.
	mu           sync.Mutex
	activeGameID string
	messenger    Messenger
	cancel       context.CancelFunc
	done         chan struct{}
}

// New constructs a Relay. A settle delay <= 0 falls back to the default.
func New(st store.Store, engine *merge.Engine, logger *slog.Logger, recorder *metrics.Recorder, settle time.Duration) *Relay {
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &Relay{
		store:   st,
		engine:  engine,
		logger:  logger,
		metrics: recorder,
		settle:  settle,
	}
}

// Configure joins a session: it tears down any previous messenger, clears
// the active game so nothing stale is auto-adopted, and starts a fresh
// receive loop.
func (r *Relay) Configure(m Messenger) {
	r.Leave()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.messenger = m
	r.activeGameID = ""
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.receiveLoop(ctx, m, done)
}

// Leave tears down the messenger and receive loop. No inbound snapshot is
// applied after Leave returns.
func (r *Relay) Leave() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	m := r.messenger
	r.cancel = nil
	r.done = nil
	r.messenger = nil
	r.activeGameID = ""
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if m != nil {
		if err := m.Close(); err != nil {
			logging.Warn(r.logger, "messenger close failed", "error", err)
		}
	}
}

// SetActiveGame marks the game currently being shared.
func (r *Relay) SetActiveGame(gameUUID string) {
	r.mu.Lock()
	r.activeGameID = gameUUID
	r.mu.Unlock()
}

// ActiveGameID returns the game currently being shared, if any.
func (r *Relay) ActiveGameID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeGameID
}

// Broadcast encodes the entire current state of the given game and sends it
// to the session. This is full-state broadcast, not a delta log. Stale games
// (not the active one) are dropped with a warning, and send failures after
// teardown are swallowed and logged; neither is surfaced to the caller.
func (r *Relay) Broadcast(ctx context.Context, gameUUID string) error {
	snap, err := r.encodeGame(gameUUID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	active := r.activeGameID
	m := r.messenger
	r.mu.Unlock()

	if snap.UUID != active {
		logging.Warn(r.logger, "dropping broadcast for inactive game",
			logging.FieldGameID, snap.UUID, "active_game_id", active)
		r.metrics.RecordRelayDropped(metrics.DropStaleGame)
		return nil
	}
	if m == nil {
		logging.Warn(r.logger, "dropping broadcast, no active session", logging.FieldGameID, snap.UUID)
		r.metrics.RecordRelayDropped(metrics.DropAfterTeardown)
		return nil
	}

	start := time.Now()
	sendErr := m.Send(ctx, snap)
	r.metrics.RecordRelayOutbound(time.Since(start), sendErr)
	if sendErr != nil {
		logging.Warn(r.logger, "session send failed", "error", sendErr, logging.FieldGameID, snap.UUID)
	}
	return nil
}

// GameChanged is the fire-and-forget form of Broadcast used by the local
// score path.
func (r *Relay) GameChanged(ctx context.Context, gameUUID string) {
	if err := r.Broadcast(ctx, gameUUID); err != nil {
		logging.Warn(r.logger, "broadcast failed", "error", err, logging.FieldGameID, gameUUID)
	}
}

func (r *Relay) encodeGame(gameUUID string) (snapshot.SharedGame, error) {
	game, ok, err := r.store.Game(gameUUID)
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("loading game: %w", err)
	}
	if !ok {
		return snapshot.SharedGame{}, fmt.Errorf("game %s: %w", gameUUID, store.ErrNotFound)
	}
	course, _, err := r.store.Course(game.CourseUUID)
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("loading course: %w", err)
	}
	baskets, err := r.store.BasketsByCourse(game.CourseUUID)
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("loading baskets: %w", err)
	}
	scores, err := r.store.ScoresByGame(game.UUID)
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("loading scores: %w", err)
	}
	players, err := r.store.Players()
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("loading players: %w", err)
	}
	return snapshot.Encode(game, course, baskets, scores, players), nil
}

func (r *Relay) receiveLoop(ctx context.Context, m Messenger, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-m.Receive():
			if !ok {
				return
			}
			// Let a burst of edits from the sender settle so only the
			// latest state is applied.
			if !r.sleep(ctx, r.settle) {
				return
			}
			start := time.Now()
			err := r.apply(snap)
			r.metrics.RecordRelayInbound(time.Since(start), err)
			if err != nil {
				logging.Error(r.logger, "applying inbound snapshot failed", err,
					logging.FieldGameID, snap.UUID)
			}
		}
	}
}

// apply reconciles one inbound snapshot: adopt a known game, merge an
// unknown one, then overwrite position and every matching score cell.
// The overwrite is unconditional last-write-wins per cell; concurrent edits
// converge to whichever message arrived last.
func (r *Relay) apply(snap snapshot.SharedGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeGameID == "" {
		if existing, ok, err := r.store.Game(snap.UUID); err != nil {
			return fmt.Errorf("resolving game: %w", err)
		} else if ok {
			r.activeGameID = existing.UUID
		}
	}

	if r.activeGameID != snap.UUID {
		game, _, err := r.engine.Import(snap)
		if err != nil {
			return fmt.Errorf("merging inbound game: %w", err)
		}
		r.activeGameID = game.UUID
	}

	game, ok, err := r.store.Game(r.activeGameID)
	if err != nil {
		return fmt.Errorf("loading active game: %w", err)
	}
	if !ok {
		return fmt.Errorf("active game %s: %w", r.activeGameID, store.ErrNotFound)
	}

	scores, err := r.store.ScoresByGame(game.UUID)
	if err != nil {
		return fmt.Errorf("loading scores: %w", err)
	}

	cells := make(map[string]map[string]int, len(snap.Baskets))
	for _, sb := range snap.Baskets {
		byPlayer := make(map[string]int, len(sb.PlayerScores))
		for _, ps := range sb.PlayerScores {
			byPlayer[ps.Player.PlayerUUID] = ps.Score
		}
		cells[sb.BasketID] = byPlayer
	}

	game.CurrentHoleIndex = snap.CurrentBasketIndex
	return r.store.Update(func(tx store.Tx) error {
		if err := tx.PutGame(game); err != nil {
			return err
		}
		for _, s := range scores {
			byPlayer, ok := cells[s.BasketUUID]
			if !ok {
				continue
			}
			value, ok := byPlayer[s.PlayerUUID]
			if !ok {
				continue
			}
			s.Score = value
			if err := tx.PutScore(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Relay) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
