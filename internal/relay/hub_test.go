package relay

import (
	"context"
	"testing"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/merge"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

func TestHubFanOutSkipsSender(t *testing.T) {
	hub := NewHub(nil, nil)
	a := hub.Join("s1")
	b := hub.Join("s1")
	c := hub.Join("s1")
	defer a.Close()
	defer b.Close()
	defer c.Close()

	if err := a.Send(context.Background(), snapshot.SharedGame{UUID: "g1"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	for name, sub := range map[string]*Subscriber{"b": b, "c": c} {
		select {
		case snap := <-sub.Receive():
			if snap.UUID != "g1" {
				t.Fatalf("%s: unexpected snapshot %+v", name, snap)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no delivery", name)
		}
	}
	select {
	case snap := <-a.Receive():
		t.Fatalf("sender must not hear itself, got %+v", snap)
	default:
	}
}

func TestHubIsolatesSessions(t *testing.T) {
	hub := NewHub(nil, nil)
	a := hub.Join("s1")
	b := hub.Join("s2")
	defer a.Close()
	defer b.Close()

	if err := a.Send(context.Background(), snapshot.SharedGame{UUID: "g1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case snap := <-b.Receive():
		t.Fatalf("cross-session delivery: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	rec := metrics.NewRecorder()
	hub := NewHub(nil, rec)
	a := hub.Join("s1")
	b := hub.Join("s1")
	defer a.Close()
	defer b.Close()

	for i := 0; i < subscriberBuffer+3; i++ {
		if err := a.Send(context.Background(), snapshot.SharedGame{UUID: "g1", CurrentBasketIndex: i}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if got := rec.RelayDropped(metrics.DropSubscriberFull); got != 3 {
		t.Fatalf("expected 3 overflow drops, got %d", got)
	}
	if len(b.Receive()) != subscriberBuffer {
		t.Fatalf("expected full buffer retained, got %d", len(b.Receive()))
	}
	// The oldest deliveries are evicted, so the head of the buffer is the
	// fourth message and the tail is the last one sent.
	first := <-b.Receive()
	if first.CurrentBasketIndex != 3 {
		t.Fatalf("expected oldest pending to be message 3, got %d", first.CurrentBasketIndex)
	}
	var last snapshot.SharedGame
	for len(b.Receive()) > 0 {
		last = <-b.Receive()
	}
	if last.CurrentBasketIndex != subscriberBuffer+2 {
		t.Fatalf("expected newest message retained, got %d", last.CurrentBasketIndex)
	}
}

func TestHubCloseRemovesSubscriber(t *testing.T) {
	hub := NewHub(nil, nil)
	a := hub.Join("s1")
	b := hub.Join("s1")

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := hub.Subscriber("s1", b.ID()); ok {
		t.Fatalf("closed subscriber still registered")
	}
	if _, open := <-b.Receive(); open {
		t.Fatalf("expected closed receive channel")
	}

	a.Close()
	if hub.Sessions() != 0 {
		t.Fatalf("empty session must be removed")
	}
}

// TestTwoDevicesConvergeOverHub runs the full loop: device A starts a game
// and broadcasts, device B materializes it via merge, edits a score, and
// broadcasts back; both stores converge.
func TestTwoDevicesConvergeOverHub(t *testing.T) {
	hub := NewHub(nil, nil)

	storeA := store.NewMemoryStore()
	seedGraph(t, storeA)
	relayA := New(storeA, merge.New(storeA, nil, nil), nil, nil, time.Millisecond)
	relayA.Configure(hub.Join("session-1"))
	defer relayA.Leave()
	relayA.SetActiveGame("g1")

	storeB := store.NewMemoryStore()
	relayB := New(storeB, merge.New(storeB, nil, nil), nil, nil, time.Millisecond)
	relayB.Configure(hub.Join("session-1"))
	defer relayB.Leave()

	// A announces the game; B has never seen it and must materialize the
	// whole graph.
	if err := relayA.Broadcast(context.Background(), "g1"); err != nil {
		t.Fatalf("broadcast from A: %v", err)
	}
	waitFor(t, func() bool {
		scores, _ := storeB.ScoresByGame("g1")
		return len(scores) == 4
	})
	if relayB.ActiveGameID() != "g1" {
		t.Fatalf("B must adopt the merged game, got %q", relayB.ActiveGameID())
	}

	// B records a score for Bob on hole 1 and broadcasts; A converges.
	err := storeB.Update(func(tx store.Tx) error {
		scores, err := storeB.ScoresByGame("g1")
		if err != nil {
			return err
		}
		for _, s := range scores {
			if s.PlayerUUID == "u2" && s.BasketUUID == "c1_=1" {
				s.Score = 4
				return tx.PutScore(s)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("edit on B: %v", err)
	}
	if err := relayB.Broadcast(context.Background(), "g1"); err != nil {
		t.Fatalf("broadcast from B: %v", err)
	}

	waitFor(t, func() bool {
		scores, _ := storeA.ScoresByGame("g1")
		for _, s := range scores {
			if s.PlayerUUID == "u2" && s.BasketUUID == "c1_=1" && s.Score == 4 {
				return true
			}
		}
		return false
	})
}
