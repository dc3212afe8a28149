package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
	"github.com/justinlawrence/disc-golf-tracker/internal/merge"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

// testGraph is the shared fixture: course c1 with two baskets, game g1 with
// Alice and Bob, and a zeroed 2x2 score matrix.
func testGraph(t *testing.T) (domain.Game, domain.Course, []domain.Basket, []domain.PlayerScore, []domain.Player) {
	t.Helper()

	course := domain.Course{UUID: "c1", Name: "Test"}
	b1 := domain.NewBasket(course.UUID, 1)
	b1.Par = "3"
	b2 := domain.NewBasket(course.UUID, 2)
	b2.Par = "4"

	game := domain.Game{
		UUID:       "g1",
		CourseUUID: course.UUID,
		StartDate:  time.Date(2026, 6, 14, 9, 0, 0, 0, time.UTC),
	}
	alice := domain.Player{UUID: "u1", Name: "Alice", Color: "00FF00"}
	bob := domain.Player{UUID: "u2", Name: "Bob", Color: "FF0000"}

	scores := []domain.PlayerScore{
		{GameUUID: game.UUID, BasketUUID: b1.UUID, PlayerUUID: alice.UUID},
		{GameUUID: game.UUID, BasketUUID: b1.UUID, PlayerUUID: bob.UUID},
		{GameUUID: game.UUID, BasketUUID: b2.UUID, PlayerUUID: alice.UUID},
		{GameUUID: game.UUID, BasketUUID: b2.UUID, PlayerUUID: bob.UUID},
	}
	return game, course, []domain.Basket{b1, b2}, scores, []domain.Player{alice, bob}
}

func seedGraph(t *testing.T, st store.Store) {
	t.Helper()
	game, course, baskets, scores, players := testGraph(t)
	err := st.Update(func(tx store.Tx) error {
		if err := tx.PutCourse(course); err != nil {
			return err
		}
		for _, b := range baskets {
			if err := tx.PutBasket(b); err != nil {
				return err
			}
		}
		if err := tx.PutGame(game); err != nil {
			return err
		}
		for _, p := range players {
			if err := tx.PutPlayer(p); err != nil {
				return err
			}
		}
		for _, s := range scores {
			if err := tx.PutScore(s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// snapshotWithScore encodes the fixture with one score cell changed.
func snapshotWithScore(t *testing.T, basketNumber int, playerUUID string, value, holeIndex int) snapshot.SharedGame {
	t.Helper()
	game, course, baskets, scores, players := testGraph(t)
	game.CurrentHoleIndex = holeIndex
	target := domain.BasketUUID(course.UUID, basketNumber)
	for i := range scores {
		if scores[i].BasketUUID == target && scores[i].PlayerUUID == playerUUID {
			scores[i].Score = value
		}
	}
	return snapshot.Encode(game, course, baskets, scores, players)
}

func newTestRelay(t *testing.T, st store.Store, rec *metrics.Recorder) *Relay {
	t.Helper()
	return New(st, merge.New(st, nil, rec), nil, rec, time.Millisecond)
}

func scoreCell(t *testing.T, st store.Store, basketNumber int, playerUUID string) int {
	t.Helper()
	scores, err := st.ScoresByGame("g1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	target := domain.BasketUUID("c1", basketNumber)
	for _, s := range scores {
		if s.BasketUUID == target && s.PlayerUUID == playerUUID {
			return s.Score
		}
	}
	t.Fatalf("no cell for basket %d player %s", basketNumber, playerUUID)
	return 0
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func TestApplyLastWriteWinsBothOrders(t *testing.T) {
	s1 := snapshotWithScore(t, 1, "u1", 2, 0)
	s2 := snapshotWithScore(t, 1, "u1", 5, 1)

	ordered := func(first, second snapshot.SharedGame) (int, int) {
		st := store.NewMemoryStore()
		seedGraph(t, st)
		r := newTestRelay(t, st, nil)
		r.SetActiveGame("g1")
		if err := r.apply(first); err != nil {
			t.Fatalf("apply first: %v", err)
		}
		if err := r.apply(second); err != nil {
			t.Fatalf("apply second: %v", err)
		}
		game, _, _ := st.Game("g1")
		return scoreCell(t, st, 1, "u1"), game.CurrentHoleIndex
	}

	if score, hole := ordered(s1, s2); score != 5 || hole != 1 {
		t.Fatalf("s1 then s2: expected 5/hole 1, got %d/hole %d", score, hole)
	}
	if score, hole := ordered(s2, s1); score != 2 || hole != 0 {
		t.Fatalf("s2 then s1: expected 2/hole 0, got %d/hole %d", score, hole)
	}
}

func TestApplyAdoptsKnownGame(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	r := newTestRelay(t, st, nil)

	if err := r.apply(snapshotWithScore(t, 2, "u2", 4, 1)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if r.ActiveGameID() != "g1" {
		t.Fatalf("expected g1 adopted, got %q", r.ActiveGameID())
	}
	if games, _ := st.Games(); len(games) != 1 {
		t.Fatalf("adoption must not duplicate the game, got %d", len(games))
	}
	if got := scoreCell(t, st, 2, "u2"); got != 4 {
		t.Fatalf("expected score applied on adoption, got %d", got)
	}
}

func TestApplyMergesUnknownGame(t *testing.T) {
	st := store.NewMemoryStore()
	r := newTestRelay(t, st, nil)

	if err := r.apply(snapshotWithScore(t, 1, "u2", 3, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if r.ActiveGameID() != "g1" {
		t.Fatalf("expected merged game active, got %q", r.ActiveGameID())
	}
	scores, _ := st.ScoresByGame("g1")
	if len(scores) != 4 {
		t.Fatalf("expected materialized matrix, got %d rows", len(scores))
	}
	if got := scoreCell(t, st, 1, "u2"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestApplyIgnoresUnknownCells(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	r := newTestRelay(t, st, nil)
	r.SetActiveGame("g1")

	snap := snapshotWithScore(t, 1, "u1", 2, 0)
	snap.Baskets[0].PlayerScores = append(snap.Baskets[0].PlayerScores, snapshot.SharedPlayerScore{
		Player: snapshot.SharedPlayer{PlayerUUID: "stranger"},
		Score:  9,
	})
	if err := r.apply(snap); err != nil {
		t.Fatalf("apply: %v", err)
	}
	scores, _ := st.ScoresByGame("g1")
	if len(scores) != 4 {
		t.Fatalf("unknown cells must not create rows, got %d", len(scores))
	}
}

func TestBroadcastDropsInactiveGame(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	rec := metrics.NewRecorder()
	r := New(st, merge.New(st, nil, rec), nil, rec, time.Millisecond)
	m := newCaptureMessenger()
	r.Configure(m)
	r.SetActiveGame("other-game")

	if err := r.Broadcast(context.Background(), "g1"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if m.sentCount() != 0 {
		t.Fatalf("stale game must not reach the session")
	}
	if rec.RelayDropped(metrics.DropStaleGame) != 1 {
		t.Fatalf("expected stale drop recorded")
	}
	r.Leave()
}

func TestBroadcastAfterLeaveIsSwallowed(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	rec := metrics.NewRecorder()
	r := New(st, merge.New(st, nil, rec), nil, rec, time.Millisecond)
	m := newCaptureMessenger()
	r.Configure(m)
	r.Leave()
	r.SetActiveGame("g1")

	if err := r.Broadcast(context.Background(), "g1"); err != nil {
		t.Fatalf("broadcast after leave must not error, got %v", err)
	}
	if m.sentCount() != 0 {
		t.Fatalf("no send after teardown")
	}
	if rec.RelayDropped(metrics.DropAfterTeardown) != 1 {
		t.Fatalf("expected teardown drop recorded")
	}
}

func TestBroadcastSendsFullState(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	r := newTestRelay(t, st, nil)
	m := newCaptureMessenger()
	r.Configure(m)
	r.SetActiveGame("g1")

	if err := r.Broadcast(context.Background(), "g1"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	sent := m.lastSent(t)
	if sent.UUID != "g1" || len(sent.Baskets) != 2 || len(sent.Players) != 2 {
		t.Fatalf("expected full snapshot, got %+v", sent)
	}
	r.Leave()
}

func TestConfigureClearsActiveGame(t *testing.T) {
	st := store.NewMemoryStore()
	r := newTestRelay(t, st, nil)
	r.SetActiveGame("g1")

	r.Configure(newCaptureMessenger())
	defer r.Leave()
	if r.ActiveGameID() != "" {
		t.Fatalf("joining a session must clear the active game")
	}
}

func TestReceiveLoopAppliesInbound(t *testing.T) {
	st := store.NewMemoryStore()
	seedGraph(t, st)
	rec := metrics.NewRecorder()
	r := New(st, merge.New(st, nil, rec), nil, rec, time.Millisecond)
	m := newCaptureMessenger()
	r.Configure(m)
	defer r.Leave()

	m.in <- snapshotWithScore(t, 1, "u1", 4, 1)
	waitFor(t, func() bool {
		return rec.RelayInbound() == 1
	})
	if got := scoreCell(t, st, 1, "u1"); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestLeaveClosesMessenger(t *testing.T) {
	r := newTestRelay(t, store.NewMemoryStore(), nil)
	m := newCaptureMessenger()
	r.Configure(m)
	r.Leave()

	if !m.isClosed() {
		t.Fatalf("leave must close the messenger")
	}
}

type captureMessenger struct {
	in chan snapshot.SharedGame

	mu     sync.Mutex
	sent   []snapshot.SharedGame
	closed bool
}

func newCaptureMessenger() *captureMessenger {
	return &captureMessenger{in: make(chan snapshot.SharedGame, 8)}
}

func (m *captureMessenger) Send(_ context.Context, snap snapshot.SharedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, snap)
	return nil
}

func (m *captureMessenger) Receive() <-chan snapshot.SharedGame { return m.in }

func (m *captureMessenger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.in)
	}
	return nil
}

func (m *captureMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMessenger) lastSent(t *testing.T) snapshot.SharedGame {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMessenger) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
