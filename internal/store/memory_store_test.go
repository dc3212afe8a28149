package store

import (
	"errors"
	"testing"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
)

func seedGraph(t *testing.T, s Store) (domain.Course, []domain.Basket, domain.Game, []domain.Player) {
	t.Helper()

	course := domain.Course{UUID: "c1", Name: "Test"}
	b1 := domain.NewBasket("c1", 1)
	b2 := domain.NewBasket("c1", 2)
	game := domain.Game{UUID: "g1", CourseUUID: "c1", StartDate: time.Now().UTC()}
	alice := domain.Player{UUID: "u1", Name: "Alice"}
	bob := domain.Player{UUID: "u2", Name: "Bob"}

	err := s.Update(func(tx Tx) error {
		if err := tx.PutCourse(course); err != nil {
			return err
		}
		for _, b := range []domain.Basket{b1, b2} {
			if err := tx.PutBasket(b); err != nil {
				return err
			}
		}
		if err := tx.PutGame(game); err != nil {
			return err
		}
		for _, p := range []domain.Player{alice, bob} {
			if err := tx.PutPlayer(p); err != nil {
				return err
			}
		}
		for _, b := range []domain.Basket{b1, b2} {
			for _, p := range []domain.Player{alice, bob} {
				sc := domain.PlayerScore{GameUUID: game.UUID, BasketUUID: b.UUID, PlayerUUID: p.UUID}
				if err := tx.PutScore(sc); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return course, []domain.Basket{b1, b2}, game, []domain.Player{alice, bob}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	_, baskets, game, _ := seedGraph(t, s)

	got, ok, err := s.Game(game.UUID)
	if err != nil || !ok {
		t.Fatalf("expected game, got ok=%v err=%v", ok, err)
	}
	if got.CourseUUID != "c1" {
		t.Fatalf("unexpected course ref %q", got.CourseUUID)
	}

	bs, err := s.BasketsByCourse("c1")
	if err != nil {
		t.Fatalf("baskets: %v", err)
	}
	if len(bs) != 2 || bs[0].UUID != baskets[0].UUID {
		t.Fatalf("expected sorted baskets, got %+v", bs)
	}

	scores, err := s.ScoresByGame(game.UUID)
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 4 {
		t.Fatalf("expected 4 score rows, got %d", len(scores))
	}
}

func TestMemoryStoreUpdateRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.Update(func(tx Tx) error {
		if err := tx.PutCourse(domain.Course{UUID: "c9", Name: "Partial"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok, _ := s.Course("c9"); ok {
		t.Fatalf("failed unit of work must not leave partial writes")
	}
}

func TestMemoryStoreDeleteBasketInUnitOfWork(t *testing.T) {
	s := NewMemoryStore()
	_, baskets, _, _ := seedGraph(t, s)

	boom := errors.New("boom")
	err := s.Update(func(tx Tx) error {
		if err := tx.DeleteBasket(baskets[0].UUID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if bs, _ := s.BasketsByCourse("c1"); len(bs) != 2 {
		t.Fatalf("aborted delete must not apply, got %d baskets", len(bs))
	}

	err = s.Update(func(tx Tx) error {
		return tx.DeleteBasket(baskets[0].UUID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	bs, _ := s.BasketsByCourse("c1")
	if len(bs) != 1 || bs[0].UUID != baskets[1].UUID {
		t.Fatalf("expected only %s to survive, got %+v", baskets[1].UUID, bs)
	}
}

func TestMemoryStoreDeleteGameCascades(t *testing.T) {
	s := NewMemoryStore()
	_, _, game, _ := seedGraph(t, s)

	if err := s.DeleteGame(game.UUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Game(game.UUID); ok {
		t.Fatalf("expected game gone")
	}
	scores, _ := s.ScoresByGame(game.UUID)
	if len(scores) != 0 {
		t.Fatalf("expected cascaded scores, got %d rows", len(scores))
	}
}

func TestMemoryStoreDeletePlayerCascades(t *testing.T) {
	s := NewMemoryStore()
	_, _, game, players := seedGraph(t, s)

	if err := s.DeletePlayer(players[0].UUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	scores, _ := s.ScoresByGame(game.UUID)
	for _, sc := range scores {
		if sc.PlayerUUID == players[0].UUID {
			t.Fatalf("expected alice's scores removed, found %+v", sc)
		}
	}
	if len(scores) != 2 {
		t.Fatalf("expected bob's 2 rows to survive, got %d", len(scores))
	}
}

func TestMemoryStoreDeleteCourseCascades(t *testing.T) {
	s := NewMemoryStore()
	course, _, game, _ := seedGraph(t, s)

	if err := s.DeleteCourse(course.UUID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if bs, _ := s.BasketsByCourse(course.UUID); len(bs) != 0 {
		t.Fatalf("expected baskets gone, got %d", len(bs))
	}
	if _, ok, _ := s.Game(game.UUID); ok {
		t.Fatalf("expected games on the course gone")
	}
	if scores, _ := s.ScoresByGame(game.UUID); len(scores) != 0 {
		t.Fatalf("expected scores gone, got %d", len(scores))
	}
}
