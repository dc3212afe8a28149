package domain

import (
	"testing"
	"time"
)

func TestNewEntitiesGetDistinctIdentities(t *testing.T) {
	a := NewPlayer("Alice", "00FF00")
	b := NewPlayer("Bob", "FF0000")
	if a.UUID == "" || a.UUID == b.UUID {
		t.Fatalf("players must get fresh distinct uuids")
	}
	if a.IsShared {
		t.Fatalf("locally created players are not shared")
	}

	c := NewCourse("Test")
	g := NewGame(c.UUID, time.Now())
	if g.CourseUUID != c.UUID {
		t.Fatalf("game must reference its course")
	}
	if !g.InProgress() {
		t.Fatalf("new game must be in progress")
	}
}

func TestBasketUUIDIsDerived(t *testing.T) {
	if got := BasketUUID("c1", 7); got != "c1_=7" {
		t.Fatalf("unexpected derived uuid %q", got)
	}
	b := NewBasket("c1", 7)
	if b.UUID != "c1_=7" || b.CourseUUID != "c1" || b.Number != 7 {
		t.Fatalf("unexpected basket %+v", b)
	}
	// Same course and number on any device yields the same identity.
	if NewBasket("c1", 7).UUID != b.UUID {
		t.Fatalf("derived identities must be stable")
	}
}

func TestScoreKey(t *testing.T) {
	s := PlayerScore{GameUUID: "g", BasketUUID: "b", PlayerUUID: "p"}
	if s.Key() != "g/b/p" {
		t.Fatalf("unexpected key %q", s.Key())
	}
	if ScoreKey("g", "b", "p") != s.Key() {
		t.Fatalf("helpers must agree")
	}
}
