// Package store persists the scorecard entity graph. Entities are keyed by
// uuid with explicit foreign-key fields; relationship traversal is an
// indexed lookup rather than live object pointers.
package store

import (
	"errors"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
)

// ErrNotFound is returned by operations that require an existing row.
var ErrNotFound = errors.New("store: not found")

// Tx collects writes that commit together. Implementations guarantee that
// either every write in the unit of work lands or none do.
type Tx interface {
	PutPlayer(domain.Player) error
	PutCourse(domain.Course) error
	PutBasket(domain.Basket) error
	PutGame(domain.Game) error
	PutScore(domain.PlayerScore) error

	// DeleteBasket removes one basket row, e.g. when a snapshot replaces a
	// course's hole layout.
	DeleteBasket(uuid string) error
}

// Store defines the contract for persisting and retrieving the entity graph.
type Store interface {
	Player(uuid string) (domain.Player, bool, error)
	Players() ([]domain.Player, error)
	Course(uuid string) (domain.Course, bool, error)
	Courses() ([]domain.Course, error)
	BasketsByCourse(courseUUID string) ([]domain.Basket, error)
	Game(uuid string) (domain.Game, bool, error)
	Games() ([]domain.Game, error)
	GamesByCourse(courseUUID string) ([]domain.Game, error)
	ScoresByGame(gameUUID string) ([]domain.PlayerScore, error)

	// Update runs fn inside a single unit of work.
	Update(fn func(Tx) error) error

	// DeleteGame removes a game and cascades to its scores.
	DeleteGame(uuid string) error
	// DeletePlayer removes a player and cascades to its scores.
	DeletePlayer(uuid string) error
	// DeleteCourse removes a course and cascades to its baskets, its games,
	// and their scores.
	DeleteCourse(uuid string) error

	Close() error
}
