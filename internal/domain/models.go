package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Player is a person who appears on scorecards. Players created from an
// incoming snapshot carry IsShared until the user claims them locally.
type Player struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Image    []byte `json:"image,omitempty"`
	IsShared bool   `json:"isShared"`
}

// NewPlayer constructs a locally owned player with a fresh identity.
func NewPlayer(name, color string) Player {
	return Player{
		UUID:  uuid.NewString(),
		Name:  name,
		Color: color,
	}
}

// Course is a named set of baskets. Courses materialized from an import are
// flagged IsShared to distinguish them from durable user-created courses.
type Course struct {
	UUID      string   `json:"uuid"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Locality  string   `json:"locality,omitempty"`
	IsShared  bool     `json:"isShared"`
}

// NewCourse constructs a locally owned course.
func NewCourse(name string) Course {
	return Course{
		UUID: uuid.NewString(),
		Name: name,
	}
}

// Basket is one hole of a course. Number is a 1-based sort key within the
// course, not an array index; it is not guaranteed contiguous. Par and
// Distance are strings where "" means unset. The coordinate slices hold GPS
// samples recorded across plays, not a single fixed point.
type Basket struct {
	UUID             string    `json:"uuid"`
	CourseUUID       string    `json:"courseUuid"`
	Number           int       `json:"number"`
	Par              string    `json:"par"`
	Distance         string    `json:"distance"`
	TeeLatitudes     []float64 `json:"teeLatitudes,omitempty"`
	TeeLongitudes    []float64 `json:"teeLongitudes,omitempty"`
	BasketLatitudes  []float64 `json:"basketLatitudes,omitempty"`
	BasketLongitudes []float64 `json:"basketLongitudes,omitempty"`
}

// BasketUUID derives a basket identity from its course and number. Derived
// ids keep the same logical hole stable across devices, which is what makes
// course matching during a merge reliable.
func BasketUUID(courseUUID string, number int) string {
	return fmt.Sprintf("%s_=%d", courseUUID, number)
}

// NewBasket constructs a basket with a derived identity.
func NewBasket(courseUUID string, number int) Basket {
	return Basket{
		UUID:       BasketUUID(courseUUID, number),
		CourseUUID: courseUUID,
		Number:     number,
	}
}

// Game is one play-through of a course. EndDate nil means in progress.
// CurrentHoleIndex is a zero-based cursor into the course's sorted holes;
// one past the last valid index means the results view.
type Game struct {
	UUID             string     `json:"uuid"`
	CourseUUID       string     `json:"courseUuid"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	CurrentHoleIndex int        `json:"currentHoleIndex"`
	IsShared         bool       `json:"isShared"`
}

// NewGame constructs a game on the given course.
func NewGame(courseUUID string, start time.Time) Game {
	return Game{
		UUID:       uuid.NewString(),
		CourseUUID: courseUUID,
		StartDate:  start,
	}
}

// InProgress reports whether the game has not been finished yet.
func (g Game) InProgress() bool {
	return g.EndDate == nil
}

// PlayerScore is one cell of a game's score matrix, identified by the
// (game, basket, player) triple. Score 0 is the "not yet played" sentinel;
// shooting an actual zero is impossible in disc golf.
type PlayerScore struct {
	GameUUID   string `json:"gameUuid"`
	BasketUUID string `json:"basketUuid"`
	PlayerUUID string `json:"playerUuid"`
	Score      int    `json:"score"`
}

// Key returns the composite identity of the score cell.
func (s PlayerScore) Key() string {
	return s.GameUUID + "/" + s.BasketUUID + "/" + s.PlayerUUID
}

// ScoreKey builds the composite identity for a score cell.
func ScoreKey(gameUUID, basketUUID, playerUUID string) string {
	return gameUUID + "/" + basketUUID + "/" + playerUUID
}
