// Package snapshot defines the flattened, store-independent representation
// of a game used for transfer, both as the live-session payload and as the
// file export format.
package snapshot

import (
	"fmt"
	"time"
)

// SharedPlayer carries a player's transferable identity. Images and local
// ownership flags are intentionally dropped by the snapshot format.
type SharedPlayer struct {
	Name       string `json:"name"`
	Color      string `json:"color"`
	PlayerUUID string `json:"playerUuid"`
}

// SharedPlayerScore is one score cell inside a shared basket.
type SharedPlayerScore struct {
	Player SharedPlayer `json:"player"`
	Score  int          `json:"score"`
}

// SharedBasket is a flattened hole, carrying its own score list and the raw
// coordinate samples recorded across plays.
type SharedBasket struct {
	Number           int                 `json:"number"`
	Par              string              `json:"par"`
	Distance         string              `json:"distance"`
	BasketID         string              `json:"basketId"`
	PlayerScores     []SharedPlayerScore `json:"playerScores"`
	BasketLatitudes  []float64           `json:"basketsLatitudes"`
	BasketLongitudes []float64           `json:"basketsLongitudes"`
	TeeLatitudes     []float64           `json:"teeLatitudes"`
	TeeLongitudes    []float64           `json:"teeLongitudes"`
}

// SharedGame is a self-contained copy of a game. It must be fully
// reconstructable into a game, course, baskets, players, and scores without
// any other context; it carries no reference into the sender's local store.
type SharedGame struct {
	UUID               string         `json:"uuid"`
	CourseID           string         `json:"courseId"`
	CourseName         string         `json:"courseName"`
	CourseLatitude     *float64       `json:"courseLatitude,omitempty"`
	CourseLongitude    *float64       `json:"courseLongitude,omitempty"`
	StartDate          string         `json:"startDate,omitempty"`
	EndDate            string         `json:"endDate,omitempty"`
	CurrentBasketIndex int            `json:"currentBasketIndex"`
	Players            []SharedPlayer `json:"players"`
	Baskets            []SharedBasket `json:"baskets"`
}

// ParseDate parses the snapshot date fields. ok is false for empty or
// malformed values.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a snapshot date field.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Filename suggests the export file name for a snapshot, e.g.
// "Maple Hill on Jun 14, 2026.game".
func (s SharedGame) Filename() string {
	started, ok := ParseDate(s.StartDate)
	if !ok {
		return fmt.Sprintf("%s.game", s.CourseName)
	}
	return fmt.Sprintf("%s on %s.game", s.CourseName, started.Format("Jan 2, 2006"))
}
