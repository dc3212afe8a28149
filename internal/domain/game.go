package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// SortBaskets orders baskets by number, breaking ties by uuid so the order
// is stable even when numbers repeat.
func SortBaskets(baskets []Basket) {
	sort.Slice(baskets, func(i, j int) bool {
		if baskets[i].Number != baskets[j].Number {
			return baskets[i].Number < baskets[j].Number
		}
		return baskets[i].UUID < baskets[j].UUID
	})
}

// ParValue parses a basket's par string. ok is false when the par is unset
// or not a positive integer.
func ParValue(par string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(par))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// PlayerTotal sums a player's recorded strokes for one game. Unplayed cells
// (score 0) do not count.
func PlayerTotal(scores []PlayerScore, playerUUID string) int {
	total := 0
	for _, s := range scores {
		if s.PlayerUUID == playerUUID && s.Score > 0 {
			total += s.Score
		}
	}
	return total
}

// RelativeToPar reports a player's score relative to par across the cells
// that have both a recorded score and a parseable par.
func RelativeToPar(baskets []Basket, scores []PlayerScore, playerUUID string) int {
	pars := make(map[string]int, len(baskets))
	for _, b := range baskets {
		if p, ok := ParValue(b.Par); ok {
			pars[b.UUID] = p
		}
	}
	diff := 0
	for _, s := range scores {
		if s.PlayerUUID != playerUUID || s.Score == 0 {
			continue
		}
		if par, ok := pars[s.BasketUUID]; ok {
			diff += s.Score - par
		}
	}
	return diff
}

// RoundResult ties a player's finished round total to the game it came from.
type RoundResult struct {
	Score  int
	Date   time.Time
	Player *Player
}

// BestRound returns the lowest finished round across the given games.
// scoresByGame maps game uuid to that game's score rows. Games still in
// progress and rounds with no recorded strokes are skipped. ok is false when
// nothing qualifies.
func BestRound(games []Game, scoresByGame map[string][]PlayerScore, players map[string]Player) (RoundResult, bool) {
	var best RoundResult
	found := false
	for _, g := range games {
		if g.InProgress() {
			continue
		}
		seen := make(map[string]struct{})
		for _, s := range scoresByGame[g.UUID] {
			if _, dup := seen[s.PlayerUUID]; dup {
				continue
			}
			seen[s.PlayerUUID] = struct{}{}
			total := PlayerTotal(scoresByGame[g.UUID], s.PlayerUUID)
			if total == 0 {
				continue
			}
			if !found || total < best.Score {
				result := RoundResult{Score: total, Date: g.StartDate}
				if p, ok := players[s.PlayerUUID]; ok {
					player := p
					result.Player = &player
				}
				best = result
				found = true
			}
		}
	}
	return best, found
}
