package snapshot

import (
	"sort"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
)

// Encode flattens a game and its related rows into a SharedGame. It is pure
// and deterministic: baskets are ordered by number, players and score rows
// by uuid, so encoding an unchanged game twice yields byte-equivalent JSON.
// Score rows belonging to other games on the same course are filtered out.
func Encode(game domain.Game, course domain.Course, baskets []domain.Basket, scores []domain.PlayerScore, players []domain.Player) SharedGame {
	playerByUUID := make(map[string]domain.Player, len(players))
	for _, p := range players {
		playerByUUID[p.UUID] = p
	}

	gameScores := make([]domain.PlayerScore, 0, len(scores))
	for _, s := range scores {
		if s.GameUUID == game.UUID {
			gameScores = append(gameScores, s)
		}
	}

	ordered := make([]domain.Basket, len(baskets))
	copy(ordered, baskets)
	domain.SortBaskets(ordered)

	sharedBaskets := make([]SharedBasket, 0, len(ordered))
	for _, b := range ordered {
		sharedBaskets = append(sharedBaskets, encodeBasket(b, gameScores, playerByUUID))
	}

	out := SharedGame{
		UUID:               game.UUID,
		CourseID:           course.UUID,
		CourseName:         course.Name,
		CourseLatitude:     copyCoord(course.Latitude),
		CourseLongitude:    copyCoord(course.Longitude),
		StartDate:          FormatDate(game.StartDate),
		CurrentBasketIndex: game.CurrentHoleIndex,
		Players:            distinctPlayers(gameScores, playerByUUID),
		Baskets:            sharedBaskets,
	}
	if game.EndDate != nil {
		out.EndDate = FormatDate(*game.EndDate)
	}
	return out
}

func encodeBasket(b domain.Basket, gameScores []domain.PlayerScore, players map[string]domain.Player) SharedBasket {
	cells := make([]SharedPlayerScore, 0)
	for _, s := range gameScores {
		if s.BasketUUID != b.UUID {
			continue
		}
		cells = append(cells, SharedPlayerScore{
			Player: encodePlayer(s.PlayerUUID, players),
			Score:  s.Score,
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		return cells[i].Player.PlayerUUID < cells[j].Player.PlayerUUID
	})

	return SharedBasket{
		Number:           b.Number,
		Par:              b.Par,
		Distance:         b.Distance,
		BasketID:         b.UUID,
		PlayerScores:     cells,
		BasketLatitudes:  copySamples(b.BasketLatitudes),
		BasketLongitudes: copySamples(b.BasketLongitudes),
		TeeLatitudes:     copySamples(b.TeeLatitudes),
		TeeLongitudes:    copySamples(b.TeeLongitudes),
	}
}

// distinctPlayers collects the players referenced by this game's score rows,
// deduplicated by identity.
func distinctPlayers(gameScores []domain.PlayerScore, players map[string]domain.Player) []SharedPlayer {
	seen := make(map[string]struct{})
	out := make([]SharedPlayer, 0)
	for _, s := range gameScores {
		if _, ok := seen[s.PlayerUUID]; ok {
			continue
		}
		seen[s.PlayerUUID] = struct{}{}
		out = append(out, encodePlayer(s.PlayerUUID, players))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerUUID < out[j].PlayerUUID })
	return out
}

func encodePlayer(uuid string, players map[string]domain.Player) SharedPlayer {
	if p, ok := players[uuid]; ok {
		return SharedPlayer{Name: p.Name, Color: p.Color, PlayerUUID: p.UUID}
	}
	return SharedPlayer{PlayerUUID: uuid}
}

func copyCoord(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copySamples(v []float64) []float64 {
	if len(v) == 0 {
		return []float64{}
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
