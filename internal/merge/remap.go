package merge

import "github.com/justinlawrence/disc-golf-tracker/internal/snapshot"

// RemapPlayer redirects a shared player's identity inside an in-memory
// snapshot before it is imported. The importing user chooses this per player
// on the file-import path, either pointing at an existing local player
// ("same person") or at a fresh uuid. Every score reference is rewritten
// along with the player list entry.
func RemapPlayer(snap *snapshot.SharedGame, fromUUID, toUUID string) {
	if snap == nil || fromUUID == "" || toUUID == "" || fromUUID == toUUID {
		return
	}
	for i := range snap.Players {
		if snap.Players[i].PlayerUUID == fromUUID {
			snap.Players[i].PlayerUUID = toUUID
		}
	}
	for bi := range snap.Baskets {
		cells := snap.Baskets[bi].PlayerScores
		for ci := range cells {
			if cells[ci].Player.PlayerUUID == fromUUID {
				cells[ci].Player.PlayerUUID = toUUID
			}
		}
	}
}
