package lobby

import "github.com/mcoot/gamelobby/internal/model"

// AllReady reports whether every player in the room is ready.
// An empty lobby is never ready.
func AllReady(players []model.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// ReadyCount returns how many players are ready
func ReadyCount(players []model.Player) int {
	n := 0
	for _, p := range players {
		if p.Ready {
			n++
		}
	}
	return n
}
