package game

import "sort"

// eliminateBusted drops zero-chip players, compacts remaining seats to
// 0..M-1, and repositions the button: it stays on the surviving player
// who held it, or moves to the nearest surviving seat clockwise from the
// old button seat if that player was just eliminated.
func eliminateBusted(s State) State {
	var survivors []Player
	for _, p := range s.Players {
		if p.Chips > 0 {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) == len(s.Players) {
		return s
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].Seat < survivors[j].Seat })

	var buttonID string
	for _, p := range s.Players {
		if p.Seat == s.ButtonSeat {
			buttonID = p.ID
			break
		}
	}

	targetID := buttonID
	if !survives(survivors, buttonID) {
		targetID = nearestSurvivorClockwise(s.Players, survivors, s.ButtonSeat)
	}

	n := s
	n.Players = make([]Player, len(survivors))
	newButtonSeat := 0
	for i, p := range survivors {
		p.Seat = i
		n.Players[i] = p
		if p.ID == targetID {
			newButtonSeat = i
		}
	}
	n.ButtonSeat = newButtonSeat
	return n
}

func survives(survivors []Player, id string) bool {
	for _, p := range survivors {
		if p.ID == id {
			return true
		}
	}
	return false
}

// nearestSurvivorClockwise walks seats forward from oldButtonSeat (using
// the pre-elimination seat numbering) and returns the id of the first
// seat occupied by a surviving player.
func nearestSurvivorClockwise(original, survivors []Player, oldButtonSeat int) string {
	n := len(original)
	if n == 0 {
		return ""
	}
	survivorSeats := make(map[int]string, len(survivors))
	for _, p := range survivors {
		survivorSeats[p.Seat] = p.ID
	}
	start := oldButtonSeat
	if start < 0 {
		start = 0
	}
	for step := 1; step <= n; step++ {
		seat := (start + step) % n
		if id, ok := survivorSeats[seat]; ok {
			return id
		}
	}
	return survivors[0].ID
}
