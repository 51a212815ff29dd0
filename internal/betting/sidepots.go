package betting

import "sort"

// SidePot is one layer of a partitioned pot: the chips in it and the
// non-folded players eligible to win it.
type SidePot struct {
	Amount          int
	EligiblePlayers []string
}

// SidePots partitions committed chips into the canonical main-pot/side-pot
// layering. committed holds each player's total chips committed to the
// hand (across all streets so far); folded marks players excluded from
// eligibility despite having contributed chips to the pot.
//
// Distinct commitment levels are sorted ascending; for each level L with
// the previous level P (0 initially), the layer holds (L-P) chips for
// every player committed at least L, and is eligible to every such player
// who has not folded.
func SidePots(committed map[string]int, folded map[string]bool) []SidePot {
	levels := distinctLevels(committed)

	var pots []SidePot
	prev := 0
	for _, level := range levels {
		if level == prev {
			continue
		}
		layer := level - prev
		var atOrAbove []string
		var eligible []string
		for id, amt := range committed {
			if amt >= level {
				atOrAbove = append(atOrAbove, id)
				if !folded[id] {
					eligible = append(eligible, id)
				}
			}
		}
		if len(atOrAbove) > 0 && len(eligible) > 0 {
			sort.Strings(eligible)
			pots = append(pots, SidePot{
				Amount:          layer * len(atOrAbove),
				EligiblePlayers: eligible,
			})
		}
		prev = level
	}
	return pots
}

func distinctLevels(committed map[string]int) []int {
	seen := make(map[int]bool, len(committed))
	var levels []int
	for _, amt := range committed {
		if amt > 0 && !seen[amt] {
			seen[amt] = true
			levels = append(levels, amt)
		}
	}
	sort.Ints(levels)
	return levels
}

// SidePots computes side pots from this round's own commitments, for the
// simple case where a single street's player_bets already represent the
// full hand's commitments (no all-in has occurred and side-pot math is
// not needed across streets).
func (r Round) SidePots() []SidePot {
	return SidePots(r.PlayerBets, r.Folded)
}
