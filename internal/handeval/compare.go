package handeval

// Compare returns >0 if a beats b, <0 if b beats a, 0 on a tie.
func Compare(a, b Hand) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	n := len(a.Ranks)
	if len(b.Ranks) < n {
		n = len(b.Ranks)
	}
	for i := 0; i < n; i++ {
		if a.Ranks[i] != b.Ranks[i] {
			return int(a.Ranks[i]) - int(b.Ranks[i])
		}
	}
	return len(a.Ranks) - len(b.Ranks)
}

// DetermineWinners returns the indices of all hands that compare equal to
// the best hand in the slice (a tie splits the pot among all of them).
func DetermineWinners(hands []Hand) []int {
	if len(hands) == 0 {
		return nil
	}
	best := hands[0]
	for _, h := range hands[1:] {
		if Compare(h, best) > 0 {
			best = h
		}
	}
	var winners []int
	for i, h := range hands {
		if Compare(h, best) == 0 {
			winners = append(winners, i)
		}
	}
	return winners
}
