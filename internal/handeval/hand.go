// Package handeval evaluates short-deck Hold'em hands: best 5-of-7,
// category ranking with flush above full house, and the wheel
// (A-6-7-8-9) as the lowest straight.
package handeval

import (
	"sort"

	"shortdeck-engine/internal/cards"
)

// Category is a hand ranking class, ordered weakest (0) to strongest.
// Short-deck swaps Flush and FullHouse relative to standard Hold'em
// because the reduced deck makes flushes harder to make than full houses.
type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	FullHouse
	Flush
	FourOfAKind
	StraightFlush
)

var categoryNames = [...]string{
	"High Card", "Pair", "Two Pair", "Three of a Kind",
	"Straight", "Full House", "Flush", "Four of a Kind", "Straight Flush",
}

func (c Category) String() string {
	if c < HighCard || c > StraightFlush {
		return "Unknown"
	}
	return categoryNames[c]
}

// Hand is a scored 5-card (or fewer, when fewer are available) selection.
// Ranks is the tie-break key, most significant rank first; its meaning
// depends on Category (see score).
type Hand struct {
	Category Category
	Ranks    []cards.Rank
	Cards    []cards.Card
}

// straightSeq maps a straight's identity to a comparable strength,
// with the wheel ranked below the 6-high straight.
type straightSeq struct {
	ranks   [5]cards.Rank // descending, as they appear in a normal hand
	ordinal int
}

var straightSequences = []straightSeq{
	{[5]cards.Rank{cards.Ace, cards.King, cards.Queen, cards.Jack, cards.Ten}, 5},
	{[5]cards.Rank{cards.King, cards.Queen, cards.Jack, cards.Ten, cards.Nine}, 4},
	{[5]cards.Rank{cards.Queen, cards.Jack, cards.Ten, cards.Nine, cards.Eight}, 3},
	{[5]cards.Rank{cards.Jack, cards.Ten, cards.Nine, cards.Eight, cards.Seven}, 2},
	{[5]cards.Rank{cards.Ten, cards.Nine, cards.Eight, cards.Seven, cards.Six}, 1},
	{[5]cards.Rank{cards.Ace, cards.Nine, cards.Eight, cards.Seven, cards.Six}, 0}, // wheel
}

// matchStraight returns (ordinal, true) if the given 5 distinct ranks form
// one of the short-deck straights.
func matchStraight(set map[cards.Rank]bool) (int, bool) {
	if len(set) != 5 {
		return 0, false
	}
	for _, seq := range straightSequences {
		match := true
		for _, r := range seq.ranks {
			if !set[r] {
				match = false
				break
			}
		}
		if match {
			return seq.ordinal, true
		}
	}
	return 0, false
}

// Best evaluates the best hand obtainable from hole combined with board.
// When fewer than 5 cards are available in total, it evaluates whatever
// exists (no straight/flush is possible below 5 cards).
func Best(hole, board []cards.Card) Hand {
	all := make([]cards.Card, 0, len(hole)+len(board))
	all = append(all, hole...)
	all = append(all, board...)

	k := 5
	if len(all) < 5 {
		k = len(all)
	}
	if k == 0 {
		return Hand{Category: HighCard}
	}

	var best Hand
	haveBest := false
	forEachCombination(len(all), k, func(idx []int) {
		subset := make([]cards.Card, k)
		for i, j := range idx {
			subset[i] = all[j]
		}
		h := score(subset)
		if !haveBest || Compare(h, best) > 0 {
			best = h
			haveBest = true
		}
	})
	return best
}

// score evaluates exactly the given cards (may be fewer than 5) as a
// single candidate hand.
func score(set []cards.Card) Hand {
	sorted := append([]cards.Card(nil), set...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	counts := make(map[cards.Rank]int)
	for _, c := range sorted {
		counts[c.Rank]++
	}

	distinctDesc := make([]cards.Rank, 0, len(counts))
	for r := range counts {
		distinctDesc = append(distinctDesc, r)
	}
	sort.Slice(distinctDesc, func(i, j int) bool { return distinctDesc[i] > distinctDesc[j] })

	isFlush := len(sorted) == 5 && sameSuit(sorted)
	straightOrdinal, isStraight := -1, false
	if len(sorted) == 5 {
		rankSet := make(map[cards.Rank]bool, 5)
		for _, c := range sorted {
			rankSet[c.Rank] = true
		}
		if ord, ok := matchStraight(rankSet); ok {
			straightOrdinal = ord
			isStraight = true
		}
	}

	switch {
	case isFlush && isStraight:
		return Hand{Category: StraightFlush, Ranks: []cards.Rank{cards.Rank(straightOrdinal)}, Cards: sorted}
	case groupOfSize(counts, 4) != -1:
		quad := groupOfSize(counts, 4)
		kicker := bestKicker(distinctDesc, quad, -1)
		return Hand{Category: FourOfAKind, Ranks: []cards.Rank{quad, kicker}, Cards: sorted}
	case isFullHouse(counts):
		trips, pair := fullHouseRanks(counts)
		return Hand{Category: FullHouse, Ranks: []cards.Rank{trips, pair}, Cards: sorted}
	case isFlush:
		return Hand{Category: Flush, Ranks: append([]cards.Rank(nil), distinctDesc...), Cards: sorted}
	case isStraight:
		return Hand{Category: Straight, Ranks: []cards.Rank{cards.Rank(straightOrdinal)}, Cards: sorted}
	case groupOfSize(counts, 3) != -1:
		trips := groupOfSize(counts, 3)
		kickers := kickersExcluding(distinctDesc, counts, trips, -1, 2)
		return Hand{Category: ThreeOfAKind, Ranks: append([]cards.Rank{trips}, kickers...), Cards: sorted}
	case countGroupsOfSize(counts, 2) >= 2:
		pairs := groupsOfSize(counts, 2)
		sort.Slice(pairs, func(i, j int) bool { return pairs[i] > pairs[j] })
		high, low := pairs[0], pairs[1]
		kicker := bestKicker(distinctDesc, high, low)
		return Hand{Category: TwoPair, Ranks: []cards.Rank{high, low, kicker}, Cards: sorted}
	case groupOfSize(counts, 2) != -1:
		pair := groupOfSize(counts, 2)
		kickers := kickersExcluding(distinctDesc, counts, pair, -1, 3)
		return Hand{Category: Pair, Ranks: append([]cards.Rank{pair}, kickers...), Cards: sorted}
	default:
		return Hand{Category: HighCard, Ranks: append([]cards.Rank(nil), distinctDesc...), Cards: sorted}
	}
}

func sameSuit(cs []cards.Card) bool {
	for i := 1; i < len(cs); i++ {
		if cs[i].Suit != cs[0].Suit {
			return false
		}
	}
	return true
}

func groupOfSize(counts map[cards.Rank]int, size int) cards.Rank {
	best := cards.Rank(-1)
	for r, c := range counts {
		if c == size && r > best {
			best = r
		}
	}
	return best
}

func groupsOfSize(counts map[cards.Rank]int, size int) []cards.Rank {
	var out []cards.Rank
	for r, c := range counts {
		if c == size {
			out = append(out, r)
		}
	}
	return out
}

func countGroupsOfSize(counts map[cards.Rank]int, size int) int {
	n := 0
	for _, c := range counts {
		if c == size {
			n++
		}
	}
	return n
}

func isFullHouse(counts map[cards.Rank]int) bool {
	hasTrips, hasPair := false, false
	for _, c := range counts {
		if c >= 3 {
			hasTrips = true
		}
		if c == 2 {
			hasPair = true
		}
	}
	// A second trips can serve as the pair (e.g. two three-of-a-kinds).
	if !hasPair {
		trips := 0
		for _, c := range counts {
			if c >= 3 {
				trips++
			}
		}
		hasPair = trips >= 2
	}
	return hasTrips && hasPair
}

func fullHouseRanks(counts map[cards.Rank]int) (trips cards.Rank, pair cards.Rank) {
	trips, pair = -1, -1
	for r, c := range counts {
		if c >= 3 && r > trips {
			trips = r
		}
	}
	for r, c := range counts {
		if r == trips {
			continue
		}
		if (c == 2 || c >= 3) && r > pair {
			pair = r
		}
	}
	return trips, pair
}

// bestKicker returns the highest rank not equal to excl1 or excl2.
func bestKicker(distinctDesc []cards.Rank, excl1, excl2 cards.Rank) cards.Rank {
	for _, r := range distinctDesc {
		if r != excl1 && r != excl2 {
			return r
		}
	}
	return -1
}

// kickersExcluding returns up to n ranks (one per remaining card, highest
// first) excluding the given group ranks.
func kickersExcluding(distinctDesc []cards.Rank, counts map[cards.Rank]int, excl1, excl2 cards.Rank, n int) []cards.Rank {
	var out []cards.Rank
	for _, r := range distinctDesc {
		if r == excl1 || r == excl2 {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}

// forEachCombination invokes fn with each k-combination of indices
// [0,n) in lexicographic order.
func forEachCombination(n, k int, fn func(idx []int)) {
	if k > n || k == 0 {
		if k == 0 {
			fn(nil)
		}
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
