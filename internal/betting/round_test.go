package betting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headsUp(chipsA, chipsB int) []PlayerInRound {
	return []PlayerInRound{
		{ID: "A", Seat: 0, Chips: chipsA},
		{ID: "B", Seat: 1, Chips: chipsB},
	}
}

func TestHeadsUpLimpAndCheckReachesFlop(t *testing.T) {
	r, err := New(headsUp(1000, 1000), 10, 20, 0)
	require.NoError(t, err)

	active, ok := r.ActivePlayer()
	require.True(t, ok)
	assert.Equal(t, "A", active, "heads-up button (SB) acts first preflop")

	r, err = r.Apply("A", Action{Kind: Call})
	require.NoError(t, err)

	active, ok = r.ActivePlayer()
	require.True(t, ok)
	assert.Equal(t, "B", active)

	r, err = r.Apply("B", Action{Kind: Check})
	require.NoError(t, err)

	assert.True(t, r.IsComplete())
	assert.Equal(t, 40, r.Pot)
	assert.Equal(t, 980, chipsOf(r, "A"), "SB posts 10 then calls 10 more, total committed 20")
	assert.Equal(t, 980, chipsOf(r, "B"), "BB posts 20 and checks")
}

func TestPreflopFoldEndsHandImmediately(t *testing.T) {
	r, err := New(headsUp(1000, 1000), 10, 20, 0)
	require.NoError(t, err)

	r, err = r.Apply("A", Action{Kind: Fold})
	require.NoError(t, err)

	assert.True(t, r.IsComplete())
	assert.Equal(t, 1, r.nonFoldedCount())
}

// threeWay seats three players with seat 0 as the button (first to act
// preflop in a 3-handed game), seat 1 as small blind, seat 2 as big blind.
func threeWay(chips [3]int) []PlayerInRound {
	return []PlayerInRound{
		{ID: "UTG", Seat: 0, Chips: chips[0]},
		{ID: "SB", Seat: 1, Chips: chips[1]},
		{ID: "BB", Seat: 2, Chips: chips[2]},
	}
}

func TestMinimumRaiseEnforcement(t *testing.T) {
	r, err := New(threeWay([3]int{1000, 1000, 1000}), 10, 20, 0)
	require.NoError(t, err)

	active, ok := r.ActivePlayer()
	require.True(t, ok)
	require.Equal(t, "UTG", active)

	_, err = r.Apply("UTG", Action{Kind: Raise, Amount: 25})
	var belowMin *BelowMinimumRaiseError
	require.ErrorAs(t, err, &belowMin)
	assert.Equal(t, 25, belowMin.Attempted)
	assert.Equal(t, 40, belowMin.Minimum)

	r, err = r.Apply("UTG", Action{Kind: Raise, Amount: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, r.CurrentBet)

	active, ok = r.ActivePlayer()
	require.True(t, ok)
	require.Equal(t, "SB", active)

	_, err = r.Apply("SB", Action{Kind: Raise, Amount: 50})
	require.ErrorAs(t, err, &belowMin)
	assert.Equal(t, 50, belowMin.Attempted)
	assert.Equal(t, 60, belowMin.Minimum)

	r, err = r.Apply("SB", Action{Kind: Raise, Amount: 60})
	require.NoError(t, err)
	assert.Equal(t, 60, r.CurrentBet)
}

func TestShortStackAllInSinglePot(t *testing.T) {
	players := []PlayerInRound{
		{ID: "P0", Seat: 0, Chips: 100},
		{ID: "P1", Seat: 1, Chips: 500},
		{ID: "P2", Seat: 2, Chips: 1000},
	}
	r, err := New(players, 5, 10, 0)
	require.NoError(t, err)

	// Seat 0 is the button and acts first preflop in a 3-handed game.
	active, _ := r.ActivePlayer()
	require.Equal(t, "P0", active)
	r, err = r.Apply(active, Action{Kind: AllIn})
	require.NoError(t, err)

	for {
		id, ok := r.ActivePlayer()
		if !ok {
			break
		}
		owe := r.AmountToCall(id)
		if owe > 0 {
			r, err = r.Apply(id, Action{Kind: Call})
		} else {
			r, err = r.Apply(id, Action{Kind: Check})
		}
		require.NoError(t, err)
	}

	assert.True(t, r.IsComplete())
	pots := r.SidePots()
	require.Len(t, pots, 1)
	assert.Equal(t, 300, pots[0].Amount)
	assert.ElementsMatch(t, []string{"P0", "P1", "P2"}, pots[0].EligiblePlayers)
}

func TestUnequalAllInsProduceLayeredSidePots(t *testing.T) {
	committed := map[string]int{"p1": 50, "p2": 150, "p3": 300, "p4": 300}
	folded := map[string]bool{}

	pots := SidePots(committed, folded)
	require.Len(t, pots, 3)

	assert.Equal(t, 200, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}, pots[0].EligiblePlayers)

	assert.Equal(t, 300, pots[1].Amount)
	assert.ElementsMatch(t, []string{"p2", "p3", "p4"}, pots[1].EligiblePlayers)

	assert.Equal(t, 300, pots[2].Amount)
	assert.ElementsMatch(t, []string{"p3", "p4"}, pots[2].EligiblePlayers)
}

func TestFoldedPlayerExcludedFromSidePotEligibility(t *testing.T) {
	committed := map[string]int{"p1": 100, "p2": 100, "p3": 100}
	folded := map[string]bool{"p2": true}

	pots := SidePots(committed, folded)
	require.Len(t, pots, 1)
	assert.Equal(t, 300, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p3"}, pots[0].EligiblePlayers)
}

func TestBigBlindOptionNotReopenedBySubMinimumAllIn(t *testing.T) {
	players := []PlayerInRound{
		{ID: "UTG", Seat: 0, Chips: 1000},
		{ID: "SB", Seat: 1, Chips: 1000},
		{ID: "BB", Seat: 2, Chips: 25},
	}
	r, err := New(players, 10, 20, 0)
	require.NoError(t, err)

	r, err = r.Apply("UTG", Action{Kind: Call})
	require.NoError(t, err)
	r, err = r.Apply("SB", Action{Kind: Call})
	require.NoError(t, err)

	// BB is all-in for 25, a raise of only 5 over current_bet 20: below the
	// 20-chip minimum raise, so it must not reopen action for UTG/SB.
	r, err = r.Apply("BB", Action{Kind: AllIn})
	require.NoError(t, err)
	assert.True(t, r.AllIn["BB"])
	assert.NotContains(t, r.PlayersWhoCanAct, "UTG")
	assert.NotContains(t, r.PlayersWhoCanAct, "SB")
	assert.True(t, r.IsComplete())
}

func chipsOf(r Round, id string) int {
	for _, p := range r.Players {
		if p.ID == id {
			return p.Chips
		}
	}
	return -1
}
