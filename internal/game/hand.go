package game

import (
	"sort"

	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/cards"
	"shortdeck-engine/internal/handeval"
)

// handleCreateGame persists the tournament_created event describing the
// initial seating, so crash recovery can reconstruct a fresh game even
// if the crash happens before the first hand is dealt.
func (a *Actor) handleCreateGame(reply chan Response) {
	if a.state.HandNumber != 0 || a.state.Phase != Waiting {
		reply <- Response{State: a.state.clone(), Err: ErrHandAlreadyInProgress}
		return
	}
	players := make([]map[string]any, len(a.state.Players))
	for i, p := range a.state.Players {
		players[i] = map[string]any{"id": p.ID, "chips": p.Chips, "seat": p.Seat}
	}
	if err := a.persist("tournament_created", map[string]any{
		"game_id":     a.gameID,
		"players":     players,
		"small_blind": a.state.SmallBlind,
		"big_blind":   a.state.BigBlind,
	}); err != nil {
		reply <- Response{State: a.state.clone(), Err: err}
		return
	}
	a.broadcastSnapshot(nil)
	reply <- Response{State: a.state.clone(), Event: "tournament_created"}
}

func (a *Actor) handleStartHand(reply chan Response) {
	if a.round != nil && !a.round.IsComplete() {
		reply <- Response{State: a.state.clone(), Err: ErrHandAlreadyInProgress}
		return
	}

	before := a.snapshotForRollback()

	a.state = eliminateBusted(a.state)
	if a.state.activePlayerCount() <= 1 {
		a.state.Phase = TournamentComplete
		a.round = nil
		a.originalRound = nil
		if err := a.persist("tournament_completed", map[string]any{"game_id": a.gameID}); err != nil {
			a.restore(before)
			reply <- Response{State: a.state.clone(), Err: err}
			return
		}
		a.broadcastSnapshot(nil)
		reply <- Response{State: a.state.clone(), Event: "tournament_completed"}
		return
	}

	n := len(a.state.Players)
	a.state.ButtonSeat = (a.state.ButtonSeat + 1 + n) % n
	a.state.HandNumber++

	deck := cards.Shuffled(a.rng)
	sort.Slice(a.state.Players, func(i, j int) bool { return a.state.Players[i].Seat < a.state.Players[j].Seat })
	for i := range a.state.Players {
		hole, err := deck.DealN(2)
		if err != nil {
			reply <- Response{State: a.state.clone(), Err: err}
			return
		}
		a.state.Players[i].HoleCards = hole
	}
	a.state.CommunityCards = nil
	a.state.Deck = deck

	round, err := betting.New(bettingPlayers(a.state.Players), a.state.SmallBlind, a.state.BigBlind, a.state.ButtonSeat)
	if err != nil {
		reply <- Response{State: a.state.clone(), Err: err}
		return
	}

	a.round = &round
	a.originalRound = nil
	a.handFolded = make(map[string]bool)
	a.handAllIn = cloneBoolSet(round.AllIn)
	a.streetBaseline = make(map[string]int)
	a.handCommitted = make(map[string]int)
	a.recomputeHandCommitted()
	a.lastShowdown = nil
	a.state = a.state.syncFromRound(round)
	a.state.Phase = PreflopBetting

	if err := a.persist("hand_started", map[string]any{
		"game_id":     a.gameID,
		"hand_number": a.state.HandNumber,
		"button_seat": a.state.ButtonSeat,
		"hole_cards":  holeCardIDs(a.state.Players),
		"deck":        deck.IDs(),
	}); err != nil {
		a.restore(before)
		reply <- Response{State: a.state.clone(), Err: err}
		return
	}
	a.broadcastSnapshot(nil)
	reply <- Response{State: a.state.clone(), Event: "hand_started"}
}

func (a *Actor) handlePlayerAction(playerID string, action betting.Action, reply chan Response) {
	if _, ok := a.state.playerIndex(playerID); !ok {
		reply <- Response{State: a.state.clone(), Err: ErrPlayerNotFound}
		return
	}
	if a.round == nil {
		reply <- Response{State: a.state.clone(), Err: ErrNoActiveBettingRound}
		return
	}

	before := a.snapshotForRollback()

	newRound, err := a.round.Apply(playerID, action)
	if err != nil {
		reply <- Response{State: a.state.clone(), Err: err}
		return
	}
	a.round = &newRound
	a.state = a.state.syncFromRound(newRound)
	a.recomputeHandCommitted()
	for id := range newRound.AllIn {
		a.handAllIn[id] = true
	}
	for id := range newRound.Folded {
		a.handFolded[id] = true
	}

	eventType, payload := describeAction(playerID, action, a.state.Pot)
	if err := a.persist(eventType, payload); err != nil {
		a.restore(before)
		reply <- Response{State: a.state.clone(), Err: err}
		return
	}

	if newRound.IsComplete() {
		a.freezeOriginalRoundIfNeeded(newRound)
		if err := a.advancePhase(); err != nil {
			a.restore(before)
			reply <- Response{State: a.state.clone(), Err: err}
			return
		}
	}

	a.broadcastSnapshot(a.lastShowdown)
	reply <- Response{State: a.state.clone(), Event: eventType}
}

// recomputeHandCommitted rebuilds the cumulative per-hand commitment
// ledger from scratch off the current round's player bets plus whatever
// had already accumulated from prior, now-closed streets. This is the
// authoritative source side_pots() draws from at showdown, since a
// single street's player_bets cannot reflect multi-street commitments.
func (a *Actor) recomputeHandCommitted() {
	if a.round == nil {
		return
	}
	for _, p := range a.round.Players {
		a.handCommitted[p.ID] = a.streetBaseline[p.ID] + a.round.PlayerBets[p.ID]
	}
}

// freezeOriginalRoundIfNeeded snapshots the round the first time any
// player goes all-in. The copy travels with snapshots and rollbacks;
// side-pot math does not read it (runShowdown uses handCommitted).
func (a *Actor) freezeOriginalRoundIfNeeded(r betting.Round) {
	if a.originalRound == nil && len(r.AllIn) > 0 {
		frozen := r
		a.originalRound = &frozen
	}
}

func describeAction(playerID string, action betting.Action, pot int) (string, map[string]any) {
	payload := map[string]any{"player_id": playerID, "pot": pot}
	switch action.Kind {
	case betting.Fold:
		return "player_folded", payload
	case betting.Call:
		return "player_called", payload
	case betting.Check:
		return "player_checked", payload
	case betting.Raise:
		payload["amount"] = action.Amount
		return "player_raised", payload
	case betting.AllIn:
		payload["amount"] = action.Amount
		return "player_all_in", payload
	default:
		return "player_action", payload
	}
}

// advancePhase runs after a betting round completes: fold-win, showdown,
// or dealing the next street (recursively, for all-in run-outs).
func (a *Actor) advancePhase() error {
	a.lastShowdown = nil
	nonFolded := a.nonFoldedPlayerIDs()
	if len(nonFolded) <= 1 {
		return a.awardFoldWin(nonFolded)
	}

	if a.state.Phase == RiverBetting {
		return a.runShowdown()
	}
	next := nextStreet(a.state.Phase)

	dealt := a.dealStreet(next)
	if err := a.persist("street_dealt", map[string]any{
		"game_id": a.gameID,
		"street":  next.String(),
		"cards":   cardIDs(dealt),
	}); err != nil {
		return err
	}
	newRound, err := betting.NewFromExisting(
		bettingPlayers(a.state.Players), a.state.Pot, 0, next, a.state.ButtonSeat,
		a.state.BigBlind, a.handFolded, a.handAllIn,
	)
	if err != nil {
		return nil
	}
	a.streetBaseline = cloneIntMap(a.handCommitted)
	a.round = &newRound
	a.state = a.state.syncFromRound(newRound)
	a.state.Phase = phaseForStreet(next)
	a.recomputeHandCommitted()

	if newRound.IsComplete() {
		// All remaining players are all-in: the street resolves itself
		// with no input, so keep advancing without waiting on an action.
		return a.advancePhase()
	}
	return nil
}

func phaseForStreet(s betting.Street) Phase {
	switch s {
	case betting.Flop:
		return FlopBetting
	case betting.Turn:
		return TurnBetting
	case betting.River:
		return RiverBetting
	default:
		return HandComplete
	}
}

func nextStreet(p Phase) betting.Street {
	switch p {
	case PreflopBetting:
		return betting.Flop
	case FlopBetting:
		return betting.Turn
	case TurnBetting:
		return betting.River
	default:
		return betting.Street(99) // sentinel: beyond river, caller checks Phase == RiverBetting
	}
}

func (a *Actor) nonFoldedPlayerIDs() []string {
	var out []string
	for _, p := range a.state.Players {
		if !a.handFolded[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

func (a *Actor) dealStreet(street betting.Street) []cards.Card {
	deck := a.state.Deck
	_ = deck.Burn()
	var n int
	switch street {
	case betting.Flop:
		n = 3
	case betting.Turn, betting.River:
		n = 1
	}
	dealt, err := deck.DealN(n)
	if err != nil {
		return nil
	}
	a.state.CommunityCards = append(a.state.CommunityCards, dealt...)
	return dealt
}

func cardIDs(cs []cards.Card) []int {
	ids := make([]int, len(cs))
	for i, c := range cs {
		ids[i] = c.ID()
	}
	return ids
}

// holeCardIDs captures each seated player's dealt hole cards by id, in
// seat order, so a crash-recovery replay can reconstruct the same deal
// without re-shuffling.
func holeCardIDs(players []Player) map[string][]int {
	out := make(map[string][]int, len(players))
	for _, p := range players {
		out[p.ID] = cardIDs(p.HoleCards)
	}
	return out
}

// awardFoldWin credits the sole remaining non-folded player the entire
// pot without a showdown; hole cards are never revealed.
func (a *Actor) awardFoldWin(nonFolded []string) error {
	streetReached := a.state.Phase.String()
	credits := map[string]int{}
	if len(nonFolded) == 1 {
		credits[nonFolded[0]] = a.state.Pot
		a.creditChips(nonFolded[0], a.state.Pot)
	}
	pot := a.state.Pot
	a.state.Pot = 0
	a.state.Phase = HandComplete
	a.round = nil
	a.originalRound = nil
	if err := a.persist("hand_complete", map[string]any{"game_id": a.gameID, "fold_win": true, "credits": credits}); err != nil {
		return err
	}
	a.recordHand(HandRecord{
		GameID: a.gameID, HandNumber: a.state.HandNumber, Pot: pot, FoldWin: true,
		StreetReached: streetReached, Winners: nonFolded,
	})
	return nil
}

// runShowdown evaluates each side pot's eligible hands and distributes
// chips, smallest layer outward, using each player's cumulative
// commitments for the whole hand (handCommitted).
func (a *Actor) runShowdown() error {
	streetReached := a.state.Phase.String()
	pots := betting.SidePots(a.handCommitted, a.handFolded)
	results := make([]ShowdownResult, 0, len(pots))
	credits := map[string]int{}

	for _, pot := range pots {
		hands := make(map[string]handeval.Hand, len(pot.EligiblePlayers))
		for _, id := range pot.EligiblePlayers {
			p := a.findPlayer(id)
			hands[id] = handeval.Best(p.HoleCards, a.state.CommunityCards)
		}
		winners := winningIDs(pot.EligiblePlayers, hands)
		share, remainder := pot.Amount/len(winners), pot.Amount%len(winners)
		for _, w := range winners {
			credits[w] += share
			a.creditChips(w, share)
		}
		if remainder > 0 {
			odd := closestClockwiseFromButton(winners, a.state.Players, a.state.ButtonSeat)
			credits[odd] += remainder
			a.creditChips(odd, remainder)
		}

		descriptions := make(map[string]string, len(hands))
		for id, h := range hands {
			descriptions[id] = h.Category.String()
		}
		results = append(results, ShowdownResult{PotAmount: pot.Amount, Winners: winners, HandDescriptions: descriptions})
	}

	a.lastShowdown = results
	pot := a.state.Pot
	a.state.Pot = 0
	a.state.Phase = HandComplete
	a.round = nil
	a.originalRound = nil
	if err := a.persist("hand_complete", map[string]any{
		"game_id": a.gameID, "fold_win": false, "credits": credits, "pots": pots,
	}); err != nil {
		return err
	}

	allWinners := make([]string, 0, len(results))
	descriptions := make(map[string]string)
	for _, r := range results {
		allWinners = append(allWinners, r.Winners...)
		for id, desc := range r.HandDescriptions {
			descriptions[id] = desc
		}
	}
	a.recordHand(HandRecord{
		GameID: a.gameID, HandNumber: a.state.HandNumber, Pot: pot, FoldWin: false,
		StreetReached: streetReached, Winners: allWinners, Descriptions: descriptions,
	})
	return nil
}

func winningIDs(eligible []string, hands map[string]handeval.Hand) []string {
	ordered := append([]string(nil), eligible...)
	sort.Strings(ordered)
	all := make([]handeval.Hand, len(ordered))
	for i, id := range ordered {
		all[i] = hands[id]
	}
	winnerIdx := handeval.DetermineWinners(all)
	out := make([]string, len(winnerIdx))
	for i, idx := range winnerIdx {
		out[i] = ordered[idx]
	}
	return out
}

// closestClockwiseFromButton breaks an odd-chip split by awarding the
// remainder to whichever winner sits nearest clockwise from the button.
func closestClockwiseFromButton(winners []string, players []Player, buttonSeat int) string {
	seatOf := make(map[string]int, len(players))
	for _, p := range players {
		seatOf[p.ID] = p.Seat
	}
	n := len(players)
	best := winners[0]
	bestDist := n + 1
	for _, w := range winners {
		dist := ((seatOf[w] - buttonSeat) + n) % n
		if dist == 0 {
			dist = n
		}
		if dist < bestDist {
			bestDist = dist
			best = w
		}
	}
	return best
}

func (a *Actor) creditChips(id string, amount int) {
	for i, p := range a.state.Players {
		if p.ID == id {
			a.state.Players[i].Chips += amount
			return
		}
	}
}

func (a *Actor) findPlayer(id string) Player {
	for _, p := range a.state.Players {
		if p.ID == id {
			return p
		}
	}
	return Player{}
}
