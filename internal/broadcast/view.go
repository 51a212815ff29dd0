package broadcast

import (
	"shortdeck-engine/internal/betting"
	"shortdeck-engine/internal/cards"
	"shortdeck-engine/internal/game"
)

// PublicPlayerView is what a recipient may see about one seated player:
// their own hole cards always, another player's only at true showdown.
type PublicPlayerView struct {
	ID            string      `json:"id"`
	Chips         int         `json:"chips"`
	Seat          int         `json:"seat"`
	Cards         []cards.Card `json:"cards,omitempty"`
	IsCurrentTurn bool        `json:"is_current_turn"`
}

// BettingInfo is the recipient's view of the live betting round, used to
// decide their own action.
type BettingInfo struct {
	CurrentBet   int `json:"current_bet"`
	CallAmount   int `json:"call_amount"`
	MinimumRaise int `json:"minimum_raise"`
}

// ShowdownView names one pot's winners and revealed hand descriptions,
// included only once a true showdown has run.
type ShowdownView struct {
	PotAmount        int               `json:"pot_amount"`
	Winners          []string          `json:"winners"`
	HandDescriptions map[string]string `json:"hand_descriptions"`
}

// GameView is the filtered snapshot built for exactly one recipient. The
// engine keeps a single Phase enum for both "server phase" and "game
// phase" (spec.md §3's GameActor.server_phase and GameState.phase track
// the same lifecycle value in this implementation); both fields below
// mirror it so a transport consuming either name finds it.
type GameView struct {
	GameID         string             `json:"game_id"`
	ServerPhase    string             `json:"server_phase"`
	GamePhase      string             `json:"game_phase"`
	CommunityCards []cards.Card       `json:"community_cards"`
	Pot            int                `json:"pot"`
	Players        []PublicPlayerView `json:"players"`
	Betting        *BettingInfo       `json:"betting,omitempty"`
	CanAct         bool               `json:"can_act"`
	LegalActions   []string           `json:"legal_actions,omitempty"`
	Showdown       []ShowdownView     `json:"showdown,omitempty"`
}

// BuildView produces the view recipientID is permitted to see of snap.
// Hole cards for everyone else are redacted unless snap.Showdown is
// non-empty (game.Actor only ever populates Showdown from a true
// showdown with more than one non-folded player; a fold-win never sets
// it, so this single check satisfies the spec's "true showdown" test).
func BuildView(snap game.Snapshot, recipientID string) GameView {
	trueShowdown := len(snap.Showdown) > 0
	phase := snap.State.Phase.String()

	view := GameView{
		GameID:         snap.State.GameID,
		ServerPhase:    phase,
		GamePhase:      phase,
		CommunityCards: append([]cards.Card(nil), snap.State.CommunityCards...),
		Pot:            snap.State.Pot,
		Players:        make([]PublicPlayerView, 0, len(snap.State.Players)),
	}

	var activeID string
	if snap.Round != nil {
		view.Pot = snap.Round.Pot
		if id, ok := snap.Round.ActivePlayer(); ok {
			activeID = id
		}
	}

	for _, p := range snap.State.Players {
		pv := PublicPlayerView{
			ID:            p.ID,
			Chips:         p.Chips,
			Seat:          p.Seat,
			IsCurrentTurn: p.ID == activeID,
		}
		if p.ID == recipientID || trueShowdown {
			pv.Cards = append([]cards.Card(nil), p.HoleCards...)
		}
		view.Players = append(view.Players, pv)
	}

	if snap.Round != nil {
		view.Betting = &BettingInfo{
			CurrentBet:   snap.Round.CurrentBet,
			CallAmount:   snap.Round.AmountToCall(recipientID),
			MinimumRaise: snap.Round.MinimumRaise(),
		}
		view.CanAct = recipientID == activeID
		if view.CanAct {
			if legal, err := snap.Round.LegalActions(recipientID); err == nil {
				view.LegalActions = actionNames(legal)
			}
		}
	}

	if trueShowdown {
		view.Showdown = make([]ShowdownView, len(snap.Showdown))
		for i, r := range snap.Showdown {
			view.Showdown[i] = ShowdownView{
				PotAmount:        r.PotAmount,
				Winners:          append([]string(nil), r.Winners...),
				HandDescriptions: r.HandDescriptions,
			}
		}
	}

	return view
}

func actionNames(kinds []betting.ActionKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
