package game

import "errors"

// Sentinel errors surfaced to the transport layer. Betting protocol
// violations (ErrNotYourTurn, BelowMinimumRaiseError, etc.) propagate
// directly from the betting package rather than being wrapped here,
// preserving their stable reason strings.
var (
	ErrPlayerNotFound        = errors.New("player_not_found")
	ErrNoActiveBettingRound  = errors.New("no_active_betting_round")
	ErrHandAlreadyInProgress = errors.New("hand_already_in_progress")
	ErrTournamentComplete    = errors.New("tournament_complete")
	ErrGameEnded             = errors.New("game_ended")
	ErrInvalidInput          = errors.New("invalid_input")
	ErrPersistFailed         = errors.New("persist_failed")
)
