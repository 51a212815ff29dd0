package matchmaking

import "errors"

// ErrAlreadyQueued is returned when a player who is already waiting
// calls Join again.
var ErrAlreadyQueued = errors.New("matchmaking: player already queued")

// ErrNotQueued is returned when Leave is called for a player not
// currently waiting.
var ErrNotQueued = errors.New("matchmaking: player not queued")
