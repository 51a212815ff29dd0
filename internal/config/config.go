// Package config loads the engine's startup configuration (spec.md §6)
// from environment variables, the same os.Getenv style
// cmd/game-server/main.go uses for its port setting — no config
// framework is pulled in beyond what the teacher already relies on.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is every value the core recognizes at startup.
type Config struct {
	PlayersPerGame         int
	StartingChips          int
	SmallBlind             int
	BigBlind               int
	SnapshotIntervalEvents int
	TokenSecret            []byte
	GraceShutdownMS        int

	// ListenAddr is the transport adapter's own concern, not part of the
	// core spec, but it lives alongside everything else main.go needs at
	// startup, matching the teacher's single-env-block style.
	ListenAddr string
}

// Default values applied when the corresponding environment variable is
// unset, matching spec.md §6's stated defaults.
const (
	DefaultPlayersPerGame = 2
	DefaultListenAddr     = ":8080"
)

// Load populates a Config from the environment, applying defaults and
// validating the invariants spec.md §6 states (players_per_game in
// 2..10, big_blind > small_blind, etc).
func Load() (Config, error) {
	cfg := Config{
		PlayersPerGame:         envInt("PLAYERS_PER_GAME", DefaultPlayersPerGame),
		StartingChips:          envInt("STARTING_CHIPS", 1000),
		SmallBlind:             envInt("SMALL_BLIND", 10),
		BigBlind:               envInt("BIG_BLIND", 20),
		SnapshotIntervalEvents: envInt("SNAPSHOT_INTERVAL_EVENTS", 50),
		TokenSecret:            []byte(envString("TOKEN_SECRET", "")),
		GraceShutdownMS:        envInt("GRACE_SHUTDOWN_MS", 3000),
		ListenAddr:             envString("GAME_SERVER_ADDR", DefaultListenAddr),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants spec.md §6 states of a Config,
// regardless of how it was populated.
func (c Config) Validate() error {
	if c.PlayersPerGame < 2 || c.PlayersPerGame > 10 {
		return fmt.Errorf("config: players_per_game must be 2..10, got %d", c.PlayersPerGame)
	}
	if c.StartingChips <= 0 {
		return fmt.Errorf("config: starting_chips must be positive, got %d", c.StartingChips)
	}
	if c.SmallBlind <= 0 {
		return fmt.Errorf("config: small_blind must be positive, got %d", c.SmallBlind)
	}
	if c.BigBlind <= c.SmallBlind {
		return fmt.Errorf("config: big_blind (%d) must be greater than small_blind (%d)", c.BigBlind, c.SmallBlind)
	}
	if c.SnapshotIntervalEvents <= 0 {
		return fmt.Errorf("config: snapshot_interval_events must be positive, got %d", c.SnapshotIntervalEvents)
	}
	if len(c.TokenSecret) == 0 {
		return fmt.Errorf("config: token_secret must be set")
	}
	if c.GraceShutdownMS < 0 {
		return fmt.Errorf("config: grace_shutdown_ms must be non-negative, got %d", c.GraceShutdownMS)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
