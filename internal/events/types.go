package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/wordrush/internal/round"
)

// LeaderboardChanged is published after a result was written to a board.
type LeaderboardChanged struct {
	UserID      uuid.UUID
	RoundID     uuid.UUID
	Period      round.Period
	DurationSec int
	Scope       string
	Subject     string
	Score       int
	Outcome     string
	At          time.Time
}
