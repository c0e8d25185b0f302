package domain

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a Game. Only ACTIVE games may host an
// open market (§4.2's GameNotActive check).
type GameStatus string

const (
	GameScheduled GameStatus = "SCHEDULED"
	GameActive    GameStatus = "ACTIVE"
	GameCompleted GameStatus = "COMPLETED"
)

// Game is a scheduled real-world event that one or more Markets attach to.
type Game struct {
	ID         uuid.UUID  `json:"id"           db:"id"`
	SportID    uuid.UUID  `json:"sport_id"     db:"sport_id"`
	HomeTeamID uuid.UUID  `json:"home_team_id" db:"home_team_id"`
	AwayTeamID uuid.UUID  `json:"away_team_id" db:"away_team_id"`
	Status     GameStatus `json:"status"       db:"status"`
	CreatedAt  time.Time  `json:"created_at"   db:"created_at"`
}

// IsActive reports whether the game may currently host a new market.
func (g *Game) IsActive() bool {
	return g.Status == GameActive
}

// GameState is the singleton admin kill-switch (§3): when Active is false, no
// new market may be opened anywhere in the hub.
type GameState struct {
	Active bool `json:"active" db:"active"`
}
