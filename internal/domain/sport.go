// Package domain defines the core business entities for the prediction-market
// hub: sports/categories/games/markets, positions, P2P orders, and LP shares.
package domain

import "github.com/google/uuid"

// Sport is a static top-level grouping (e.g. "basketball", "crypto").
type Sport struct {
	ID   uuid.UUID `json:"id"   db:"id"`
	Name string    `json:"name" db:"name"`
}

// Team belongs to a Sport and hosts Games as home or away.
type Team struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	SportID   uuid.UUID `json:"sport_id"   db:"sport_id"`
	ShortCode string    `json:"short_code" db:"short_code"`
}
